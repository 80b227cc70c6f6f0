package pipeline

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a weave job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusExecuting  JobStatus = "executing"
	StatusFormatting JobStatus = "formatting"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusReused     JobStatus = "reused"
)

// Done reports whether the job has stopped changing.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReused
}

// Job tracks the state of a single document weave.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Dialect  string    `json:"dialect"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	ReusedFrom  string    `json:"reused_from,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	requested  string
	source     []byte
	output     string
	outputName string
	dir        string // work directory, removed on cleanup
	figDir     string // where figures are served from
	errors     []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job for source. dialect may be empty.
func NewJob(filename, dialect string, source []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          newJobID(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Dialect:     dialect,
		requested:   dialect,
		ContentHash: ContentHashHex(source),
		CreatedAt:   now,
		UpdatedAt:   now,
		source:      source,
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindCompleted returns a completed job for the same content woven in
// the same resolved dialect, or nil.
func (s *JobStore) FindCompleted(hash, dialect string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		job.mu.Lock()
		match := job.Status == StatusCompleted && job.ContentHash == hash && job.Dialect == dialect
		job.mu.Unlock()
		if match {
			return job
		}
	}
	return nil
}

// Cleanup removes expired jobs and their working directories.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		dir := job.dir
		job.mu.Unlock()
		if expired {
			if dir != "" {
				os.RemoveAll(dir)
			}
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records the number of code chunks.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetDialect records the dialect the document resolved to.
func (j *Job) SetDialect(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Dialect = name
}

// Reuse copies the output of a completed job with the same content and
// dialect. The output is stored under name, and prev's figures are served
// for j, so prev is kept alive at least as long as j.
func (j *Job) Reuse(prev *Job, name string) {
	prev.mu.Lock()
	prev.UpdatedAt = time.Now()
	text, figDir := prev.output, prev.figDir
	prev.mu.Unlock()
	snap := prev.Snapshot()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputName = name
	j.output = text
	j.figDir = figDir
	j.ReusedFrom = prev.ID
	j.Dialect = snap.Dialect
	j.Progress.TotalChunks = snap.Progress.TotalChunks
	j.Progress.ChunksProcessed = snap.Progress.ChunksProcessed
	j.Status = StatusReused
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

func (j *Job) setDir(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dir = dir
	j.figDir = filepath.Join(dir, figuresDir)
}

// FigurePath returns the file of a figure saved by the job. name must be
// a bare file name.
func (j *Job) FigurePath(name string) (string, bool) {
	j.mu.Lock()
	dir := j.figDir
	j.mu.Unlock()
	if dir == "" || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	path := filepath.Join(dir, name)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return "", false
	}
	return path, true
}

// Source returns the literate source bytes.
func (j *Job) Source() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.source
}

// SetOutput stores the woven document and its file name.
func (j *Job) SetOutput(name, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputName = name
	j.output = text
	j.UpdatedAt = time.Now()
}

// Output returns the woven document once the job has produced one.
func (j *Job) Output() (name, text string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputName, j.output, j.outputName != ""
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Dialect     string    `json:"dialect"`
	ContentHash string    `json:"content_hash"`
	ReusedFrom  string    `json:"reused_from,omitempty"`
	Progress    Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Dialect:     j.Dialect,
		ContentHash: j.ContentHash,
		ReusedFrom:  j.ReusedFrom,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			Errors:          errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
