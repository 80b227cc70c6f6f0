package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgallion1/docweave/internal/config"
	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/doctree"
	"github.com/dgallion1/docweave/internal/weave"
	"github.com/samber/lo"
)

// Worker weaves a single document job.
type Worker struct {
	jobs     *JobStore
	registry *dialect.Registry
	cfg      config.WeaveConfig
	workDir  string
	log      *slog.Logger
}

func NewWorker(jobs *JobStore, reg *dialect.Registry, cfg config.WeaveConfig, workDir string, log *slog.Logger) *Worker {
	return &Worker{
		jobs:     jobs,
		registry: reg,
		cfg:      cfg,
		workDir:  workDir,
		log:      log,
	}
}

// progressWriter counts the engine's per-chunk progress lines.
type progressWriter struct {
	job *Job
}

var progressLine = []byte("Processing chunk ")

func (p progressWriter) Write(b []byte) (int, error) {
	for range bytes.Count(b, progressLine) {
		p.job.IncrChunksProcessed()
	}
	return len(b), nil
}

// Process runs parse, execute and format for a job. Every job gets its
// own session and figure directory. A document already woven in the same
// dialect is not run again.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Figures are written lazily; the directory exists only if a chunk saves one.
	dir := filepath.Join(w.workDir, "docweave-"+job.ID)
	job.setDir(dir)

	opts := DocumentOptions(w.cfg, w.registry, progressWriter{job: job}, log)
	if job.requested != "" {
		opts.Dialect = job.requested
	}
	opts.FigDir = filepath.Join(dir, figuresDir)
	doc := weave.FromString(job.Filename, string(job.Source()), opts)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	if err := doc.Parse(); err != nil {
		w.fail(job, log, "parsing", err)
		return
	}
	name := outputName(doc)
	job.SetDialect(doc.Dialect().Name)
	job.SetTotalChunks(lo.CountBy(doc.Chunks(), func(c doctree.Chunk) bool { return c.IsCode() }))

	if prev := w.jobs.FindCompleted(job.ContentHash, doc.Dialect().Name); prev != nil && prev != job {
		log.Info("identical document already woven, reusing output", "previous_job_id", prev.ID)
		job.Reuse(prev, name)
		return
	}

	// Phase 2: Execute
	job.SetStatus(StatusExecuting, "executing")
	if err := doc.Run(ctx); err != nil {
		w.fail(job, log, "executing", err)
		return
	}

	// Phase 3: Format
	job.SetStatus(StatusFormatting, "formatting")
	out, err := doc.Render(ctx)
	if err != nil {
		w.fail(job, log, "formatting", err)
		return
	}

	job.SetOutput(name, RelativeFigures(out, opts.FigDir))
	job.SetStatus(StatusCompleted, "done")
	log.Info("weave complete", "dialect", doc.Dialect().Name, "bytes", len(out))
}

// outputName is the sink's file name, or output.<ext> for unnamed sources.
func outputName(doc *weave.Document) string {
	if doc.Sink() == "" {
		return "output." + doc.Dialect().Extension
	}
	return filepath.Base(doc.Sink())
}

func (w *Worker) fail(job *Job, log *slog.Logger, phase string, err error) {
	log.Warn("job failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}
