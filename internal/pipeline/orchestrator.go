package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docweave/internal/config"
	"github.com/dgallion1/docweave/internal/dialect"
)

// ErrQueueFull is returned by Submit when no worker can take the job.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator runs weave jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	registry *dialect.Registry
	log      *slog.Logger
	cfg      config.Config

	active atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const cleanupInterval = 5 * time.Minute

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, reg *dialect.Registry, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.Server.JobTTL),
		queue:    make(chan *Job, cfg.Server.MaxQueueSize),
		registry: reg,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines and the job store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for id := range o.cfg.Server.WorkerCount {
		o.wg.Add(1)
		go o.runWorker(workerCtx, id)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	w := NewWorker(o.jobs, o.registry, o.cfg.ServerWeave(), o.cfg.Server.WorkDir, o.log.With("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			o.active.Add(1)
			w.Process(ctx, job)
			o.active.Add(-1)
		}
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.Server.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Active returns the number of jobs being woven right now.
func (o *Orchestrator) Active() int {
	return int(o.active.Load())
}

// Registry returns the dialects jobs are woven with.
func (o *Orchestrator) Registry() *dialect.Registry {
	return o.registry
}

// WeaveConfig returns the settings synchronous requests should use.
func (o *Orchestrator) WeaveConfig() config.WeaveConfig {
	return o.cfg.ServerWeave()
}
