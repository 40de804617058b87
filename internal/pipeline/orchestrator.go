package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/qa"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

const cleanupInterval = 5 * time.Minute

// Ingester stores a parsed document. *qa.Engine satisfies it.
type Ingester interface {
	Ingest(doc *document.Document, opts qa.IngestOptions) (*qa.IngestResult, error)
}

// Options configure the worker pool.
type Options struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
	Parser       parser.Options
}

// Orchestrator manages the asynchronous ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	ingester Ingester
	log      zerolog.Logger
	opts     Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(opts Options, ingester Ingester, log zerolog.Logger) *Orchestrator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 1
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:     NewJobStore(opts.JobTTL),
		queue:    make(chan *Job, opts.MaxQueueSize),
		ingester: ingester,
		log:      log.With().Str("component", "pipeline").Logger(),
		opts:     opts,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.ingester, o.opts.Parser, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
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

// Stop shuts down the pipeline and waits for running jobs to return.
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
		o.log.Info().Str("job_id", job.ID).Str("filename", job.Filename).Msg("job queued")
		return nil
	default:
		job.AddError(ErrQueueFull.Error())
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.opts.MaxQueueSize)
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
