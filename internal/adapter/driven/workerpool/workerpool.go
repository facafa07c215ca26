// Package workerpool implements the JobQueue port with a fixed set of
// goroutines draining a buffered channel of probe tasks.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobQueue = (*WorkerPool)(nil)

// ErrStopped is returned by Submit once the pool has shut down.
var ErrStopped = errors.New("probe worker pool stopped")

// DetailQueueFull is recorded on tasks that could not be enqueued.
const DetailQueueFull = "probe queue full"

const (
	defaultWorkerCount  = 8
	defaultQueueSize    = 256
	defaultProbeTimeout = 10 * time.Second
	defaultJobTTL       = time.Hour
	defaultMaxJobs      = 10000
)

// PoolOptions configures the worker pool.
type PoolOptions struct {
	// WorkerCount is the number of concurrent probes.
	WorkerCount int
	// QueueSize is the size of the task buffer shared by all jobs.
	QueueSize int
	// ProbeTimeout bounds every task.
	ProbeTimeout time.Duration
	// JobTTL is how long a job stays pollable after submission.
	JobTTL time.Duration
	// MaxJobs caps the job table; the least recently used job is evicted first.
	MaxJobs int
	Logger  *slog.Logger
}

// workItem is a single probe task of a job.
type workItem struct {
	fn    driven.ProbeFunc
	job   *jobState
	jobID string
	index int
	task  driven.ProbeTask
}

// WorkerPool runs probe tasks on WorkerCount goroutines. Tasks run under the
// context passed to Start, never under the submitting request's context.
type WorkerPool struct {
	PoolOptions
	workQueue   chan *workItem
	jobs        *expirable.LRU[string, *jobState]
	workersDone sync.WaitGroup
	now         func() time.Time

	// mu guards closed against concurrent Submit and shutdown.
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a worker pool. Zero-valued options take defaults.
func NewWorkerPool(opts PoolOptions) *WorkerPool {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = defaultMaxJobs
	}

	return &WorkerPool{
		PoolOptions: opts,
		workQueue:   make(chan *workItem, opts.QueueSize),
		jobs:        expirable.NewLRU[string, *jobState](opts.MaxJobs, nil, opts.JobTTL),
		now:         time.Now,
	}
}

// Start runs the workers and blocks until ctx is cancelled, then closes the
// queue and waits for every worker to exit.
func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.Logger.Info("starting probe worker pool",
		"workers", wp.WorkerCount, "queue_size", wp.QueueSize, "probe_timeout", wp.ProbeTimeout)

	for i := range wp.WorkerCount {
		wp.workersDone.Add(1)
		go wp.worker(ctx, i)
	}

	<-ctx.Done()
	wp.Logger.Info("probe worker pool shutting down")

	wp.mu.Lock()
	wp.closed = true
	close(wp.workQueue)
	wp.mu.Unlock()

	wp.workersDone.Wait()

	wp.Logger.Info("probe worker pool shutdown complete")
	return nil
}

// Submit registers a job and enqueues its tasks without blocking. Tasks that
// do not fit are recorded as failed; if none fit, the job is dropped and
// driven.ErrQueueFull is returned.
func (wp *WorkerPool) Submit(_ context.Context, tasks []driven.ProbeTask, fn driven.ProbeFunc) (string, error) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return "", ErrStopped
	}

	id := uuid.NewString()
	state := newJobState(id, len(tasks), wp.now().UTC())
	for i, task := range tasks {
		state.setPending(i, model.PendingResult(task.Binding))
	}
	wp.jobs.Add(id, state)
	JobsSubmittedTotal.Inc()

	enqueued := 0
	for i, task := range tasks {
		item := &workItem{fn: fn, job: state, jobID: id, index: i, task: task}

		select {
		case wp.workQueue <- item:
			enqueued++
		default:
			QueueRejectionsTotal.Inc()
			rejected := model.PendingResult(task.Binding)
			rejected.Status = model.ConnectivityFailure
			rejected.ErrorDetail = DetailQueueFull
			rejected.CheckedAt = wp.now().UTC()
			state.complete(i, rejected, wp.now().UTC())
		}
	}
	QueueDepthGauge.Set(float64(len(wp.workQueue)))

	if len(tasks) > 0 && enqueued == 0 {
		wp.jobs.Remove(id)
		return "", fmt.Errorf("submit %d probe tasks: %w", len(tasks), driven.ErrQueueFull)
	}
	if enqueued < len(tasks) {
		wp.Logger.Warn("probe queue full, tasks rejected",
			"job_id", id, "rejected", len(tasks)-enqueued, "enqueued", enqueued)
	}

	return id, nil
}

// Poll returns a copy of the job's current state.
func (wp *WorkerPool) Poll(_ context.Context, jobID string) (model.Job, error) {
	state, ok := wp.jobs.Get(jobID)
	if !ok {
		return model.Job{}, fmt.Errorf("poll job %s: %w", jobID, driven.ErrJobNotFound)
	}
	return state.snapshot(), nil
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.workersDone.Done()
	logger := wp.Logger.With("worker", id)
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-wp.workQueue:
			if !ok {
				return
			}
			QueueDepthGauge.Set(float64(len(wp.workQueue)))
			wp.handleWorkItem(ctx, logger, item)
		}
	}
}

func (wp *WorkerPool) handleWorkItem(ctx context.Context, logger *slog.Logger, item *workItem) {
	item.job.running()
	InFlightGauge.Inc()
	defer InFlightGauge.Dec()

	taskCtx, cancel := context.WithTimeout(ctx, wp.ProbeTimeout)
	defer cancel()

	start := wp.now()
	result := wp.run(taskCtx, logger, item)
	ProbeDurationHistogram.Observe(wp.now().Sub(start).Seconds())
	ProbesTotal.WithLabelValues(string(result.Status)).Inc()

	if item.job.complete(item.index, result, wp.now().UTC()) {
		success, failure, _ := item.job.snapshot().Counts()
		logger.Info("probe job finished", "job_id", item.jobID, "success", success, "failure", failure)
	}
}

// run calls the task function, converting a panic or an unfinished result
// into a failure so the job always completes.
func (wp *WorkerPool) run(ctx context.Context, logger *slog.Logger, item *workItem) (result model.ConnectivityResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("probe panicked", append([]any{"job_id", item.jobID, "panic", r}, item.task.Binding.AsLogFields()...)...)
			result = model.PendingResult(item.task.Binding)
			result.Status = model.ConnectivityFailure
			result.ErrorDetail = fmt.Sprintf("probe panicked: %v", r)
			result.CheckedAt = wp.now().UTC()
		}
	}()

	result = item.fn(ctx, item.jobID, item.task)
	if !result.IsDone() {
		result.Status = model.ConnectivityFailure
		if result.ErrorDetail == "" {
			result.ErrorDetail = "probe returned no outcome"
		}
	}
	return result
}
