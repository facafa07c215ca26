package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

var (
	// ErrJobNotFound is returned by Poll for unknown or expired jobs.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned by Submit when no task of the batch could be
	// enqueued.
	ErrQueueFull = errors.New("probe queue full")
)

// ProbeTask is one unit of work in a probe batch.
type ProbeTask struct {
	Binding    model.Binding
	RunAsAdmin bool
}

// ProbeFunc executes a single task and reports its outcome. It is called by
// the queue's workers with a context carrying the probe timeout.
type ProbeFunc func(ctx context.Context, jobID string, task ProbeTask) model.ConnectivityResult

// JobQueue defines the driven port for asynchronous probe batches.
type JobQueue interface {
	// Submit enqueues every task and returns the job id without waiting for
	// any probe to run.
	Submit(ctx context.Context, tasks []ProbeTask, fn ProbeFunc) (string, error)

	// Poll returns a snapshot of the job.
	Poll(ctx context.Context, jobID string) (model.Job, error)
}
