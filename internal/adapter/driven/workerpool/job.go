package workerpool

import (
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// jobState is the mutable record behind one job id. Workers update it
// through the methods below; Poll only ever sees copies.
type jobState struct {
	mu        sync.Mutex
	job       model.Job
	remaining int
}

func newJobState(id string, tasks int, now time.Time) *jobState {
	s := &jobState{
		job: model.Job{
			ID:        id,
			Status:    model.JobStatusPending,
			Results:   make([]model.ConnectivityResult, tasks),
			CreatedAt: now,
		},
		remaining: tasks,
	}
	if tasks == 0 {
		s.job.Status = model.JobStatusFinished
		s.job.FinishedAt = now
	}
	return s
}

func (s *jobState) setPending(i int, r model.ConnectivityResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Results[i] = r
}

func (s *jobState) running() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status == model.JobStatusPending {
		s.job.Status = model.JobStatusRunning
	}
}

// complete stores the outcome of task i. It reports whether this was the
// last outstanding task.
func (s *jobState) complete(i int, r model.ConnectivityResult, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Results[i].IsDone() {
		return false
	}
	s.job.Results[i] = r
	s.remaining--

	if s.remaining == 0 {
		s.job.Status = model.JobStatusFinished
		s.job.FinishedAt = now
		return true
	}
	if s.job.Status == model.JobStatusPending {
		s.job.Status = model.JobStatusRunning
	}
	return false
}

func (s *jobState) snapshot() model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.job
	job.Results = slices.Clone(s.job.Results)
	return job
}
