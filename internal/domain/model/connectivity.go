package model

import "time"

// ConnectivityResult is the outcome of probing one binding.
type ConnectivityResult struct {
	CredentialID string
	AssetID      string
	Username     string
	Status       ConnectivityStatus
	ErrorDetail  string
	TestedAs     string // Username actually used for the attempt.
	Duration     time.Duration
	CheckedAt    time.Time
}

// PendingResult returns the placeholder result recorded before a probe runs.
func PendingResult(b Binding) ConnectivityResult {
	return ConnectivityResult{
		CredentialID: b.CredentialID,
		AssetID:      b.AssetID,
		Username:     b.Username,
		Status:       ConnectivityPending,
	}
}

// IsDone reports whether the probe has completed, successfully or not.
func (r ConnectivityResult) IsDone() bool {
	return r.Status == ConnectivitySuccess || r.Status == ConnectivityFailure
}

// Job is a submitted batch of probes.
type Job struct {
	ID         string
	Status     JobStatus
	Results    []ConnectivityResult
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Counts returns how many results succeeded, failed and are still pending.
func (j Job) Counts() (success, failure, pending int) {
	for _, r := range j.Results {
		switch r.Status {
		case ConnectivitySuccess:
			success++
		case ConnectivityFailure:
			failure++
		default:
			pending++
		}
	}
	return success, failure, pending
}
