package refresh

import "time"

// State is what the refresh loop is doing right now.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// ResultStatus classifies what a refresh run did to one dataset's snapshot.
type ResultStatus string

const (
	// ResultUpdated means a fresh payload replaced the snapshot.
	ResultUpdated ResultStatus = "updated"
	// ResultUnchanged means the live payload matched the snapshot on disk.
	ResultUnchanged ResultStatus = "unchanged"
	// ResultSkipped means the dataset has no snapshot file or no live
	// endpoint, so there is nothing to refresh.
	ResultSkipped ResultStatus = "skipped"
	// ResultFailed means the refresh attempt broke; the snapshot is untouched.
	ResultFailed ResultStatus = "failed"
)

// Result is one dataset's outcome within a refresh run.
type Result struct {
	Dataset   string       `json:"dataset"`
	Status    ResultStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
	ElapsedMS int64        `json:"elapsed_ms"`
}

// Run records one full refresh cycle over the registry.
type Run struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Results    []Result   `json:"results,omitempty"`
}

// clone returns an independent copy so status readers never share slices
// with the loop.
func (r *Run) clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	if r.FinishedAt != nil {
		finished := *r.FinishedAt
		out.FinishedAt = &finished
	}
	out.Results = make([]Result, len(r.Results))
	copy(out.Results, r.Results)
	return &out
}

// StatusSnapshot is the observable state of the loop: what it is doing now
// and what the last completed run did.
type StatusSnapshot struct {
	State      State    `json:"state"`
	CurrentRun *RunInfo `json:"current_run,omitempty"`
	LastRun    *Run     `json:"last_run,omitempty"`
}

// RunInfo identifies an in-flight run without exposing its growing results.
type RunInfo struct {
	ID        string    `json:"id"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"started_at"`
}
