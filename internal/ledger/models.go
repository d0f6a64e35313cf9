package ledger

import "time"

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Action is what a run did with one artifact.
type Action string

const (
	ActionFetched  Action = "fetched"
	ActionSkipped  Action = "skipped"
	ActionLinked   Action = "linked"
	ActionUnlinked Action = "unlinked"
)

// Run is one invocation of a mutating command.
type Run struct {
	ID           string
	Command      string
	ManifestPath string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      Outcome
	ErrorMessage string
	Fetched      int
	Skipped      int
	Linked       int
	Bytes        int64
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Artifact is one artifact event within a run.
type Artifact struct {
	RunID      string
	Kind       string
	Name       string
	Action     Action
	Path       string
	Bytes      int64
	RecordedAt time.Time
}
