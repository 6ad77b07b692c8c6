package domain

import "time"

// RunState tracks the lifecycle of one connector collection run.
type RunState string

// Run lifecycle: pending → fetching → normalizing → storing →
// {completed | failed}. A run that fails mid-stream keeps whatever it
// already stored; upserts are idempotent so partial progress is safe.
const (
	RunPending     RunState = "pending"
	RunFetching    RunState = "fetching"
	RunNormalizing RunState = "normalizing"
	RunStoring     RunState = "storing"
	RunCompleted   RunState = "completed"
	RunFailed      RunState = "failed"
)

// Terminal reports whether the state is an end state.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunResult summarises one connector collection run. Failed runs report
// counts rather than presenting as silent partial successes.
type RunResult struct {
	// RunID uniquely identifies the run.
	RunID string

	// Connector is the connector that ran.
	Connector string

	// State is the final lifecycle state.
	State RunState

	// Since is the lower bound of the collection window.
	Since time.Time

	// Fetched counts raw records fetched from the source.
	Fetched int

	// Normalized counts records that produced a canonical event.
	Normalized int

	// Stored counts events upserted into the repository.
	Stored int

	// Failed counts per-record failures (validation, parse).
	Failed int

	// Err holds the run-level failure message, if any.
	Err string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the total run time.
	Duration time.Duration
}

// HealthStatus reports one connector's readiness.
type HealthStatus struct {
	Connector string
	Healthy   bool
	Message   string
	CheckedAt time.Time
}

// CollectionConfig tunes the orchestrator.
type CollectionConfig struct {
	// Parallelism bounds concurrent connector runs in RunAll.
	Parallelism int

	// MaxAttempts bounds retries of transient failures per record.
	MaxAttempts int

	// InitialBackoff seeds the exponential retry schedule.
	InitialBackoff time.Duration

	// MaxBackoff caps a single retry wait.
	MaxBackoff time.Duration

	// QueueSize bounds the handle queue between discovery and fetch.
	QueueSize int
}

// DefaultCollectionConfig returns sensible defaults.
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Parallelism:    4,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		QueueSize:      64,
	}
}
