package driving

import (
	"context"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// Collector drives collection runs. Invoked by a scheduling trigger or
// manually; the core is agnostic to which.
type Collector interface {
	// Run collects from one connector: discover → fetch → normalize →
	// store, with per-record failure isolation and transient-failure
	// retry. Record-level failures never abort the run; run-level
	// failures leave already-stored events committed.
	Run(ctx context.Context, connectorName string, since time.Time) (domain.RunResult, error)

	// RunAll collects from every registered connector concurrently,
	// up to the configured parallelism. One connector's failure never
	// prevents the others from completing.
	RunAll(ctx context.Context, since time.Time) (map[string]domain.RunResult, error)

	// Status returns the current state of any active run for the
	// connector, or the pending zero state when idle.
	Status(ctx context.Context, connectorName string) (*domain.RunResult, error)

	// HealthCheck probes each connector's readiness.
	HealthCheck(ctx context.Context) (map[string]domain.HealthStatus, error)
}
