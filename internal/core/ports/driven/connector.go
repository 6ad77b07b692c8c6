package driven

import (
	"context"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// Connector discovers and fetches raw records from one data source.
// Each source (FDIC enforcement orders, news APIs, ...) implements
// this interface; fetch and parse mechanics stay inside the connector.
//
// Failure contract: connectors must surface transient failures
// (network, timeout, rate limit) as *domain.TransientSourceError and
// data problems (parse, schema drift) as *domain.StructuralSourceError
// so the orchestrator can apply its retry policy.
type Connector interface {
	// Name returns the connector's source name (e.g., "fdic_edo").
	Name() string

	// Validate checks that the connector is properly configured and
	// the source is reachable. Used by health checks; typically makes
	// one lightweight request.
	Validate(ctx context.Context) error

	// Discover streams handles for records updated since the given
	// time. The handle channel closes when discovery completes; a
	// run-level failure arrives on the error channel. Discovery is
	// abandoned when ctx is cancelled.
	Discover(ctx context.Context, since time.Time) (<-chan domain.RecordHandle, <-chan error)

	// Fetch retrieves the raw payload for one discovered handle.
	Fetch(ctx context.Context, handle domain.RecordHandle) (*domain.RawRecord, error)

	// Close releases resources.
	Close() error
}
