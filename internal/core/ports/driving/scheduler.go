package driving

import "context"

// Scheduler runs recurring background tasks such as the periodic
// event collection sweep.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}
