package driven

import (
	"context"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// UpsertOutcome reports what an upsert did.
type UpsertOutcome string

// Upsert outcomes.
const (
	// UpsertCreated means a new event row was written.
	UpsertCreated UpsertOutcome = "created"

	// UpsertMerged means the incoming event corroborated an existing
	// one and the stored state is the merge of both.
	UpsertMerged UpsertOutcome = "merged"
)

// EventQuery filters catalog reads. Zero values mean "no filter".
type EventQuery struct {
	// From and To bound the event date range, inclusive.
	From time.Time
	To   time.Time

	// Categories restricts to events carrying at least one of these.
	Categories []domain.Category

	// InstitutionKey restricts to events referencing the institution.
	InstitutionKey string

	// Limit caps the result size. Zero means no cap.
	Limit int
}

// EventStore persists canonical events idempotently.
//
// Upsert contract: calling Upsert any number of times with logically
// identical input leaves the store unchanged after the first call.
// An incoming event matching a stored event by ID, by recorded alias,
// or by content fingerprint merges via domain.Merge rather than
// creating a duplicate. The read-merge-write for a given identity is
// one atomic unit: concurrent upserts for the same key are serialized,
// upserts for different keys proceed independently.
//
// Write failures surface as *domain.StorageFault, never silently.
type EventStore interface {
	// Upsert inserts or merges the event, keyed by deterministic
	// identity.
	Upsert(ctx context.Context, event *domain.Event) (UpsertOutcome, error)

	// Get retrieves an event by ID. IDs absorbed during a merge keep
	// working as aliases of the surviving event.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// Query returns events matching the filter, newest event date
	// first.
	Query(ctx context.Context, q EventQuery) ([]domain.Event, error)
}
