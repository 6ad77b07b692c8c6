package driving

import (
	"context"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// CatalogStats aggregates the stored catalog for reporting.
type CatalogStats struct {
	TotalEvents          int
	EarliestEventDate    string
	LatestEventDate      string
	TotalPenaltiesUSD    int64
	CategoryDistribution map[domain.Category]int
	ConfidenceBreakdown  map[domain.Confidence]int
	UnresolvedEvents     int
}

// Catalog is the read-only query surface consumed by report and export
// layers. It never writes.
type Catalog interface {
	// Get retrieves one event by ID or merge alias.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// Query returns events matching the filter.
	Query(ctx context.Context, q driven.EventQuery) ([]domain.Event, error)

	// Stats aggregates the stored catalog.
	Stats(ctx context.Context) (*CatalogStats, error)
}
