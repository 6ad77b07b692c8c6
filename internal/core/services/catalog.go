package services

import (
	"context"
	"fmt"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driving"
)

// CatalogService implements the read-only Catalog driving port over
// the event store.
type CatalogService struct {
	events driven.EventStore
}

var _ driving.Catalog = (*CatalogService)(nil)

// NewCatalogService creates a CatalogService.
func NewCatalogService(events driven.EventStore) *CatalogService {
	return &CatalogService{events: events}
}

// Get retrieves one event by ID or merge alias.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Event, error) {
	return s.events.Get(ctx, id)
}

// Query returns events matching the filter, newest first.
func (s *CatalogService) Query(ctx context.Context, q driven.EventQuery) ([]domain.Event, error) {
	return s.events.Query(ctx, q)
}

// Stats aggregates the whole stored catalog.
func (s *CatalogService) Stats(ctx context.Context) (*driving.CatalogStats, error) {
	events, err := s.events.Query(ctx, driven.EventQuery{})
	if err != nil {
		return nil, fmt.Errorf("querying events for stats: %w", err)
	}

	stats := &driving.CatalogStats{
		TotalEvents:          len(events),
		CategoryDistribution: make(map[domain.Category]int),
		ConfidenceBreakdown:  make(map[domain.Confidence]int),
	}

	for i := range events {
		e := &events[i]

		date := e.EventDate.Format("2006-01-02")
		if stats.EarliestEventDate == "" || date < stats.EarliestEventDate {
			stats.EarliestEventDate = date
		}
		if date > stats.LatestEventDate {
			stats.LatestEventDate = date
		}

		if penalty, ok := e.Amounts[domain.AmountPenalty]; ok {
			stats.TotalPenaltiesUSD += penalty.Value
		}
		for _, c := range e.Categories {
			stats.CategoryDistribution[c]++
		}
		stats.ConfidenceBreakdown[e.Confidence()]++

		for _, inst := range e.Institutions {
			if inst.Unresolved {
				stats.UnresolvedEvents++
				break
			}
		}
	}
	return stats, nil
}
