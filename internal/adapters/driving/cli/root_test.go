package cli

import (
	"context"
	"errors"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driving"
)

// setupTestServices installs working mocks and returns a cleanup func.
func setupTestServices() func() {
	oldCollector := collectorService
	oldCatalog := catalogService
	oldScheduler := schedulerService

	collectorService = &mockCollector{}
	catalogService = &mockCatalog{}
	schedulerService = &mockScheduler{}

	return func() {
		collectorService = oldCollector
		catalogService = oldCatalog
		schedulerService = oldScheduler
	}
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:            "fdic-edo-fdic-24-0012",
		Fingerprint:   "abc123",
		Title:         "Consent Order Against Example Bank",
		EventDate:     time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		ReportedDates: []time.Time{time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)},
		Institutions: []domain.InstitutionRef{
			{Key: "cert:3511", Name: "Example Bank"},
		},
		Categories:       []domain.Category{domain.CategoryRegulatoryAction, domain.CategoryFine},
		MaterialityScore: 3,
		Summary:          "Example Bank consented to an order.",
		Amounts: map[domain.AmountKind]domain.Amount{
			domain.AmountPenalty: {Value: 15000000, Currency: "USD", Source: "fdic_edo"},
		},
		Sources: []domain.SourceRef{
			{SourceName: "fdic_edo", ExternalID: "FDIC-24-0012", Type: domain.SourceRegulator},
		},
	}
}

// mockCollector implements driving.Collector.
type mockCollector struct {
	runErr     error
	healthSick bool
}

var _ driving.Collector = (*mockCollector)(nil)

func (m *mockCollector) Run(_ context.Context, connector string, since time.Time) (domain.RunResult, error) {
	result := domain.RunResult{
		RunID:      "run-1",
		Connector:  connector,
		State:      domain.RunCompleted,
		Since:      since,
		Fetched:    3,
		Normalized: 3,
		Stored:     3,
		Duration:   120 * time.Millisecond,
	}
	if m.runErr != nil {
		result.State = domain.RunFailed
		result.Err = m.runErr.Error()
		return result, m.runErr
	}
	return result, nil
}

func (m *mockCollector) RunAll(ctx context.Context, since time.Time) (map[string]domain.RunResult, error) {
	fdic, _ := m.Run(ctx, "fdic_edo", since)
	news, _ := m.Run(ctx, "newsapi", since)
	return map[string]domain.RunResult{"fdic_edo": fdic, "newsapi": news}, nil
}

func (m *mockCollector) Status(_ context.Context, connector string) (*domain.RunResult, error) {
	return &domain.RunResult{Connector: connector, State: domain.RunPending}, nil
}

func (m *mockCollector) HealthCheck(_ context.Context) (map[string]domain.HealthStatus, error) {
	statuses := map[string]domain.HealthStatus{
		"fdic_edo": {Connector: "fdic_edo", Healthy: true},
		"newsapi":  {Connector: "newsapi", Healthy: true},
	}
	if m.healthSick {
		statuses["newsapi"] = domain.HealthStatus{
			Connector: "newsapi", Healthy: false, Message: "API key missing",
		}
	}
	return statuses, nil
}

// mockCatalog implements driving.Catalog.
type mockCatalog struct {
	empty bool
	err   error
}

var _ driving.Catalog = (*mockCatalog)(nil)

func (m *mockCatalog) Get(_ context.Context, id string) (*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return nil, domain.ErrNotFound
	}
	event := sampleEvent()
	event.ID = id
	return &event, nil
}

func (m *mockCatalog) Query(_ context.Context, _ driven.EventQuery) ([]domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return nil, nil
	}
	return []domain.Event{sampleEvent()}, nil
}

func (m *mockCatalog) Stats(_ context.Context) (*driving.CatalogStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &driving.CatalogStats{}, nil
	}
	return &driving.CatalogStats{
		TotalEvents:       1,
		EarliestEventDate: "2024-03-12",
		LatestEventDate:   "2024-03-12",
		TotalPenaltiesUSD: 15000000,
		CategoryDistribution: map[domain.Category]int{
			domain.CategoryRegulatoryAction: 1,
			domain.CategoryFine:             1,
		},
		ConfidenceBreakdown: map[domain.Confidence]int{
			domain.ConfidenceMedium: 1,
		},
	}, nil
}

// mockScheduler implements driving.Scheduler.
type mockScheduler struct {
	started bool
	stopped bool
}

var _ driving.Scheduler = (*mockScheduler)(nil)

func (m *mockScheduler) Start(_ context.Context) error {
	m.started = true
	return nil
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

var errMock = errors.New("mock failure")
