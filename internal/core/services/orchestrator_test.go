package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// mockEventStore implements driven.EventStore over the domain merge.
type mockEventStore struct {
	mu      sync.Mutex
	events  map[string]*domain.Event
	byPrint map[string]string
	upserts int
	failN   int // fail the first N upserts with a storage fault
}

var _ driven.EventStore = (*mockEventStore)(nil)

func newMockEventStore() *mockEventStore {
	return &mockEventStore{
		events:  make(map[string]*domain.Event),
		byPrint: make(map[string]string),
	}
}

func (m *mockEventStore) Upsert(_ context.Context, event *domain.Event) (driven.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failN > 0 {
		m.failN--
		return "", &domain.StorageFault{Op: "upsert", Err: errors.New("disk unavailable")}
	}

	key := event.ID
	if existingID, ok := m.byPrint[event.Fingerprint]; ok {
		key = existingID
	}
	if existing, ok := m.events[key]; ok {
		merged := domain.Merge(*existing, *event)
		m.events[key] = &merged
		m.byPrint[merged.Fingerprint] = key
		return driven.UpsertMerged, nil
	}
	cp := *event
	m.events[event.ID] = &cp
	m.byPrint[event.Fingerprint] = event.ID
	return driven.UpsertCreated, nil
}

func (m *mockEventStore) Get(_ context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockEventStore) Query(_ context.Context, q driven.EventQuery) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		out = append(out, *e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// mockConnector implements driven.Connector over canned records.
type mockConnector struct {
	name        string
	records     []*domain.RawRecord
	discoverErr error
	fetchFailN  map[string]int // per-external-id transient failures
	validateErr error

	mu      sync.Mutex
	fetches map[string]int
	closed  bool
}

var _ driven.Connector = (*mockConnector)(nil)

func newMockConnector(name string, records ...*domain.RawRecord) *mockConnector {
	return &mockConnector{
		name:       name,
		records:    records,
		fetchFailN: make(map[string]int),
		fetches:    make(map[string]int),
	}
}

func (c *mockConnector) Name() string { return c.name }

func (c *mockConnector) Validate(_ context.Context) error { return c.validateErr }

func (c *mockConnector) Discover(ctx context.Context, _ time.Time) (<-chan domain.RecordHandle, <-chan error) {
	handles := make(chan domain.RecordHandle)
	errs := make(chan error, 1)
	go func() {
		defer close(handles)
		defer close(errs)
		for _, rec := range c.records {
			select {
			case handles <- domain.RecordHandle{Source: rec.Source, ExternalID: rec.ExternalID, URL: rec.URL}:
			case <-ctx.Done():
				return
			}
		}
		if c.discoverErr != nil {
			errs <- c.discoverErr
		}
	}()
	return handles, errs
}

func (c *mockConnector) Fetch(_ context.Context, handle domain.RecordHandle) (*domain.RawRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches[handle.ExternalID]++
	if n := c.fetchFailN[handle.ExternalID]; n > 0 {
		c.fetchFailN[handle.ExternalID] = n - 1
		return nil, &domain.TransientSourceError{Source: c.name, Err: errors.New("timeout")}
	}
	for _, rec := range c.records {
		if rec.ExternalID == handle.ExternalID {
			return rec, nil
		}
	}
	return nil, &domain.StructuralSourceError{Source: c.name, Err: errors.New("record vanished")}
}

func (c *mockConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func fastConfig() domain.CollectionConfig {
	cfg := domain.DefaultCollectionConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func enforcementRecordN(id string) *domain.RawRecord {
	rec := enforcementRecord()
	rec.ExternalID = id
	rec.Enforcement.Title = "Consent Order " + id
	return rec
}

func newTestOrchestrator(t *testing.T, store *mockEventStore, connectors ...driven.Connector) *CollectionOrchestrator {
	t.Helper()
	instStore := newMockInstitutionStore()
	seedInstitution(t, instStore, domain.Institution{Key: "cert:3511", CurrentName: "Example Bank"})
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	resolver := NewResolver(instStore, nil, WithResolverClock(fixedClock(now)))
	normalizer := NewNormalizer(DefaultMappingConfig(), resolver, WithNormalizerClock(fixedClock(now)))
	return NewCollectionOrchestrator(connectors, normalizer, store, fastConfig())
}

func TestRun_StoresAllRecords(t *testing.T) {
	store := newMockEventStore()
	conn := newMockConnector("fdic_edo",
		enforcementRecordN("ORD-1"), enforcementRecordN("ORD-2"), enforcementRecordN("ORD-3"))
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, result.State)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.Normalized)
	assert.Equal(t, 3, result.Stored)
	assert.Equal(t, 0, result.Failed)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, store.events, 3)
}

func TestRun_UnknownConnector(t *testing.T) {
	o := newTestOrchestrator(t, newMockEventStore())

	_, err := o.Run(context.Background(), "nope", time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownConnector)
}

func TestRun_RecordFailureDoesNotAbortRun(t *testing.T) {
	store := newMockEventStore()
	bad := enforcementRecordN("ORD-BAD")
	bad.Enforcement.IssuedDate = time.Time{} // fails validation
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"), bad, enforcementRecordN("ORD-2"))
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, result.State)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 1, result.Failed)
}

func TestRun_TransientFetchRetries(t *testing.T) {
	store := newMockEventStore()
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	conn.fetchFailN["ORD-1"] = 2 // succeeds on the third attempt
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 3, conn.fetches["ORD-1"])
}

func TestRun_TransientFetchExhaustsRetries(t *testing.T) {
	store := newMockEventStore()
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	conn.fetchFailN["ORD-1"] = 10 // more than MaxAttempts
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	// The record is a failure, not a run failure.
	assert.Equal(t, domain.RunCompleted, result.State)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Stored)
}

func TestRun_TransientStoreRetries(t *testing.T) {
	store := newMockEventStore()
	store.failN = 1
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 2, store.upserts)
}

func TestRun_DiscoveryFailureFailsRun(t *testing.T) {
	store := newMockEventStore()
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	conn.discoverErr = &domain.StructuralSourceError{Source: "fdic_edo", Err: errors.New("schema drift")}
	o := newTestOrchestrator(t, store, conn)

	result, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.Error(t, err)
	assert.Equal(t, domain.RunFailed, result.State)
	assert.NotEmpty(t, result.Err)
	// Records streamed before the failure stay committed.
	assert.Equal(t, 1, result.Stored)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	store := newMockEventStore()
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"), enforcementRecordN("ORD-2"))
	o := newTestOrchestrator(t, store, conn)

	_, err := o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)
	_, err = o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	assert.Len(t, store.events, 2)
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	o := newTestOrchestrator(t, newMockEventStore(), newMockConnector("fdic_edo"))

	// Simulate an in-flight run.
	_, err := o.beginRun("fdic_edo", time.Time{})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "fdic_edo", time.Time{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	store := newMockEventStore()
	good := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	broken := newMockConnector("newsapi")
	broken.discoverErr = &domain.StructuralSourceError{Source: "newsapi", Err: errors.New("bad response")}
	o := newTestOrchestrator(t, store, good, broken)

	results, err := o.RunAll(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.RunCompleted, results["fdic_edo"].State)
	assert.Equal(t, 1, results["fdic_edo"].Stored)
	assert.Equal(t, domain.RunFailed, results["newsapi"].State)
	assert.NotEmpty(t, results["newsapi"].Err)
}

func TestStatus(t *testing.T) {
	conn := newMockConnector("fdic_edo", enforcementRecordN("ORD-1"))
	o := newTestOrchestrator(t, newMockEventStore(), conn)

	// Before any run: pending zero state.
	status, err := o.Status(context.Background(), "fdic_edo")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPending, status.State)

	_, err = o.Run(context.Background(), "fdic_edo", time.Time{})
	require.NoError(t, err)

	status, err = o.Status(context.Background(), "fdic_edo")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, status.State)
	assert.Equal(t, 1, status.Stored)

	_, err = o.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownConnector)
}

func TestHealthCheck(t *testing.T) {
	healthy := newMockConnector("fdic_edo")
	sick := newMockConnector("newsapi")
	sick.validateErr = errors.New("401 unauthorized")
	o := newTestOrchestrator(t, newMockEventStore(), healthy, sick)

	statuses, err := o.HealthCheck(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.True(t, statuses["fdic_edo"].Healthy)
	assert.False(t, statuses["newsapi"].Healthy)
	assert.Contains(t, statuses["newsapi"].Message, "401")
}

func TestClose_ClosesConnectors(t *testing.T) {
	conn := newMockConnector("fdic_edo")
	o := newTestOrchestrator(t, newMockEventStore(), conn)

	require.NoError(t, o.Close())
	assert.True(t, conn.closed)
}
