package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

func testEvent(id, title string, date time.Time, keys ...string) *domain.Event {
	if len(keys) == 0 {
		keys = []string{"cert:3511"}
	}
	insts := make([]domain.InstitutionRef, len(keys))
	for i, k := range keys {
		insts[i] = domain.InstitutionRef{Key: k, Name: k}
	}
	return &domain.Event{
		ID:               id,
		Fingerprint:      domain.Fingerprint(title, date, keys),
		Title:            title,
		Institutions:     insts,
		EventDate:        date,
		ReportedDates:    []time.Time{date},
		Categories:       []domain.Category{domain.CategoryRegulatoryAction},
		MaterialityScore: 2,
		Sources: []domain.SourceRef{
			{SourceName: "fdic_edo", ExternalID: id, Type: domain.SourceRegulator},
		},
	}
}

func TestEventStore_UpsertCreates(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	outcome, err := store.Upsert(ctx, testEvent("ev-1", "Consent Order", date(2024, 3, 12)))
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertCreated, outcome)

	got, err := store.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Consent Order", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestEventStore_UpsertIsIdempotent(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	event := testEvent("ev-1", "Consent Order", date(2024, 3, 12))

	_, err := store.Upsert(ctx, event)
	require.NoError(t, err)
	outcome, err := store.Upsert(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertMerged, outcome)

	events, err := store.Query(ctx, driven.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].MaterialityScore)
}

func TestEventStore_FingerprintMergeAcrossSources(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	day := date(2024, 3, 12)

	a := testEvent("fdic-edo-a", "Example Bank data breach", day)
	b := testEvent("newsapi-b", "Example Bank Data Breach", day)
	b.Sources = []domain.SourceRef{
		{SourceName: "newsapi", ExternalID: "b", Type: domain.SourceMedia},
	}
	require.Equal(t, a.Fingerprint, b.Fingerprint)

	_, err := store.Upsert(ctx, a)
	require.NoError(t, err)
	outcome, err := store.Upsert(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, driven.UpsertMerged, outcome)

	events, err := store.Query(ctx, driven.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, events[0].Sources, 2)

	// Both original IDs resolve to the merged event.
	byA, err := store.Get(ctx, "fdic-edo-a")
	require.NoError(t, err)
	byB, err := store.Get(ctx, "newsapi-b")
	require.NoError(t, err)
	assert.Equal(t, byA.ID, byB.ID)
}

func TestEventStore_MergeOrderIndependent(t *testing.T) {
	day := date(2024, 3, 12)
	mk := func() (*domain.Event, *domain.Event) {
		a := testEvent("id-a", "Example Bank data breach", day)
		b := testEvent("id-b", "Example Bank Data Breach at HQ", day)
		b.MaterialityScore = 4
		b.Sources = []domain.SourceRef{
			{SourceName: "newsapi", ExternalID: "b", Type: domain.SourceMedia},
		}
		b.Fingerprint = a.Fingerprint
		return a, b
	}

	ctx := context.Background()

	s1 := NewEventStore()
	a1, b1 := mk()
	_, err := s1.Upsert(ctx, a1)
	require.NoError(t, err)
	_, err = s1.Upsert(ctx, b1)
	require.NoError(t, err)

	s2 := NewEventStore()
	a2, b2 := mk()
	_, err = s2.Upsert(ctx, b2)
	require.NoError(t, err)
	_, err = s2.Upsert(ctx, a2)
	require.NoError(t, err)

	e1, err := s1.Get(ctx, "id-a")
	require.NoError(t, err)
	e2, err := s2.Get(ctx, "id-a")
	require.NoError(t, err)

	assert.Equal(t, e1.ID, e2.ID)
	assert.Equal(t, e1.Title, e2.Title)
	assert.Equal(t, e1.MaterialityScore, e2.MaterialityScore)
	assert.Equal(t, len(e1.Sources), len(e2.Sources))
}

func TestEventStore_UpsertRejectsMalformed(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, &domain.Event{ID: "bad-event"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noInstitutions := testEvent("ev-1", "Consent Order", date(2024, 3, 12))
	noInstitutions.Institutions = nil
	_, err = store.Upsert(ctx, noInstitutions)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nothing was written.
	_, err = store.Get(ctx, "bad-event")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, "ev-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventStore_GetMissing(t *testing.T) {
	store := NewEventStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventStore_QueryFilters(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	breach := testEvent("ev-breach", "Data breach", date(2024, 1, 1), "cert:1")
	breach.Categories = []domain.Category{domain.CategoryDataBreach}
	fine := testEvent("ev-fine", "Fine", date(2025, 1, 1), "cert:2")
	fine.Categories = []domain.Category{domain.CategoryFine}

	_, err := store.Upsert(ctx, breach)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, fine)
	require.NoError(t, err)

	got, err := store.Query(ctx, driven.EventQuery{Categories: []domain.Category{domain.CategoryFine}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-fine", got[0].ID)

	got, err = store.Query(ctx, driven.EventQuery{InstitutionKey: "cert:1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-breach", got[0].ID)

	got, err = store.Query(ctx, driven.EventQuery{From: date(2024, 6, 1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-fine", got[0].ID)

	// Newest event date first.
	got, err = store.Query(ctx, driven.EventQuery{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-fine", got[0].ID)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
