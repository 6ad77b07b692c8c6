package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// eventStore implements driven.EventStore.
type eventStore struct {
	store *Store
}

var _ driven.EventStore = (*eventStore)(nil)

// Upsert inserts or merges the event. The read-merge-write cycle for
// one identity runs under per-key locks and a transaction;
// re-ingesting identical input is a no-op beyond timestamps.
func (s *eventStore) Upsert(ctx context.Context, event *domain.Event) (driven.UpsertOutcome, error) {
	if err := requiredFields(event); err != nil {
		return "", err
	}

	// Lock both identity keys: concurrent upserts can share an event ID
	// while carrying different fingerprints, or vice versa. Sorted
	// acquisition keeps the lock order globally consistent.
	lockKeys := []string{event.ID}
	if event.Fingerprint != "" && event.Fingerprint != event.ID {
		lockKeys = append(lockKeys, event.Fingerprint)
		sort.Strings(lockKeys)
	}
	for _, key := range lockKeys {
		unlock := s.store.upsertLocks.lock(key)
		defer unlock()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &domain.StorageFault{Op: "upsert", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := s.findExisting(ctx, tx, event)
	if err != nil {
		return "", &domain.StorageFault{Op: "upsert", Err: err}
	}

	now := time.Now().UTC()
	outcome := driven.UpsertCreated

	stored := *event
	if existing != nil {
		stored = domain.Merge(*existing, *event)
		outcome = driven.UpsertMerged
		stored.UpdatedAt = now

		// The merge may pick the incoming ID as canonical; the
		// absorbed row goes away and its ID becomes an alias.
		if stored.ID != existing.ID {
			if err := s.retireRow(ctx, tx, existing.ID, stored.ID); err != nil {
				return "", &domain.StorageFault{Op: "upsert", Err: err}
			}
		}
		if event.ID != stored.ID {
			if err := s.addAlias(ctx, tx, event.ID, stored.ID); err != nil {
				return "", &domain.StorageFault{Op: "upsert", Err: err}
			}
		}
	} else {
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
	}

	if err := s.writeRow(ctx, tx, &stored); err != nil {
		return "", &domain.StorageFault{Op: "upsert", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return "", &domain.StorageFault{Op: "upsert", Err: err}
	}
	return outcome, nil
}

// requiredFields rejects a malformed event before any write reaches
// the database. Normalized events always pass; the check guards the
// store against other callers.
func requiredFields(event *domain.Event) error {
	switch {
	case event == nil:
		return fmt.Errorf("%w: nil event", domain.ErrInvalidInput)
	case event.ID == "":
		return fmt.Errorf("%w: event id missing", domain.ErrInvalidInput)
	case event.Title == "":
		return fmt.Errorf("%w: event title missing", domain.ErrInvalidInput)
	case len(event.Categories) == 0:
		return fmt.Errorf("%w: event categories missing", domain.ErrInvalidInput)
	case len(event.Institutions) == 0:
		return fmt.Errorf("%w: event institutions missing", domain.ErrInvalidInput)
	case len(event.Sources) == 0:
		return fmt.Errorf("%w: event sources missing", domain.ErrInvalidInput)
	}
	return nil
}

// findExisting resolves the stored event the incoming one corroborates:
// by ID, by recorded alias, then by content fingerprint.
func (s *eventStore) findExisting(ctx context.Context, tx *sql.Tx, event *domain.Event) (*domain.Event, error) {
	existing, err := scanEventRow(tx.QueryRowContext(ctx, selectEvent+" WHERE id = ?", event.ID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var canonical string
	err = tx.QueryRowContext(ctx, "SELECT event_id FROM event_aliases WHERE alias = ?", event.ID).Scan(&canonical)
	switch {
	case err == nil:
		return scanEventRow(tx.QueryRowContext(ctx, selectEvent+" WHERE id = ?", canonical))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("resolving alias: %w", err)
	}

	if event.Fingerprint == "" {
		return nil, nil
	}
	existing, err = scanEventRow(tx.QueryRowContext(ctx, selectEvent+" WHERE fingerprint = ?", event.Fingerprint))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return existing, err
}

// retireRow removes an absorbed event row, re-points its aliases at
// the survivor, and records the absorbed ID itself as an alias.
func (s *eventStore) retireRow(ctx context.Context, tx *sql.Tx, absorbedID, survivorID string) error {
	for _, q := range []string{
		"DELETE FROM events WHERE id = ?",
		"DELETE FROM event_institutions WHERE event_id = ?",
		"DELETE FROM event_categories WHERE event_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, absorbedID); err != nil {
			return fmt.Errorf("retiring event %s: %w", absorbedID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE event_aliases SET event_id = ? WHERE event_id = ?", survivorID, absorbedID); err != nil {
		return fmt.Errorf("re-pointing aliases of %s: %w", absorbedID, err)
	}
	return s.addAlias(ctx, tx, absorbedID, survivorID)
}

func (s *eventStore) addAlias(ctx context.Context, tx *sql.Tx, alias, eventID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO event_aliases (alias, event_id) VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET event_id = excluded.event_id
	`, alias, eventID)
	if err != nil {
		return fmt.Errorf("recording alias %s: %w", alias, err)
	}
	return nil
}

// writeRow upserts the event row and rebuilds its join-table entries.
func (s *eventStore) writeRow(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	reportedJSON, err := json.Marshal(event.ReportedDates)
	if err != nil {
		return fmt.Errorf("marshalling reported dates: %w", err)
	}
	categoriesJSON, err := json.Marshal(event.Categories)
	if err != nil {
		return fmt.Errorf("marshalling categories: %w", err)
	}
	institutionsJSON, err := json.Marshal(event.Institutions)
	if err != nil {
		return fmt.Errorf("marshalling institutions: %w", err)
	}
	amountsJSON, err := json.Marshal(event.Amounts)
	if err != nil {
		return fmt.Errorf("marshalling amounts: %w", err)
	}
	sourcesJSON, err := json.Marshal(event.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, fingerprint, title, event_date, reported_dates, categories,
			institutions, amounts, materiality_score, summary, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			title = excluded.title,
			event_date = excluded.event_date,
			reported_dates = excluded.reported_dates,
			categories = excluded.categories,
			institutions = excluded.institutions,
			amounts = excluded.amounts,
			materiality_score = excluded.materiality_score,
			summary = excluded.summary,
			sources = excluded.sources,
			updated_at = excluded.updated_at
	`, event.ID, event.Fingerprint, event.Title, event.EventDate.UTC(),
		string(reportedJSON), string(categoriesJSON), string(institutionsJSON),
		string(amountsJSON), event.MaterialityScore, event.Summary,
		string(sourcesJSON), event.CreatedAt.UTC(), event.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving event: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM event_institutions WHERE event_id = ?",
		"DELETE FROM event_categories WHERE event_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, event.ID); err != nil {
			return fmt.Errorf("clearing join rows: %w", err)
		}
	}
	for _, inst := range event.Institutions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO event_institutions (event_id, institution_key) VALUES (?, ?)",
			event.ID, inst.Key); err != nil {
			return fmt.Errorf("saving institution link: %w", err)
		}
	}
	for _, cat := range event.Categories {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO event_categories (event_id, category) VALUES (?, ?)",
			event.ID, string(cat)); err != nil {
			return fmt.Errorf("saving category link: %w", err)
		}
	}
	return nil
}

// Get retrieves an event by ID or merge alias.
func (s *eventStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	event, err := scanEventRow(s.store.db.QueryRowContext(ctx, selectEvent+" WHERE id = ?", id))
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var canonical string
	err = s.store.db.QueryRowContext(ctx,
		"SELECT event_id FROM event_aliases WHERE alias = ?", id).Scan(&canonical)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("resolving alias: %w", err)
	}
	return scanEventRow(s.store.db.QueryRowContext(ctx, selectEvent+" WHERE id = ?", canonical))
}

// Query returns events matching the filter, newest event date first.
func (s *eventStore) Query(ctx context.Context, q driven.EventQuery) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "event_date >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		where = append(where, "event_date <= ?")
		args = append(args, q.To.UTC())
	}
	if q.InstitutionKey != "" {
		where = append(where, "id IN (SELECT event_id FROM event_institutions WHERE institution_key = ?)")
		args = append(args, q.InstitutionKey)
	}
	if len(q.Categories) > 0 {
		placeholders := strings.Repeat("?,", len(q.Categories))
		where = append(where,
			"id IN (SELECT event_id FROM event_categories WHERE category IN ("+placeholders[:len(placeholders)-1]+"))")
		for _, c := range q.Categories {
			args = append(args, string(c))
		}
	}

	query := selectEvent
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date DESC, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event //nolint:prealloc // size unknown from query
	for rows.Next() {
		event, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

const selectEvent = `
	SELECT id, fingerprint, title, event_date, reported_dates, categories,
		institutions, amounts, materiality_score, summary, sources, created_at, updated_at
	FROM events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		event            domain.Event
		reportedJSON     string
		categoriesJSON   string
		institutionsJSON string
		amountsJSON      sql.NullString
		sourcesJSON      string
	)
	if err := row.Scan(&event.ID, &event.Fingerprint, &event.Title, &event.EventDate,
		&reportedJSON, &categoriesJSON, &institutionsJSON, &amountsJSON,
		&event.MaterialityScore, &event.Summary, &sourcesJSON,
		&event.CreatedAt, &event.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(reportedJSON), &event.ReportedDates); err != nil {
		return nil, fmt.Errorf("unmarshalling reported dates: %w", err)
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &event.Categories); err != nil {
		return nil, fmt.Errorf("unmarshalling categories: %w", err)
	}
	if err := json.Unmarshal([]byte(institutionsJSON), &event.Institutions); err != nil {
		return nil, fmt.Errorf("unmarshalling institutions: %w", err)
	}
	if amountsJSON.Valid && amountsJSON.String != "null" {
		if err := json.Unmarshal([]byte(amountsJSON.String), &event.Amounts); err != nil {
			return nil, fmt.Errorf("unmarshalling amounts: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &event.Sources); err != nil {
		return nil, fmt.Errorf("unmarshalling sources: %w", err)
	}
	return &event, nil
}

func scanEventRow(row *sql.Row) (*domain.Event, error) {
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	return event, nil
}

func scanEventRows(rows *sql.Rows) (*domain.Event, error) {
	event, err := scanEvent(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	return event, nil
}
