package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// institutionStore implements driven.InstitutionStore.
type institutionStore struct {
	store *Store
}

var _ driven.InstitutionStore = (*institutionStore)(nil)

// Save stores or updates an institution identity.
func (s *institutionStore) Save(ctx context.Context, inst *domain.Institution) error {
	if inst == nil || inst.Key == "" {
		return domain.ErrInvalidInput
	}

	namesJSON, err := json.Marshal(inst.HistoricalNames)
	if err != nil {
		return fmt.Errorf("marshalling historical names: %w", err)
	}

	now := time.Now().UTC()
	createdAt := inst.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := inst.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO institutions (key, current_name, historical_names, parent_key, superseded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			current_name = excluded.current_name,
			historical_names = excluded.historical_names,
			parent_key = excluded.parent_key,
			superseded_by = excluded.superseded_by,
			updated_at = excluded.updated_at
	`, inst.Key, inst.CurrentName, string(namesJSON),
		nullString(inst.ParentKey), nullString(inst.SupersededBy),
		createdAt, updatedAt)
	if err != nil {
		return &domain.StorageFault{Op: "save institution", Err: err}
	}
	return nil
}

// Get retrieves an identity by stable key.
func (s *institutionStore) Get(ctx context.Context, key string) (*domain.Institution, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT key, current_name, historical_names, parent_key, superseded_by, created_at, updated_at
		FROM institutions WHERE key = ?
	`, key)

	return scanInstitution(row)
}

// List returns all identities.
func (s *institutionStore) List(ctx context.Context) ([]domain.Institution, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT key, current_name, historical_names, parent_key, superseded_by, created_at, updated_at
		FROM institutions
	`)
	if err != nil {
		return nil, fmt.Errorf("querying institutions: %w", err)
	}
	defer rows.Close()

	var institutions []domain.Institution //nolint:prealloc // size unknown from query
	for rows.Next() {
		inst, err := scanInstitutionRows(rows)
		if err != nil {
			return nil, err
		}
		institutions = append(institutions, *inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating institutions: %w", err)
	}
	return institutions, nil
}

func scanInstitution(row *sql.Row) (*domain.Institution, error) {
	inst, err := scanInstitutionScanner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning institution: %w", err)
	}
	return inst, nil
}

func scanInstitutionRows(rows *sql.Rows) (*domain.Institution, error) {
	inst, err := scanInstitutionScanner(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning institution: %w", err)
	}
	return inst, nil
}

func scanInstitutionScanner(row rowScanner) (*domain.Institution, error) {
	var (
		inst                    domain.Institution
		namesJSON               string
		parentKey, supersededBy sql.NullString
	)
	if err := row.Scan(&inst.Key, &inst.CurrentName, &namesJSON,
		&parentKey, &supersededBy, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(namesJSON), &inst.HistoricalNames); err != nil {
		return nil, fmt.Errorf("unmarshalling historical names: %w", err)
	}
	inst.ParentKey = parentKey.String
	inst.SupersededBy = supersededBy.String
	return &inst, nil
}
