package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// Ensure InstitutionStore implements the interface.
var _ driven.InstitutionStore = (*InstitutionStore)(nil)

// InstitutionStore is an in-memory implementation of driven.InstitutionStore.
type InstitutionStore struct {
	mu           sync.RWMutex
	institutions map[string]domain.Institution
}

// NewInstitutionStore creates a new in-memory institution store.
func NewInstitutionStore() *InstitutionStore {
	return &InstitutionStore{
		institutions: make(map[string]domain.Institution),
	}
}

// Save stores or updates an institution identity.
func (s *InstitutionStore) Save(_ context.Context, inst *domain.Institution) error {
	if inst == nil || inst.Key == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *inst
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.HistoricalNames = append([]domain.HistoricalName(nil), inst.HistoricalNames...)
	s.institutions[inst.Key] = stored
	return nil
}

// Get retrieves an identity by stable key.
func (s *InstitutionStore) Get(_ context.Context, key string) (*domain.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.institutions[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &inst, nil
}

// List returns all identities.
func (s *InstitutionStore) List(_ context.Context) ([]domain.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Institution, 0, len(s.institutions))
	for _, inst := range s.institutions {
		result = append(result, inst)
	}
	return result, nil
}
