package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventStore = (*EventStore)(nil)

// EventStore is an in-memory implementation of driven.EventStore.
// A single lock serializes all upserts, which trivially satisfies the
// per-identity atomicity contract.
type EventStore struct {
	mu          sync.RWMutex
	events      map[string]domain.Event
	aliases     map[string]string
	fingerprint map[string]string
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:      make(map[string]domain.Event),
		aliases:     make(map[string]string),
		fingerprint: make(map[string]string),
	}
}

// Upsert inserts or merges the event. Malformed events are rejected
// before any write.
func (s *EventStore) Upsert(_ context.Context, event *domain.Event) (driven.UpsertOutcome, error) {
	if err := requiredFields(event); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existingID, found := s.resolveLocked(event)
	if !found {
		stored := *event
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		s.events[stored.ID] = stored
		if stored.Fingerprint != "" {
			s.fingerprint[stored.Fingerprint] = stored.ID
		}
		return driven.UpsertCreated, nil
	}

	existing := s.events[existingID]
	merged := domain.Merge(existing, *event)
	merged.UpdatedAt = now

	if merged.ID != existingID {
		delete(s.events, existingID)
		for alias, target := range s.aliases {
			if target == existingID {
				s.aliases[alias] = merged.ID
			}
		}
		s.aliases[existingID] = merged.ID
	}
	if event.ID != merged.ID {
		s.aliases[event.ID] = merged.ID
	}

	s.events[merged.ID] = merged
	if merged.Fingerprint != "" {
		s.fingerprint[merged.Fingerprint] = merged.ID
	}
	return driven.UpsertMerged, nil
}

// requiredFields rejects a malformed event before any write. Normalized
// events always pass; the check guards the store against other callers.
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

// resolveLocked finds the stored event the incoming one corroborates:
// by ID, by alias, then by content fingerprint.
func (s *EventStore) resolveLocked(event *domain.Event) (string, bool) {
	if _, ok := s.events[event.ID]; ok {
		return event.ID, true
	}
	if canonical, ok := s.aliases[event.ID]; ok {
		return canonical, true
	}
	if event.Fingerprint != "" {
		if id, ok := s.fingerprint[event.Fingerprint]; ok {
			return id, true
		}
	}
	return "", false
}

// Get retrieves an event by ID or merge alias.
func (s *EventStore) Get(_ context.Context, id string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if event, ok := s.events[id]; ok {
		return &event, nil
	}
	if canonical, ok := s.aliases[id]; ok {
		if event, ok := s.events[canonical]; ok {
			return &event, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Query returns events matching the filter, newest event date first.
func (s *EventStore) Query(_ context.Context, q driven.EventQuery) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Event
	for _, event := range s.events {
		if matches(event, q) {
			result = append(result, event)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EventDate.Equal(result[j].EventDate) {
			return result[i].EventDate.After(result[j].EventDate)
		}
		return result[i].ID < result[j].ID
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func matches(event domain.Event, q driven.EventQuery) bool {
	if !q.From.IsZero() && event.EventDate.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && event.EventDate.After(q.To) {
		return false
	}
	if q.InstitutionKey != "" {
		found := false
		for _, inst := range event.Institutions {
			if inst.Key == q.InstitutionKey {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Categories) > 0 {
		found := false
		for _, want := range q.Categories {
			for _, have := range event.Categories {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}
