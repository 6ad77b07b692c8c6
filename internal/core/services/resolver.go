package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/logger"
)

// defaultSimilarityThreshold is the minimum normalized Levenshtein
// similarity for a free-text name to match a known institution name.
// Measured after suffix folding, so "JPMorgan Chase Bank, N.A." and
// "JPMorgan Chase" compare as identical strings first.
const defaultSimilarityThreshold = 0.90

// Resolver maps institution references in raw records to stable
// identities. Structured identifiers resolve directly; free-text names
// match fuzzily against known current and historical names. References
// that cannot be resolved become placeholder identities rather than
// failures: an unrecognised bank name is expected input, not an error.
type Resolver struct {
	store     driven.InstitutionStore
	registry  driven.InstitutionRegistry
	threshold float64
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSimilarityThreshold overrides the fuzzy-match threshold.
func WithSimilarityThreshold(t float64) ResolverOption {
	return func(r *Resolver) { r.threshold = t }
}

// WithResolverClock overrides the clock, for tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver. The registry may be nil; without it
// first-time references resolve only against the local store.
func NewResolver(store driven.InstitutionStore, registry driven.InstitutionRegistry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:     store,
		registry:  registry,
		threshold: defaultSimilarityThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps one reference to an institution identity. The event date
// disambiguates name matches against historical name windows. A
// reference with no acceptable match returns a placeholder ref and a
// nil error; only storage and transient registry failures are errors.
func (r *Resolver) Resolve(ctx context.Context, ref domain.Reference, eventDate time.Time) (domain.InstitutionRef, error) {
	if ref.Identifier != "" {
		resolved, err := r.resolveByIdentifier(ctx, ref, eventDate)
		if err == nil {
			return resolved, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.InstitutionRef{}, err
		}
	}

	if ref.Name != "" {
		resolved, err := r.resolveByName(ctx, ref, eventDate)
		if err == nil {
			return resolved, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.InstitutionRef{}, err
		}
	}

	logger.Warn("resolver: no match for reference (identifier=%q name=%q), using placeholder", ref.Identifier, ref.Name)
	return domain.PlaceholderRef(ref), nil
}

func (r *Resolver) resolveByIdentifier(ctx context.Context, ref domain.Reference, eventDate time.Time) (domain.InstitutionRef, error) {
	key := "cert:" + ref.Identifier

	inst, err := r.store.Get(ctx, key)
	if err == nil {
		if err := r.recordNameEvidence(ctx, inst, ref.Name, eventDate); err != nil {
			return domain.InstitutionRef{}, err
		}
		return r.followSupersession(ctx, inst)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.InstitutionRef{}, fmt.Errorf("institution lookup %s: %w", key, err)
	}

	return r.lookupRegistry(ctx, ref)
}

func (r *Resolver) resolveByName(ctx context.Context, ref domain.Reference, eventDate time.Time) (domain.InstitutionRef, error) {
	normalized := domain.NormalizeName(ref.Name)
	if normalized == "" {
		return domain.InstitutionRef{}, domain.ErrNotFound
	}

	candidates, err := r.store.List(ctx)
	if err != nil {
		return domain.InstitutionRef{}, fmt.Errorf("listing institutions: %w", err)
	}

	best := r.bestMatches(candidates, normalized)
	switch len(best) {
	case 0:
		return r.lookupRegistry(ctx, ref)
	case 1:
		return r.followSupersession(ctx, &best[0])
	}

	// Multiple institutions matched equally well. A historical name
	// window overlapping the event date disambiguates; otherwise the
	// reference stays unresolved rather than guessing.
	if chosen := pickByNameWindow(best, normalized, eventDate); chosen != nil {
		return r.followSupersession(ctx, chosen)
	}
	logger.Warn("resolver: ambiguous name %q matched %d institutions, using placeholder", ref.Name, len(best))
	return domain.InstitutionRef{}, domain.ErrNotFound
}

// bestMatches returns all institutions tied at the highest similarity
// at or above the threshold.
func (r *Resolver) bestMatches(candidates []domain.Institution, normalized string) []domain.Institution {
	var (
		best      []domain.Institution
		bestScore float64
	)
	for i := range candidates {
		score := 0.0
		for _, name := range candidates[i].KnownNames() {
			if s := similarity(normalized, domain.NormalizeName(name)); s > score {
				score = s
			}
		}
		if score < r.threshold || score < bestScore {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = best[:0]
		}
		best = append(best, candidates[i])
	}
	return best
}

// pickByNameWindow selects the candidate whose matching historical
// name was in effect at the event date, preferring the most recent
// window. Returns nil when no window disambiguates.
func pickByNameWindow(candidates []domain.Institution, normalized string, eventDate time.Time) *domain.Institution {
	var (
		chosen *domain.Institution
		latest time.Time
	)
	if eventDate.IsZero() {
		return nil
	}
	for i := range candidates {
		for _, h := range candidates[i].HistoricalNames {
			if domain.NormalizeName(h.Name) != normalized {
				continue
			}
			if !h.EffectiveFrom.IsZero() && eventDate.Before(h.EffectiveFrom) {
				continue
			}
			if !h.EffectiveTo.IsZero() && eventDate.After(h.EffectiveTo) {
				continue
			}
			if chosen == nil || h.EffectiveTo.IsZero() || h.EffectiveTo.After(latest) {
				chosen = &candidates[i]
				latest = h.EffectiveTo
			}
		}
	}
	return chosen
}

// lookupRegistry enriches a first-time reference from the external
// registry. Registry misses surface as ErrNotFound so callers fall
// through; transient registry failures propagate for retry.
func (r *Resolver) lookupRegistry(ctx context.Context, ref domain.Reference) (domain.InstitutionRef, error) {
	if r.registry == nil {
		return domain.InstitutionRef{}, domain.ErrNotFound
	}

	inst, err := r.registry.Lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.InstitutionRef{}, domain.ErrNotFound
		}
		return domain.InstitutionRef{}, fmt.Errorf("registry lookup: %w", err)
	}

	now := r.now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	if err := r.store.Save(ctx, inst); err != nil {
		return domain.InstitutionRef{}, fmt.Errorf("saving institution %s: %w", inst.Key, err)
	}
	logger.Debug("resolver: registered institution %s (%s)", inst.Key, inst.CurrentName)
	return r.followSupersession(ctx, inst)
}

// recordNameEvidence appends a newly observed name to the institution's
// history. Name history is append-only; existing entries never change.
func (r *Resolver) recordNameEvidence(ctx context.Context, inst *domain.Institution, name string, observedAt time.Time) error {
	if name == "" {
		return nil
	}
	normalized := domain.NormalizeName(name)
	for _, known := range inst.KnownNames() {
		if domain.NormalizeName(known) == normalized {
			return nil
		}
	}

	inst.HistoricalNames = append(inst.HistoricalNames, domain.HistoricalName{
		Name:        name,
		EffectiveTo: observedAt,
	})
	inst.UpdatedAt = r.now()
	if err := r.store.Save(ctx, inst); err != nil {
		return fmt.Errorf("recording name %q for %s: %w", name, inst.Key, err)
	}
	logger.Debug("resolver: recorded name %q for %s", name, inst.Key)
	return nil
}

// followSupersession walks merged-away identities to the survivor.
// Traversal stops at the hop cap so cyclic source data cannot loop.
func (r *Resolver) followSupersession(ctx context.Context, inst *domain.Institution) (domain.InstitutionRef, error) {
	current := inst
	for hop := 0; hop < domain.MaxResolveHops && current.SupersededBy != ""; hop++ {
		next, err := r.store.Get(ctx, current.SupersededBy)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Dangling pointer: resolve to the last live identity.
				break
			}
			return domain.InstitutionRef{}, fmt.Errorf("following supersession of %s: %w", current.Key, err)
		}
		current = next
	}
	return current.Ref(), nil
}

// similarity is normalized Levenshtein similarity in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
