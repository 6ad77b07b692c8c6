package driven

import (
	"context"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// InstitutionStore persists resolved institution identities.
// Identities are created on first resolution; historical names are
// append-only, and merged institutions keep their row with a
// supersession pointer so old-key lookups still succeed.
type InstitutionStore interface {
	// Save stores or updates an institution identity.
	Save(ctx context.Context, inst *domain.Institution) error

	// Get retrieves an identity by stable key.
	Get(ctx context.Context, key string) (*domain.Institution, error)

	// List returns all identities. The resolver matches free-text
	// references against current and historical names.
	List(ctx context.Context) ([]domain.Institution, error)
}
