package driven

import (
	"context"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// InstitutionRegistry looks institutions up in an external registry
// (FDIC BankFind Suite) to enrich first-time resolutions.
type InstitutionRegistry interface {
	// Lookup finds an institution by structured identifier or name.
	// Returns domain.ErrNotFound when the registry has no match.
	Lookup(ctx context.Context, ref domain.Reference) (*domain.Institution, error)
}
