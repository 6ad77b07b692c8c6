package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tse := &TransientSourceError{Source: "fdic_edo", Err: errors.New("timeout")}
	assert.True(t, IsTransient(tse))
	assert.True(t, IsTransient(fmt.Errorf("run failed: %w", tse)))

	sf := &StorageFault{Op: "upsert", Err: errors.New("disk full")}
	assert.True(t, IsTransient(sf))

	sse := &StructuralSourceError{Source: "fdic_edo", Err: errors.New("bad html")}
	assert.False(t, IsTransient(sse))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestIsStructural(t *testing.T) {
	sse := &StructuralSourceError{Source: "newsapi", Err: errors.New("schema drift")}
	assert.True(t, IsStructural(sse))
	assert.True(t, IsStructural(fmt.Errorf("record: %w", sse)))
	assert.False(t, IsStructural(errors.New("plain")))
}

func TestIsValidation(t *testing.T) {
	ve := &ValidationError{Field: "categories", Reason: "empty set"}
	assert.True(t, IsValidation(ve))
	assert.False(t, IsValidation(errors.New("plain")))
	assert.Contains(t, ve.Error(), "categories")
}

func TestErrorUnwrapping(t *testing.T) {
	inner := errors.New("connection reset")
	tse := &TransientSourceError{Source: "newsapi", Err: inner}
	assert.ErrorIs(t, tse, inner)

	sf := &StorageFault{Op: "upsert", Err: inner}
	assert.ErrorIs(t, sf, inner)
}
