package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

func TestMapCategory_KnownPhrase(t *testing.T) {
	m := DefaultMappingConfig()

	cat, ok := m.MapCategory("Consent Order issued against Example Bank")
	require.True(t, ok)
	assert.Equal(t, domain.CategoryRegulatoryAction, cat)
}

func TestMapCategory_UnknownFailsClosed(t *testing.T) {
	m := DefaultMappingConfig()

	cat, ok := m.MapCategory("quarterly earnings beat expectations")
	assert.False(t, ok)
	assert.Equal(t, domain.CategoryOther, cat)
}

func TestMapCategories_CollectsDistinct(t *testing.T) {
	m := DefaultMappingConfig()

	cats := m.MapCategories("Consent Order and Civil Money Penalty for BSA violation")
	assert.ElementsMatch(t, []domain.Category{
		domain.CategoryRegulatoryAction,
		domain.CategoryFine,
		domain.CategorySanctionsAML,
	}, cats)
}

func TestMapCategories_Deterministic(t *testing.T) {
	m := DefaultMappingConfig()

	first := m.MapCategories("data breach lawsuit and fraud")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.MapCategories("data breach lawsuit and fraud"))
	}
}

func TestMapRegulator(t *testing.T) {
	m := DefaultMappingConfig()

	assert.Equal(t, "OCC", m.MapRegulator("Office of the Comptroller of the Currency"))
	assert.Equal(t, "FDIC", m.MapRegulator("FDIC"))
	assert.Equal(t, "CFPB", m.MapRegulator("Consumer Financial Protection Bureau"))
	assert.Equal(t, "Other", m.MapRegulator("Ministry of Silly Walks"))
}

func TestParseMoneyUSD(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int64
		ok   bool
	}{
		{"millions", "fined $25 million for violations", 25_000_000, true},
		{"billions", "a record $3 billion settlement", 3_000_000_000, true},
		{"decimal", "$1.5 million penalty", 1_500_000, true},
		{"plain with commas", "penalty of $250,000", 250_000, true},
		{"thousand suffix", "paid $500k in fines", 500_000, true},
		{"largest wins", "paid $50,000 on top of a $10 million penalty", 10_000_000, true},
		{"no amount", "no monetary penalty was assessed", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMoneyUSD(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
