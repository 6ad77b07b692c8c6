package services

import (
	"strings"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// MaterialitySignals are the non-monetary severity indicators derived
// from source text.
type MaterialitySignals struct {
	BankFailure       bool
	MassLayoffs       bool
	SignificantOutage bool
}

// SignalsFromText scans title and summary text for severity indicators.
func SignalsFromText(texts ...string) MaterialitySignals {
	joined := strings.ToLower(strings.Join(texts, " "))
	return MaterialitySignals{
		BankFailure: strings.Contains(joined, "bank failure") ||
			strings.Contains(joined, "receivership") ||
			strings.Contains(joined, "bank closure"),
		MassLayoffs: strings.Contains(joined, "mass layoff") ||
			strings.Contains(joined, "mass layoffs"),
		SignificantOutage: strings.Contains(joined, "widespread outage") ||
			strings.Contains(joined, "nationwide outage") ||
			strings.Contains(joined, "multi-day outage"),
	}
}

// Penalty thresholds in whole US dollars.
const (
	penaltyTier5 = 1_000_000_000
	penaltyTier4 = 100_000_000
	penaltyTier3 = 10_000_000
	penaltyTier2 = 1_000_000
)

// Customers-affected thresholds.
const (
	customersTier5 = 5_000_000
	customersTier4 = 1_000_000
	customersTier3 = 100_000
	customersTier2 = 10_000
)

// MaterialityScore rates severity 1-5 by evaluating the tier rules in
// descending order; the first matching tier wins. Events with no
// matching rule score 1, never zero.
func MaterialityScore(amounts map[domain.AmountKind]domain.Amount, categories []domain.Category, signals MaterialitySignals) int {
	penalty := maxMonetary(amounts)
	customers := amounts[domain.AmountCustomersAffected].Value

	switch {
	case penalty >= penaltyTier5, customers >= customersTier5, signals.BankFailure:
		return 5
	case penalty >= penaltyTier4, customers >= customersTier4, signals.MassLayoffs:
		return 4
	case penalty >= penaltyTier3, customers >= customersTier3, signals.SignificantOutage:
		return 3
	case penalty >= penaltyTier2, customers >= customersTier2, hasCategory(categories, domain.CategoryExecutiveMisconduct):
		return 2
	default:
		return 1
	}
}

// maxMonetary takes the larger of penalty and settlement so a large
// settlement without a formal penalty still registers.
func maxMonetary(amounts map[domain.AmountKind]domain.Amount) int64 {
	penalty := amounts[domain.AmountPenalty].Value
	if settlement := amounts[domain.AmountSettlement].Value; settlement > penalty {
		return settlement
	}
	return penalty
}

func hasCategory(categories []domain.Category, want domain.Category) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}
