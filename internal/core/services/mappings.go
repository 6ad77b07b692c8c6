package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// MappingConfig is the per-source vocabulary mapping passed to the
// Normalizer at construction. Immutable after initialisation.
type MappingConfig struct {
	// phrases is sorted longest-first so the most specific phrase wins
	// deterministically.
	phrases    []string
	categories map[string]domain.Category
	regulators map[string]string
}

// NewMappingConfig builds an immutable mapping from phrase tables.
// The category table maps lowercase source phrases to taxonomy
// categories; the regulator table maps agency spellings to canonical
// abbreviations.
func NewMappingConfig(categories map[string]domain.Category, regulators map[string]string) *MappingConfig {
	m := &MappingConfig{
		categories: make(map[string]domain.Category, len(categories)),
		regulators: make(map[string]string, len(regulators)),
	}
	for phrase, cat := range categories {
		phrase = strings.ToLower(phrase)
		m.categories[phrase] = cat
		m.phrases = append(m.phrases, phrase)
	}
	for phrase, reg := range regulators {
		m.regulators[strings.ToLower(phrase)] = reg
	}
	sort.Slice(m.phrases, func(i, j int) bool {
		if len(m.phrases[i]) != len(m.phrases[j]) {
			return len(m.phrases[i]) > len(m.phrases[j])
		}
		return m.phrases[i] < m.phrases[j]
	})
	return m
}

// DefaultMappingConfig covers the vocabularies of the supported
// regulatory and news sources.
func DefaultMappingConfig() *MappingConfig {
	return NewMappingConfig(map[string]domain.Category{
		// Regulatory actions
		"consent order":                 domain.CategoryRegulatoryAction,
		"cease and desist":              domain.CategoryRegulatoryAction,
		"cease-and-desist":              domain.CategoryRegulatoryAction,
		"formal agreement":              domain.CategoryRegulatoryAction,
		"written agreement":             domain.CategoryRegulatoryAction,
		"memorandum of understanding":   domain.CategoryRegulatoryAction,
		"enforcement action":            domain.CategoryRegulatoryAction,
		"prompt corrective action":      domain.CategoryRegulatoryAction,
		"removal and prohibition":       domain.CategoryRegulatoryAction,

		// Fines and penalties
		"civil money penalty":     domain.CategoryFine,
		"civil monetary penalty":  domain.CategoryFine,
		"monetary penalty":        domain.CategoryFine,
		"financial penalty":       domain.CategoryFine,
		"regulatory fine":         domain.CategoryFine,

		// Data breaches
		"data breach":                   domain.CategoryDataBreach,
		"security breach":               domain.CategoryDataBreach,
		"cybersecurity incident":        domain.CategoryDataBreach,
		"privacy breach":                domain.CategoryDataBreach,
		"information security incident": domain.CategoryDataBreach,

		// Bank failures and performance
		"bank failure":  domain.CategoryFinancialPerformance,
		"bank closure":  domain.CategoryFinancialPerformance,
		"receivership":  domain.CategoryFinancialPerformance,
		"liquidation":   domain.CategoryFinancialPerformance,
		"bankruptcy":    domain.CategoryFinancialPerformance,

		// Lawsuits
		"lawsuit":      domain.CategoryLawsuit,
		"litigation":   domain.CategoryLawsuit,
		"class action": domain.CategoryLawsuit,
		"court filing": domain.CategoryLawsuit,

		// Fraud
		"fraud": domain.CategoryFraud,

		// Operational issues
		"outage":             domain.CategoryOperationalOutage,
		"service disruption": domain.CategoryOperationalOutage,
		"system failure":     domain.CategoryOperationalOutage,

		// Sanctions / AML
		"bsa violation":        domain.CategorySanctionsAML,
		"aml violation":        domain.CategorySanctionsAML,
		"anti-money laundering": domain.CategorySanctionsAML,
		"sanctions violation":  domain.CategorySanctionsAML,
		"bank secrecy act":     domain.CategorySanctionsAML,

		// Discrimination
		"discrimination":         domain.CategoryDiscrimination,
		"fair lending violation": domain.CategoryDiscrimination,
		"redlining":              domain.CategoryDiscrimination,

		// Executive misconduct
		"executive misconduct":  domain.CategoryExecutiveMisconduct,
		"executive resignation": domain.CategoryExecutiveMisconduct,
		"management misconduct": domain.CategoryExecutiveMisconduct,

		// Conduct and ethics
		"insider trading":     domain.CategoryConductEthics,
		"market manipulation": domain.CategoryConductEthics,
		"securities fraud":    domain.CategoryConductEthics,

		// ESG and social
		"environmental controversy": domain.CategoryESGSocial,
		"greenwashing":              domain.CategoryESGSocial,
		"labor dispute":             domain.CategoryESGSocial,
		"mass layoff":               domain.CategoryESGSocial,

		// Third-party / vendor
		"vendor scandal":              domain.CategoryThirdParty,
		"fintech partnership failure": domain.CategoryThirdParty,
		"third-party breach":          domain.CategoryThirdParty,

		// Governance
		"governance issue":     domain.CategoryGovernance,
		"board controversy":    domain.CategoryGovernance,
		"shareholder activism": domain.CategoryGovernance,

		// Brand and marketing
		"marketing controversy": domain.CategoryBrandMarketing,
		"brand crisis":          domain.CategoryBrandMarketing,
		"pr crisis":             domain.CategoryBrandMarketing,

		// Customer and market
		"customer service failure": domain.CategoryCustomerMarket,
		"customer complaint":       domain.CategoryCustomerMarket,
		"deposit outflow":          domain.CategoryCustomerMarket,
	}, map[string]string{
		"occ": "OCC", "office of the comptroller of the currency": "OCC",
		"fdic": "FDIC", "federal deposit insurance corporation": "FDIC",
		"frb": "FRB", "federal reserve board": "FRB", "federal reserve": "FRB",
		"sec": "SEC", "securities and exchange commission": "SEC",
		"cfpb": "CFPB", "consumer financial protection bureau": "CFPB",
		"doj": "DOJ", "department of justice": "DOJ",
		"nydfs": "NYDFS", "new york department of financial services": "NYDFS",
		"ncua": "NCUA", "national credit union administration": "NCUA",
		"state attorney general": "State AG", "attorney general": "State AG",
	})
}

// MapCategory maps free source text to a taxonomy category. The second
// return is false when no phrase matched; callers fail closed to
// CategoryOther with a warning rather than dropping the record.
func (m *MappingConfig) MapCategory(text string) (domain.Category, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range m.phrases {
		if strings.Contains(lower, phrase) {
			return m.categories[phrase], true
		}
	}
	return domain.CategoryOther, false
}

// MapCategories collects every distinct category matched in the text.
func (m *MappingConfig) MapCategories(text string) []domain.Category {
	lower := strings.ToLower(text)
	seen := make(map[domain.Category]struct{})
	var out []domain.Category
	for _, phrase := range m.phrases {
		if strings.Contains(lower, phrase) {
			cat := m.categories[phrase]
			if _, ok := seen[cat]; !ok {
				seen[cat] = struct{}{}
				out = append(out, cat)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MapRegulator maps agency text to its canonical abbreviation,
// or "Other" when unrecognised.
func (m *MappingConfig) MapRegulator(text string) string {
	lower := strings.ToLower(text)

	var phrases []string
	for phrase := range m.regulators {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return m.regulators[phrase]
		}
	}
	return "Other"
}

var moneyPattern = regexp.MustCompile(
	`\$\s*([\d,]+(?:\.\d+)?)\s*(billion|million|thousand|bn|mm|[bmk])?`)

// ParseMoneyUSD extracts the largest dollar amount mentioned in text,
// returning whole US dollars. The second return is false when no
// amount was found. Missing amounts are never inferred.
func ParseMoneyUSD(text string) (int64, bool) {
	matches := moneyPattern.FindAllStringSubmatch(strings.ToLower(text), -1)
	if len(matches) == 0 {
		return 0, false
	}

	var best int64
	for _, match := range matches {
		raw := strings.ReplaceAll(match[1], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch match[2] {
		case "billion", "bn", "b":
			value *= 1_000_000_000
		case "million", "mm", "m":
			value *= 1_000_000
		case "thousand", "k":
			value *= 1_000
		}
		if int64(value) > best {
			best = int64(value)
		}
	}
	return best, best > 0
}
