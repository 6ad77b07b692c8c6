package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Category classifies the kind of reputation damage an event caused.
// The taxonomy is fixed; unmapped source categories fail closed to
// CategoryOther rather than being dropped.
type Category string

// The fixed category taxonomy.
const (
	CategoryRegulatoryAction     Category = "regulatory_action"
	CategoryFine                 Category = "fine"
	CategoryDataBreach           Category = "data_breach"
	CategoryLawsuit              Category = "lawsuit"
	CategoryFinancialPerformance Category = "financial_performance"
	CategoryFraud                Category = "fraud"
	CategoryOperationalOutage    Category = "operational_outage"
	CategoryDiscrimination       Category = "discrimination"
	CategorySanctionsAML         Category = "sanctions_aml"
	CategoryExecutiveMisconduct  Category = "executive_misconduct"
	CategoryConductEthics        Category = "conduct_ethics"
	CategoryESGSocial            Category = "esg_social"
	CategoryThirdParty           Category = "third_party"
	CategoryGovernance           Category = "governance"
	CategoryBrandMarketing       Category = "brand_marketing"
	CategoryCustomerMarket       Category = "customer_market"
	CategoryOther                Category = "other"
)

// Categories lists every valid category, including the fail-closed "other".
var Categories = []Category{
	CategoryRegulatoryAction, CategoryFine, CategoryDataBreach,
	CategoryLawsuit, CategoryFinancialPerformance, CategoryFraud,
	CategoryOperationalOutage, CategoryDiscrimination, CategorySanctionsAML,
	CategoryExecutiveMisconduct, CategoryConductEthics, CategoryESGSocial,
	CategoryThirdParty, CategoryGovernance, CategoryBrandMarketing,
	CategoryCustomerMarket, CategoryOther,
}

// Valid reports whether c belongs to the fixed taxonomy.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Confidence expresses how well corroborated an event is.
type Confidence string

// Confidence levels derived from source count and authoritativeness.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SourceType identifies the authoritativeness class of a source.
type SourceType string

// Source authoritativeness classes.
const (
	SourceRegulator SourceType = "regulator"
	SourceMedia     SourceType = "media"
	SourceCourt     SourceType = "court"
)

// SourceRef records where a piece of evidence for an event came from.
type SourceRef struct {
	// SourceName is the connector that produced the evidence
	// (e.g., "fdic_edo", "newsapi").
	SourceName string

	// ExternalID is the source's own identifier for the record.
	ExternalID string

	// URL is the location of the source document or article.
	URL string

	// Title is the source document's own title.
	Title string

	// Publisher is the publishing organisation.
	Publisher string

	// Type is the authoritativeness class of the source.
	Type SourceType

	// RetrievedAt is when the record was fetched.
	RetrievedAt time.Time
}

// AmountKind names a kind of monetary or impact amount attached to an event.
type AmountKind string

// Known amount kinds.
const (
	AmountPenalty           AmountKind = "penalty"
	AmountSettlement        AmountKind = "settlement"
	AmountCustomersAffected AmountKind = "customers_affected"
)

// Amount is one measured impact of an event with its provenance.
type Amount struct {
	// Value is the magnitude: whole US dollars for monetary kinds,
	// a plain count for customers_affected.
	Value int64

	// Currency is "USD" for monetary amounts, empty for counts.
	Currency string

	// Source is the SourceName that supplied the value.
	Source string
}

// InstitutionRef is a resolved institution identity attached to an event.
// After normalisation events never carry raw name strings; an unresolvable
// reference becomes a placeholder ref flagged for follow-up.
type InstitutionRef struct {
	// Key is the stable institution key, or a placeholder key when
	// Unresolved is true.
	Key string

	// Name is the institution name at resolution time.
	Name string

	// Unresolved marks a placeholder identity that needs follow-up.
	Unresolved bool
}

// SummaryMaxLen bounds the event summary. Longer summaries are truncated
// deterministically, never silently dropped.
const SummaryMaxLen = 480

// Event is the canonical record of one reputation-damaging incident.
// An Event is uniquely addressable by ID; corroborating evidence from
// multiple sources merges into a single Event via the repository.
type Event struct {
	// ID is the deterministic identifier. Derived from
	// (source, external id), or from the content fingerprint when the
	// source supplies no external id. Stable across re-ingestion.
	ID string

	// Fingerprint is the content identity (title, event date,
	// institution set). Records from different sources describing the
	// same incident share a fingerprint and merge.
	Fingerprint string

	// Title is the canonical headline for the incident.
	Title string

	// Institutions is the ordered set of resolved institution
	// identities. Never empty after enrichment.
	Institutions []InstitutionRef

	// EventDate is the date of occurrence.
	EventDate time.Time

	// ReportedDates is the growing set of dates the event was reported
	// or updated. Always contains the first ingestion date.
	ReportedDates []time.Time

	// Categories is the non-empty set of taxonomy categories.
	Categories []Category

	// Amounts maps amount kind to the measured value with provenance.
	Amounts map[AmountKind]Amount

	// MaterialityScore is the 1-5 severity rating. Monotonic
	// non-decreasing as corroborating evidence arrives.
	MaterialityScore int

	// Summary is the bounded-length description.
	Summary string

	// Sources is the set of evidence references.
	Sources []SourceRef

	// CreatedAt is when the event was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the event last changed.
	UpdatedAt time.Time
}

var idCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// EventID derives the deterministic identifier for a record that carries
// a source external id. The result is kebab-case and stable across
// re-ingestion of the same source record.
func EventID(source, externalID string) string {
	base := strings.ToLower(source + ":" + externalID)
	return strings.Trim(idCleaner.ReplaceAllString(base, "-"), "-")
}

// ContentEventID derives an identifier from content for records without
// an external id.
func ContentEventID(title string, eventDate time.Time, institutionKeys []string) string {
	return "sha-" + Fingerprint(title, eventDate, institutionKeys)[:16]
}

// Fingerprint computes the content identity used for cross-source
// deduplication. Institution keys are sorted so the fingerprint is
// independent of reference order.
func Fingerprint(title string, eventDate time.Time, institutionKeys []string) string {
	keys := append([]string(nil), institutionKeys...)
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(normalizeTitle(title)))
	h.Write([]byte{0})
	h.Write([]byte(eventDate.UTC().Format("2006-01-02")))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// TruncateSummary bounds s to SummaryMaxLen runes, appending an ellipsis
// when truncation occurs.
func TruncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= SummaryMaxLen {
		return s
	}
	return string(runes[:SummaryMaxLen-1]) + "…"
}

// SourceCount returns the number of distinct sources corroborating
// the event. Multiple references from the same source count once.
func (e *Event) SourceCount() int {
	seen := make(map[string]struct{}, len(e.Sources))
	for _, ref := range e.Sources {
		seen[ref.SourceName] = struct{}{}
	}
	return len(seen)
}

// Confidence derives the corroboration level from source count and
// authoritativeness: three or more independent sources rate high, two
// rate medium, a single regulator or court source rates medium, and
// anything else rates low.
func (e *Event) Confidence() Confidence {
	count := e.SourceCount()
	switch {
	case count >= 3:
		return ConfidenceHigh
	case count == 2:
		return ConfidenceMedium
	case count == 1 && e.hasAuthoritativeSource():
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (e *Event) hasAuthoritativeSource() bool {
	for _, ref := range e.Sources {
		if ref.Type == SourceRegulator || ref.Type == SourceCourt {
			return true
		}
	}
	return false
}

// Validate checks the Event invariants. A violation is a ValidationError;
// callers skip the record and continue the batch.
func (e *Event) Validate(now time.Time) error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty"}
	}
	if e.Title == "" {
		return &ValidationError{Field: "title", Reason: "empty"}
	}
	if len(e.Categories) == 0 {
		return &ValidationError{Field: "categories", Reason: "empty set"}
	}
	for _, c := range e.Categories {
		if !c.Valid() {
			return &ValidationError{Field: "categories", Reason: "unknown category " + string(c)}
		}
	}
	if len(e.Institutions) == 0 {
		return &ValidationError{Field: "institutions", Reason: "empty set"}
	}
	if e.EventDate.IsZero() {
		return &ValidationError{Field: "event_date", Reason: "missing"}
	}
	if e.EventDate.After(now) {
		return &ValidationError{Field: "event_date", Reason: "in the future"}
	}
	if len([]rune(e.Summary)) > SummaryMaxLen {
		return &ValidationError{Field: "summary", Reason: "exceeds length bound"}
	}
	if e.MaterialityScore < 1 || e.MaterialityScore > 5 {
		return &ValidationError{Field: "materiality_score", Reason: "outside 1-5"}
	}
	if len(e.Sources) == 0 {
		return &ValidationError{Field: "sources", Reason: "empty set"}
	}
	return nil
}

// Merge combines a stored event with corroborating evidence for the same
// incident. The operation is commutative and associative so final stored
// state is independent of arrival order: sets are unioned, materiality
// takes the maximum, and scalar gaps are filled deterministically
// (longer value wins, ties broken lexicographically). The canonical ID
// is the lexicographically smaller of the two.
func Merge(a, b Event) Event {
	out := Event{
		ID:          minString(a.ID, b.ID),
		Fingerprint: a.Fingerprint,
	}
	if out.Fingerprint == "" {
		out.Fingerprint = b.Fingerprint
	}

	out.Title = preferDetailed(a.Title, b.Title)
	out.Summary = preferDetailed(a.Summary, b.Summary)

	out.EventDate = a.EventDate
	if out.EventDate.IsZero() || (!b.EventDate.IsZero() && b.EventDate.Before(out.EventDate)) {
		out.EventDate = b.EventDate
	}

	out.Institutions = unionInstitutions(a.Institutions, b.Institutions)
	out.Categories = unionCategories(a.Categories, b.Categories)
	out.ReportedDates = unionDates(a.ReportedDates, b.ReportedDates)
	out.Sources = unionSources(a.Sources, b.Sources)
	out.Amounts = unionAmounts(a.Amounts, b.Amounts)

	// Severity never regresses.
	out.MaterialityScore = a.MaterialityScore
	if b.MaterialityScore > out.MaterialityScore {
		out.MaterialityScore = b.MaterialityScore
	}

	out.CreatedAt = minTime(a.CreatedAt, b.CreatedAt)
	out.UpdatedAt = maxTime(a.UpdatedAt, b.UpdatedAt)
	return out
}

func minString(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b < a {
		return b
	}
	return a
}

// preferDetailed keeps the more detailed value when one side has a gap.
// When both are present the longer wins; equal lengths break on order.
func preferDetailed(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if len(b) > len(a) || (len(b) == len(a) && b < a) {
		return b
	}
	return a
}

func unionInstitutions(a, b []InstitutionRef) []InstitutionRef {
	out := append([]InstitutionRef(nil), a...)
	seen := make(map[string]struct{}, len(a))
	for _, ref := range a {
		seen[ref.Key] = struct{}{}
	}
	for _, ref := range b {
		if _, ok := seen[ref.Key]; !ok {
			seen[ref.Key] = struct{}{}
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func unionCategories(a, b []Category) []Category {
	seen := make(map[Category]struct{}, len(a)+len(b))
	var out []Category
	for _, c := range append(append([]Category(nil), a...), b...) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionDates(a, b []time.Time) []time.Time {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []time.Time
	for _, d := range append(append([]time.Time(nil), a...), b...) {
		key := d.UTC().Format("2006-01-02")
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func unionSources(a, b []SourceRef) []SourceRef {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []SourceRef
	for _, ref := range append(append([]SourceRef(nil), a...), b...) {
		key := ref.SourceName + "\x00" + ref.ExternalID
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceName != out[j].SourceName {
			return out[i].SourceName < out[j].SourceName
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out
}

func unionAmounts(a, b map[AmountKind]Amount) map[AmountKind]Amount {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[AmountKind]Amount, len(a)+len(b))
	for kind, amt := range a {
		out[kind] = amt
	}
	for kind, amt := range b {
		existing, ok := out[kind]
		if !ok || amt.Value > existing.Value ||
			(amt.Value == existing.Value && amt.Source < existing.Source) {
			out[kind] = amt
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
