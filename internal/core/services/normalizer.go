package services

import (
	"context"
	"fmt"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/logger"
)

// Normalizer converts raw source records into canonical events. Each
// record kind has an explicit adapter; a record of an unknown kind is
// a structural failure, never a best-effort guess. The mapping tables
// are fixed at construction and never consulted from mutable state.
type Normalizer struct {
	mappings *MappingConfig
	resolver *Resolver
	now      func() time.Time
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithNormalizerClock overrides the clock, for tests.
func WithNormalizerClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a Normalizer with the given mapping tables.
func NewNormalizer(mappings *MappingConfig, resolver *Resolver, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		mappings: mappings,
		resolver: resolver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record into a validated canonical event.
// Validation failures return a *domain.ValidationError; the caller
// records the failure and continues the batch.
func (n *Normalizer) Normalize(ctx context.Context, raw *domain.RawRecord) (*domain.Event, error) {
	var (
		event *domain.Event
		err   error
	)
	switch raw.Kind {
	case domain.KindEnforcement:
		event, err = n.normalizeEnforcement(ctx, raw)
	case domain.KindNews:
		event, err = n.normalizeNews(ctx, raw)
	default:
		return nil, &domain.StructuralSourceError{
			Source: raw.Source,
			Err:    fmt.Errorf("%w: record kind %d", domain.ErrUnknownSource, raw.Kind),
		}
	}
	if err != nil {
		return nil, err
	}

	if err := event.Validate(n.now()); err != nil {
		return nil, err
	}
	return event, nil
}

func (n *Normalizer) normalizeEnforcement(ctx context.Context, raw *domain.RawRecord) (*domain.Event, error) {
	order := raw.Enforcement
	if order == nil {
		return nil, &domain.StructuralSourceError{
			Source: raw.Source,
			Err:    fmt.Errorf("enforcement record %s has no payload", raw.ExternalID),
		}
	}

	categories := n.mapCategories(raw.Source, order.OrderType+" "+order.Title)

	inst, err := n.resolver.Resolve(ctx, domain.Reference{
		Identifier: order.CertNumber,
		Name:       order.BankName,
	}, order.IssuedDate)
	if err != nil {
		return nil, fmt.Errorf("resolving institution for %s: %w", raw.ExternalID, err)
	}

	amounts := make(map[domain.AmountKind]domain.Amount)
	penalty := order.PenaltyUSD
	if penalty == 0 {
		if parsed, ok := ParseMoneyUSD(order.PenaltyText); ok {
			penalty = parsed
		}
	}
	if penalty > 0 {
		amounts[domain.AmountPenalty] = domain.Amount{Value: penalty, Currency: "USD", Source: raw.Source}
	}
	if order.CustomersAffected > 0 {
		amounts[domain.AmountCustomersAffected] = domain.Amount{Value: order.CustomersAffected, Source: raw.Source}
	}

	signals := SignalsFromText(order.Title, order.OrderType, order.Summary)
	signals.BankFailure = signals.BankFailure || order.BankFailure

	event := &domain.Event{
		ID:               domain.EventID(raw.Source, raw.ExternalID),
		Title:            order.Title,
		Institutions:     []domain.InstitutionRef{inst},
		EventDate:        order.IssuedDate,
		ReportedDates:    []time.Time{raw.RetrievedAt},
		Categories:       categories,
		Amounts:          nilIfEmpty(amounts),
		MaterialityScore: MaterialityScore(amounts, categories, signals),
		Summary:          domain.TruncateSummary(order.Summary),
		Sources: []domain.SourceRef{{
			SourceName:  raw.Source,
			ExternalID:  raw.ExternalID,
			URL:         raw.URL,
			Title:       order.Title,
			Publisher:   n.mappings.MapRegulator(order.Regulator),
			Type:        domain.SourceRegulator,
			RetrievedAt: raw.RetrievedAt,
		}},
	}
	event.Fingerprint = domain.Fingerprint(event.Title, event.EventDate, institutionKeys(event.Institutions))
	return event, nil
}

func (n *Normalizer) normalizeNews(ctx context.Context, raw *domain.RawRecord) (*domain.Event, error) {
	article := raw.News
	if article == nil {
		return nil, &domain.StructuralSourceError{
			Source: raw.Source,
			Err:    fmt.Errorf("news record %s has no payload", raw.ExternalID),
		}
	}

	text := article.Title + " " + article.CategoryHint + " " + article.Description
	categories := n.mapCategories(raw.Source, text)

	var refs []domain.InstitutionRef
	for _, name := range article.Institutions {
		inst, err := n.resolver.Resolve(ctx, domain.Reference{Name: name}, article.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("resolving %q for %s: %w", name, raw.ExternalID, err)
		}
		refs = append(refs, inst)
	}
	if len(refs) == 0 {
		// An article that names no institution still gets the unresolved
		// placeholder identity rather than an empty set.
		logger.Warn("normalizer: %s: article %q names no institution, using placeholder", raw.Source, article.Title)
		refs = []domain.InstitutionRef{domain.PlaceholderRef(domain.Reference{})}
	}

	amounts := make(map[domain.AmountKind]domain.Amount)
	if settlement, ok := ParseMoneyUSD(article.Title + " " + article.Description); ok {
		kind := domain.AmountSettlement
		if hasCategory(categories, domain.CategoryFine) {
			kind = domain.AmountPenalty
		}
		amounts[kind] = domain.Amount{Value: settlement, Currency: "USD", Source: raw.Source}
	}
	if article.CustomersAffected > 0 {
		amounts[domain.AmountCustomersAffected] = domain.Amount{Value: article.CustomersAffected, Source: raw.Source}
	}

	summary := article.Description
	if summary == "" {
		summary = article.Body
	}

	event := &domain.Event{
		ID:            n.newsEventID(raw, article, refs),
		Title:         article.Title,
		Institutions:  refs,
		EventDate:     article.PublishedAt,
		ReportedDates: []time.Time{raw.RetrievedAt},
		Categories:    categories,
		Amounts:       nilIfEmpty(amounts),
		MaterialityScore: MaterialityScore(amounts, categories,
			SignalsFromText(article.Title, article.Description)),
		Summary: domain.TruncateSummary(summary),
		Sources: []domain.SourceRef{{
			SourceName:  raw.Source,
			ExternalID:  raw.ExternalID,
			URL:         raw.URL,
			Title:       article.Title,
			Publisher:   article.Publisher,
			Type:        domain.SourceMedia,
			RetrievedAt: raw.RetrievedAt,
		}},
	}
	event.Fingerprint = domain.Fingerprint(event.Title, event.EventDate, institutionKeys(event.Institutions))
	return event, nil
}

// newsEventID prefers the source's own id; articles without one get a
// content-derived id so re-ingestion stays idempotent.
func (n *Normalizer) newsEventID(raw *domain.RawRecord, article *domain.NewsArticle, refs []domain.InstitutionRef) string {
	if raw.ExternalID != "" {
		return domain.EventID(raw.Source, raw.ExternalID)
	}
	return domain.ContentEventID(article.Title, article.PublishedAt, institutionKeys(refs))
}

// mapCategories maps source text to taxonomy categories, failing
// closed to CategoryOther with a warning when nothing matches.
func (n *Normalizer) mapCategories(source, text string) []domain.Category {
	categories := n.mappings.MapCategories(text)
	if len(categories) == 0 {
		logger.Warn("normalizer: %s: no category mapping for %q, using %q", source, domain.TruncateSummary(text), domain.CategoryOther)
		categories = []domain.Category{domain.CategoryOther}
	}
	return categories
}

func institutionKeys(refs []domain.InstitutionRef) []string {
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key
	}
	return keys
}

func nilIfEmpty(amounts map[domain.AmountKind]domain.Amount) map[domain.AmountKind]domain.Amount {
	if len(amounts) == 0 {
		return nil
	}
	return amounts
}
