package domain

import "time"

// RecordHandle identifies one raw record a connector discovered.
// Handles are cheap; the payload is fetched separately.
type RecordHandle struct {
	// Source is the connector name that discovered the record.
	Source string

	// ExternalID is the source's own identifier for the record.
	// Empty when the source assigns no stable id.
	ExternalID string

	// URL locates the record at the source.
	URL string
}

// RecordKind discriminates the known source payload shapes.
// New sources require a new kind and an explicit normalizer adapter;
// there is no implicit field access across shapes.
type RecordKind int

const (
	// KindEnforcement is a regulatory enforcement action record.
	KindEnforcement RecordKind = iota

	// KindNews is a news article record.
	KindNews
)

// RawRecord is the tagged union of known source schemas. Exactly one
// payload pointer is set, matching Kind.
type RawRecord struct {
	Source      string
	ExternalID  string
	URL         string
	RetrievedAt time.Time

	Kind        RecordKind
	Enforcement *EnforcementOrder
	News        *NewsArticle
}

// EnforcementOrder is the payload shape shared by regulatory
// enforcement databases (FDIC ED&O, OCC enforcement actions).
type EnforcementOrder struct {
	Title      string
	OrderType  string
	Regulator  string
	IssuedDate time.Time
	Summary    string

	// Institution identification as the regulator publishes it.
	BankName   string
	CertNumber string

	// PenaltyUSD is the civil money penalty in whole dollars.
	// Zero means no penalty was assessed or none was parseable.
	PenaltyUSD int64

	// PenaltyText preserves the original amount wording.
	PenaltyText string

	// CustomersAffected is the reported customer impact, if any.
	CustomersAffected int64

	// BankFailure marks receivership / failed-bank orders.
	BankFailure bool
}

// NewsArticle is the payload shape for news feed sources.
type NewsArticle struct {
	Title       string
	Description string
	Body        string
	Publisher   string
	PublishedAt time.Time

	// Institutions are the bank names the article mentions.
	Institutions []string

	// CategoryHint is the source's own topic label, if any.
	CategoryHint string

	// CustomersAffected is the reported customer impact, if any.
	CustomersAffected int64
}
