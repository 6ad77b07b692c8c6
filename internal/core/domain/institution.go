package domain

import (
	"regexp"
	"strings"
	"time"
)

// MaxResolveHops caps traversal of superseded-by and parent chains.
// Merge chains in source data can form cycles; traversal always
// terminates within this bound.
const MaxResolveHops = 8

// HistoricalName records one name an institution operated under.
type HistoricalName struct {
	// Name as it appeared in source records.
	Name string

	// EffectiveFrom is when the name took effect.
	EffectiveFrom time.Time

	// EffectiveTo is when the name stopped being used.
	// Zero means the name is still current.
	EffectiveTo time.Time
}

// Institution is a resolved bank entity, distinct from the raw name
// strings sources use for it. Historical names are append-only; merges
// are recorded as a supersession pointer so lookups by the absorbed
// key still succeed and resolve to the survivor.
type Institution struct {
	// Key is the stable identity, typically a regulatory certificate
	// number prefixed with its scheme (e.g., "cert:3511").
	Key string

	// CurrentName is the institution's present legal name.
	CurrentName string

	// HistoricalNames is the ordered, append-only name history.
	HistoricalNames []HistoricalName

	// ParentKey optionally points at the parent company's identity.
	// Resolution terminates at a root or at the hop cap, never loops.
	ParentKey string

	// SupersededBy points at the surviving identity after a merger.
	// Empty for live institutions.
	SupersededBy string

	// CreatedAt is when the identity was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the identity last changed.
	UpdatedAt time.Time
}

// Ref returns the event-side reference for the institution.
func (i *Institution) Ref() InstitutionRef {
	return InstitutionRef{Key: i.Key, Name: i.CurrentName}
}

// KnownNames returns the current name plus all historical names.
func (i *Institution) KnownNames() []string {
	names := make([]string, 0, len(i.HistoricalNames)+1)
	names = append(names, i.CurrentName)
	for _, h := range i.HistoricalNames {
		names = append(names, h.Name)
	}
	return names
}

// Reference is an institution mention in a raw record: a structured
// identifier, free text, or both.
type Reference struct {
	// Identifier is a structured key such as a certificate number.
	// Empty for pure free-text references.
	Identifier string

	// Name is the free-text institution name, possibly with branch
	// or DBA noise.
	Name string
}

// legalSuffixes are folded away during name normalisation.
// Order matters: longer phrases first.
var legalSuffixes = []string{
	"national association", "na", "n a",
	"savings bank", "fsb",
	"savings and loan association",
	"incorporated", "inc",
	"corporation", "corp",
	"company", "co",
	"limited", "ltd",
	"llc", "lp",
	"bancorp", "bancshares",
}

var namePunct = regexp.MustCompile(`[^a-z0-9 ]+`)

// NormalizeName folds case, punctuation, and legal suffixes so that
// "First National Bank, N.A." and "first national bank" compare equal.
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	n = namePunct.ReplaceAllString(n, " ")
	n = strings.Join(strings.Fields(n), " ")

	changed := true
	for changed {
		changed = false
		for _, suffix := range legalSuffixes {
			if n != suffix && strings.HasSuffix(n, " "+suffix) {
				n = strings.TrimSuffix(n, " "+suffix)
				changed = true
			}
		}
	}
	return n
}

// PlaceholderRef builds the unresolved placeholder identity for a
// reference no candidate matched. Events proceed with the placeholder
// rather than being discarded.
func PlaceholderRef(ref Reference) InstitutionRef {
	name := ref.Name
	if name == "" {
		name = ref.Identifier
	}
	key := "unresolved:" + NormalizeName(name)
	if key == "unresolved:" {
		key = "unresolved:unknown"
	}
	return InstitutionRef{Key: key, Name: name, Unresolved: true}
}
