package newsapi

const (
	// DefaultBaseURL is the NewsAPI.org v2 endpoint.
	DefaultBaseURL = "https://newsapi.org/v2"

	// DefaultPageSize is the discovery page size (NewsAPI caps at 100).
	DefaultPageSize = 50

	// DefaultMaxPages bounds discovery per run. The free tier caps
	// result depth anyway; deeper history comes from re-running with an
	// older since time.
	DefaultMaxPages = 5

	// DefaultLanguage restricts results to English articles.
	DefaultLanguage = "en"
)

// Config holds NewsAPI connector settings.
type Config struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL is the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Watchlist is the set of institution names to search for.
	// Required; it drives both the query and mention extraction.
	Watchlist []string

	// PageSize is the number of articles per discovery page.
	PageSize int

	// MaxPages bounds the number of pages fetched per run.
	MaxPages int

	// Language restricts article language.
	Language string
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	return c
}
