package fdic

// DefaultBaseURL is the public FDIC enforcement decisions API endpoint.
const DefaultBaseURL = "https://banks.data.fdic.gov/api"

// DefaultPageSize is the discovery page size.
const DefaultPageSize = 100

// Config holds FDIC connector settings.
type Config struct {
	// BaseURL is the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// PageSize is the number of orders per discovery page.
	PageSize int
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	return c
}
