package bankfind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

const (
	// DefaultBaseURL is the public BankFind Suite API endpoint.
	DefaultBaseURL = "https://banks.data.fdic.gov/api"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// requestsPerSecond is the proactive throttle. The API is open and
	// unauthenticated; stay well under its published limits.
	requestsPerSecond = 2

	// nameSearchLimit caps results for free-text name searches.
	nameSearchLimit = 5

	institutionFields = "CERT,NAME,ACTIVE"
)

// Ensure Client implements the interface.
var _ driven.InstitutionRegistry = (*Client)(nil)

// APIError represents a BankFind API error response.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bankfind: API error %d (URL: %s)", e.StatusCode, e.URL)
}

// Client queries the FDIC BankFind Suite institutions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a BankFind client with proactive rate limiting.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// institutionsResponse mirrors the BankFind Suite envelope: each hit
// wraps the record in its own "data" object.
type institutionsResponse struct {
	Data []struct {
		Data institutionRecord `json:"data"`
	} `json:"data"`
}

type institutionRecord struct {
	Cert   json.Number `json:"CERT"`
	Name   string      `json:"NAME"`
	Active json.Number `json:"ACTIVE"`
}

// Lookup finds an institution by certificate number or name.
// Returns domain.ErrNotFound when the registry has no match.
func (c *Client) Lookup(ctx context.Context, ref domain.Reference) (*domain.Institution, error) {
	if ref.Identifier != "" {
		inst, err := c.lookupByCert(ctx, ref.Identifier)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return inst, err
		}
	}
	if ref.Name != "" {
		return c.lookupByName(ctx, ref.Name)
	}
	return nil, domain.ErrNotFound
}

func (c *Client) lookupByCert(ctx context.Context, cert string) (*domain.Institution, error) {
	params := url.Values{}
	params.Set("filters", "CERT:"+cert)
	params.Set("fields", institutionFields)
	params.Set("limit", "1")

	records, err := c.queryInstitutions(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNotFound
	}
	return toInstitution(records[0]), nil
}

// lookupByName searches by legal name. Only a match that is exact after
// normalisation is accepted: fuzzy matching happens against the local
// store, not against the registry.
func (c *Client) lookupByName(ctx context.Context, name string) (*domain.Institution, error) {
	params := url.Values{}
	params.Set("search", "NAME:"+strconv.Quote(name))
	params.Set("fields", institutionFields)
	params.Set("limit", strconv.Itoa(nameSearchLimit))

	records, err := c.queryInstitutions(ctx, params)
	if err != nil {
		return nil, err
	}

	want := domain.NormalizeName(name)
	for _, rec := range records {
		if domain.NormalizeName(rec.Name) == want {
			return toInstitution(rec), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *Client) queryInstitutions(ctx context.Context, params url.Values) ([]institutionRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + "/institutions?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientSourceError{Source: "bankfind", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, reqURL); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientSourceError{Source: "bankfind", Err: err}
	}

	var parsed institutionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]institutionRecord, 0, len(parsed.Data))
	for _, hit := range parsed.Data {
		records = append(records, hit.Data)
	}
	return records, nil
}

// checkStatus classifies non-2xx responses. Rate limiting and server
// errors are transient; everything else is a hard API error.
func checkStatus(resp *http.Response, reqURL string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &domain.TransientSourceError{
			Source: "bankfind",
			Err:    &APIError{StatusCode: resp.StatusCode, URL: reqURL},
		}
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return &APIError{StatusCode: resp.StatusCode, URL: reqURL}
	}
}

func toInstitution(rec institutionRecord) *domain.Institution {
	return &domain.Institution{
		Key:         "cert:" + rec.Cert.String(),
		CurrentName: rec.Name,
	}
}
