package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
)

const (
	// SourceName is the connector's source name.
	SourceName = "newsapi"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// requestsPerSecond is the proactive throttle. NewsAPI's developer
	// tier allows 100 requests per day; stay far below burst limits.
	requestsPerSecond = 1
)

// NewsAPI-specific errors.
var (
	// ErrClosed indicates the connector has been closed.
	ErrClosed = errors.New("newsapi: connector closed")

	// ErrAPIKeyMissing indicates no API key was configured.
	ErrAPIKeyMissing = errors.New("newsapi: API key missing")

	// ErrWatchlistEmpty indicates no institution names to search for.
	ErrWatchlistEmpty = errors.New("newsapi: watchlist empty")
)

// APIError represents a NewsAPI error response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi: API error %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches bank-related articles from NewsAPI.org. The source
// cannot serve single articles by identifier, so discovery caches the
// full payloads for the run and Fetch serves from that cache.
type Connector struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.Mutex
	closed    bool
	retrieved map[string]article
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connector) { c.httpClient = hc }
}

// New creates a NewsAPI connector.
func New(cfg Config, opts ...Option) *Connector {
	c := &Connector{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retrieved:  make(map[string]article),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the connector's source name.
func (c *Connector) Name() string {
	return SourceName
}

// Validate checks configuration and reachability.
func (c *Connector) Validate(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.cfg.APIKey == "" {
		return ErrAPIKeyMissing
	}
	if len(c.cfg.Watchlist) == 0 {
		return ErrWatchlistEmpty
	}

	params := c.queryParams(time.Now().Add(-24*time.Hour), 1)
	params.Set("pageSize", "1")
	_, _, err := c.queryEverything(ctx, params)
	return err
}

// Discover streams handles for watchlist articles published since the
// given time. Full payloads are cached for Fetch.
func (c *Connector) Discover(ctx context.Context, since time.Time) (<-chan domain.RecordHandle, <-chan error) {
	handles := make(chan domain.RecordHandle)
	errs := make(chan error, 1)

	go func() {
		defer close(handles)
		defer close(errs)

		if c.isClosed() {
			errs <- ErrClosed
			return
		}
		if c.cfg.APIKey == "" {
			errs <- ErrAPIKeyMissing
			return
		}
		if len(c.cfg.Watchlist) == 0 {
			errs <- ErrWatchlistEmpty
			return
		}

		c.mu.Lock()
		c.retrieved = make(map[string]article)
		c.mu.Unlock()

		for page := 1; page <= c.cfg.MaxPages; page++ {
			articles, total, err := c.queryEverything(ctx, c.queryParams(since, page))
			if err != nil {
				errs <- fmt.Errorf("discovering articles at page %d: %w", page, err)
				return
			}

			for _, art := range articles {
				if art.URL == "" || !c.mentionsWatchlist(art) {
					continue
				}

				c.mu.Lock()
				c.retrieved[art.URL] = art
				c.mu.Unlock()

				handle := domain.RecordHandle{Source: SourceName, URL: art.URL}
				select {
				case <-ctx.Done():
					return
				case handles <- handle:
				}
			}

			if page*c.cfg.PageSize >= total || len(articles) < c.cfg.PageSize {
				return
			}
		}
	}()

	return handles, errs
}

// Fetch converts a discovered article from the run's cache.
func (c *Connector) Fetch(_ context.Context, handle domain.RecordHandle) (*domain.RawRecord, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	art, ok := c.retrieved[handle.URL]
	c.mu.Unlock()
	if !ok {
		return nil, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("article %s not discovered in this run: %w", handle.URL, domain.ErrNotFound),
		}
	}

	return c.toRawRecord(art)
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.retrieved = nil
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// everythingResponse is the NewsAPI "everything" envelope.
type everythingResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

func (c *Connector) queryParams(since time.Time, page int) url.Values {
	quoted := make([]string, len(c.cfg.Watchlist))
	for i, name := range c.cfg.Watchlist {
		quoted[i] = strconv.Quote(name)
	}

	params := url.Values{}
	params.Set("q", strings.Join(quoted, " OR "))
	params.Set("language", c.cfg.Language)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	params.Set("page", strconv.Itoa(page))
	if !since.IsZero() {
		params.Set("from", since.UTC().Format(time.RFC3339))
	}
	return params
}

func (c *Connector) queryEverything(ctx context.Context, params url.Values) ([]article, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.cfg.BaseURL + "/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.TransientSourceError{Source: SourceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &domain.TransientSourceError{Source: SourceName, Err: err}
	}

	var parsed everythingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("decoding response: %w", err),
		}
	}

	if err := checkStatus(resp.StatusCode, parsed); err != nil {
		return nil, 0, err
	}

	return parsed.Articles, parsed.TotalResults, nil
}

// checkStatus classifies NewsAPI failures. Rate limiting and server
// errors are transient; auth and query problems are hard errors.
func checkStatus(statusCode int, parsed everythingResponse) error {
	if statusCode >= 200 && statusCode < 300 && parsed.Status != "error" {
		return nil
	}

	apiErr := &APIError{StatusCode: statusCode, Code: parsed.Code, Message: parsed.Message}
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 || parsed.Code == "rateLimited" {
		return &domain.TransientSourceError{Source: SourceName, Err: apiErr}
	}
	return apiErr
}

func (c *Connector) toRawRecord(art article) (*domain.RawRecord, error) {
	published, err := time.Parse(time.RFC3339, art.PublishedAt)
	if err != nil {
		return nil, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("article %s: bad published date %q: %w", art.URL, art.PublishedAt, err),
		}
	}

	text := art.Title + " " + art.Description + " " + art.Content

	return &domain.RawRecord{
		Source:      SourceName,
		URL:         art.URL,
		RetrievedAt: time.Now().UTC(),
		Kind:        domain.KindNews,
		News: &domain.NewsArticle{
			Title:             art.Title,
			Description:       art.Description,
			Body:              art.Content,
			Publisher:         art.Source.Name,
			PublishedAt:       published,
			Institutions:      c.mentions(art),
			CustomersAffected: parseCustomers(text),
		},
	}, nil
}

// mentionsWatchlist reports whether the article names any watched
// institution.
func (c *Connector) mentionsWatchlist(art article) bool {
	return len(c.mentions(art)) > 0
}

// mentions returns the watched institution names the article text
// contains, preserving watchlist order.
func (c *Connector) mentions(art article) []string {
	text := strings.ToLower(art.Title + " " + art.Description + " " + art.Content)
	var names []string
	for _, name := range c.cfg.Watchlist {
		if strings.Contains(text, strings.ToLower(name)) {
			names = append(names, name)
		}
	}
	return names
}

var customersPattern = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(million|m)?\s+customers`)

// parseCustomers extracts a reported customer-impact count from the
// article text. Returns 0 when no count is present.
func parseCustomers(text string) int64 {
	m := customersPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	if m[2] != "" {
		n *= 1e6
	}
	return int64(n)
}
