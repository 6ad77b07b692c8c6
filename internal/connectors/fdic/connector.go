package fdic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	SourceName = "fdic_edo"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// requestsPerSecond is the proactive throttle for the open API.
	requestsPerSecond = 2

	dateFormat = "2006-01-02"
)

// ErrClosed indicates the connector has been closed.
var ErrClosed = errors.New("fdic: connector closed")

// APIError represents an FDIC API error response.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fdic: API error %d (URL: %s)", e.StatusCode, e.URL)
}

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches enforcement orders from the FDIC ED&O database.
type Connector struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connector) { c.httpClient = hc }
}

// New creates an FDIC enforcement order connector.
func New(cfg Config, opts ...Option) *Connector {
	c := &Connector{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
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

// Validate checks that the API is reachable.
func (c *Connector) Validate(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	params := url.Values{}
	params.Set("limit", "1")
	_, err := c.queryOrders(ctx, params)
	return err
}

// Discover streams handles for orders issued since the given time.
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

		offset := 0
		for {
			params := url.Values{}
			params.Set("filters", issuedSinceFilter(since))
			params.Set("sort_by", "ISSUED_DATE")
			params.Set("sort_order", "ASC")
			params.Set("limit", strconv.Itoa(c.cfg.PageSize))
			params.Set("offset", strconv.Itoa(offset))

			records, err := c.queryOrders(ctx, params)
			if err != nil {
				errs <- fmt.Errorf("discovering orders at offset %d: %w", offset, err)
				return
			}

			for _, rec := range records {
				handle := domain.RecordHandle{
					Source:     SourceName,
					ExternalID: rec.OrderID,
					URL:        c.cfg.BaseURL + "/enforcement-orders?filters=" + url.QueryEscape("ORDER_ID:"+rec.OrderID),
				}
				select {
				case <-ctx.Done():
					return
				case handles <- handle:
				}
			}

			if len(records) < c.cfg.PageSize {
				return
			}
			offset += c.cfg.PageSize
		}
	}()

	return handles, errs
}

// Fetch retrieves one order by its order number.
func (c *Connector) Fetch(ctx context.Context, handle domain.RecordHandle) (*domain.RawRecord, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	params := url.Values{}
	params.Set("filters", "ORDER_ID:"+handle.ExternalID)
	params.Set("limit", "1")

	records, err := c.queryOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", handle.ExternalID, err)
	}
	if len(records) == 0 {
		return nil, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("order %s: %w", handle.ExternalID, domain.ErrNotFound),
		}
	}

	return c.toRawRecord(records[0], handle)
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ordersResponse mirrors the FDIC API envelope: each hit wraps the
// record in its own "data" object.
type ordersResponse struct {
	Data []struct {
		Data orderRecord `json:"data"`
	} `json:"data"`
}

type orderRecord struct {
	OrderID     string      `json:"ORDER_ID"`
	Title       string      `json:"TITLE"`
	OrderType   string      `json:"ORDER_TYPE"`
	IssuedDate  string      `json:"ISSUED_DATE"`
	BankName    string      `json:"BANK_NAME"`
	Cert        json.Number `json:"CERT"`
	FineAmount  json.Number `json:"FINE_AMOUNT"`
	FineText    string      `json:"FINE_TEXT"`
	Summary     string      `json:"SUMMARY"`
	Termination string      `json:"TERMINATION"`
}

func (c *Connector) queryOrders(ctx context.Context, params url.Values) ([]orderRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.cfg.BaseURL + "/enforcement-orders?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientSourceError{Source: SourceName, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, reqURL); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientSourceError{Source: SourceName, Err: err}
	}

	var parsed ordersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("decoding response: %w", err),
		}
	}

	records := make([]orderRecord, 0, len(parsed.Data))
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
			Source: SourceName,
			Err:    &APIError{StatusCode: resp.StatusCode, URL: reqURL},
		}
	default:
		return &APIError{StatusCode: resp.StatusCode, URL: reqURL}
	}
}

func (c *Connector) toRawRecord(rec orderRecord, handle domain.RecordHandle) (*domain.RawRecord, error) {
	issued, err := time.Parse(dateFormat, rec.IssuedDate)
	if err != nil {
		return nil, &domain.StructuralSourceError{
			Source: SourceName,
			Err:    fmt.Errorf("order %s: bad issued date %q: %w", rec.OrderID, rec.IssuedDate, err),
		}
	}

	penalty, _ := rec.FineAmount.Int64()

	return &domain.RawRecord{
		Source:      SourceName,
		ExternalID:  rec.OrderID,
		URL:         handle.URL,
		RetrievedAt: time.Now().UTC(),
		Kind:        domain.KindEnforcement,
		Enforcement: &domain.EnforcementOrder{
			Title:       rec.Title,
			OrderType:   rec.OrderType,
			Regulator:   "FDIC",
			IssuedDate:  issued,
			Summary:     rec.Summary,
			BankName:    rec.BankName,
			CertNumber:  rec.Cert.String(),
			PenaltyUSD:  penalty,
			PenaltyText: rec.FineText,
			BankFailure: isFailureOrder(rec),
		},
	}, nil
}

// isFailureOrder marks receivership and failed-bank orders.
func isFailureOrder(rec orderRecord) bool {
	text := strings.ToLower(rec.OrderType + " " + rec.Title)
	return strings.Contains(text, "receivership") || strings.Contains(text, "receiver")
}

// issuedSinceFilter builds the ISSUED_DATE range filter. A zero time
// means no lower bound.
func issuedSinceFilter(since time.Time) string {
	if since.IsZero() {
		return "ISSUED_DATE:[* TO *]"
	}
	return "ISSUED_DATE:[" + since.Format(dateFormat) + " TO *]"
}
