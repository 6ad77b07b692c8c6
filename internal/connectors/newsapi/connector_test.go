package newsapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

func testConfig() Config {
	return Config{
		APIKey:    "test-key",
		Watchlist: []string{"Example Bank", "Coastal Trust"},
	}
}

func newTestConnector(t *testing.T, cfg Config, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	conn := New(cfg, WithHTTPClient(srv.Client()))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func articleJSON(title, articleURL string) string {
	return fmt.Sprintf(`{
		"source":{"name":"Example Times"},
		"title":%q,"description":"details","content":"body text",
		"url":%q,"publishedAt":"2024-03-12T10:30:00Z"
	}`, title, articleURL)
}

func drain(t *testing.T, handles <-chan domain.RecordHandle, errs <-chan error) ([]domain.RecordHandle, error) {
	t.Helper()
	var out []domain.RecordHandle
	for h := range handles {
		out = append(out, h)
	}
	return out, <-errs
}

func TestConnector_DiscoverAndFetch(t *testing.T) {
	var gotKey, gotQuery string
	conn := newTestConnector(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprintf(w, `{"status":"ok","totalResults":1,"articles":[%s]}`,
			articleJSON("Example Bank hit by data breach", "https://news.test/breach"))
	})

	handles, errs := conn.Discover(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	got, err := drain(t, handles, errs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SourceName, got[0].Source)
	assert.Empty(t, got[0].ExternalID)
	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, gotQuery, `"Example Bank"`)
	assert.Contains(t, gotQuery, `"Coastal Trust"`)

	raw, err := conn.Fetch(context.Background(), got[0])
	require.NoError(t, err)
	assert.Equal(t, domain.KindNews, raw.Kind)
	require.NotNil(t, raw.News)
	assert.Equal(t, "Example Bank hit by data breach", raw.News.Title)
	assert.Equal(t, "Example Times", raw.News.Publisher)
	assert.Equal(t, []string{"Example Bank"}, raw.News.Institutions)
	assert.True(t, raw.News.PublishedAt.Equal(time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)))
}

func TestConnector_Discover_SkipsArticlesWithoutMentions(t *testing.T) {
	conn := newTestConnector(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"ok","totalResults":2,"articles":[%s,%s]}`,
			articleJSON("Unrelated market news", "https://news.test/markets"),
			articleJSON("Coastal Trust settles lawsuit", "https://news.test/lawsuit"))
	})

	handles, errs := conn.Discover(context.Background(), time.Time{})
	got, err := drain(t, handles, errs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://news.test/lawsuit", got[0].URL)
}

func TestConnector_Discover_Paginates(t *testing.T) {
	cfg := testConfig()
	cfg.PageSize = 1
	cfg.MaxPages = 10

	var pages []string
	conn := newTestConnector(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		u := "https://news.test/a" + page
		fmt.Fprintf(w, `{"status":"ok","totalResults":2,"articles":[%s]}`,
			articleJSON("Example Bank fined", u))
	})

	handles, errs := conn.Discover(context.Background(), time.Time{})
	got, err := drain(t, handles, errs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestConnector_Discover_MaxPagesBounds(t *testing.T) {
	cfg := testConfig()
	cfg.PageSize = 1
	cfg.MaxPages = 2

	var requests int
	conn := newTestConnector(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		requests++
		u := fmt.Sprintf("https://news.test/a%d", requests)
		fmt.Fprintf(w, `{"status":"ok","totalResults":100,"articles":[%s]}`,
			articleJSON("Example Bank fined", u))
	})

	handles, errs := conn.Discover(context.Background(), time.Time{})
	got, err := drain(t, handles, errs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, requests)
}

func TestConnector_Discover_RateLimitedIsTransient(t *testing.T) {
	conn := newTestConnector(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"status":"error","code":"rateLimited","message":"too many requests"}`)
	})

	handles, errs := conn.Discover(context.Background(), time.Time{})
	_, err := drain(t, handles, errs)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestConnector_Discover_BadKeyIsNotTransient(t *testing.T) {
	conn := newTestConnector(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`)
	})

	handles, errs := conn.Discover(context.Background(), time.Time{})
	_, err := drain(t, handles, errs)
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "apiKeyInvalid", apiErr.Code)
}

func TestConnector_Fetch_UndiscoveredIsStructural(t *testing.T) {
	conn := New(testConfig())

	_, err := conn.Fetch(context.Background(), domain.RecordHandle{URL: "https://news.test/unknown"})
	require.Error(t, err)
	assert.True(t, domain.IsStructural(err))
}

func TestConnector_Validate_RequiresConfig(t *testing.T) {
	conn := New(Config{Watchlist: []string{"Example Bank"}})
	assert.ErrorIs(t, conn.Validate(context.Background()), ErrAPIKeyMissing)

	conn = New(Config{APIKey: "k"})
	assert.ErrorIs(t, conn.Validate(context.Background()), ErrWatchlistEmpty)
}

func TestConnector_ClosedRejectsCalls(t *testing.T) {
	conn := New(testConfig())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.Validate(context.Background()), ErrClosed)

	handles, errs := conn.Discover(context.Background(), time.Time{})
	_, err := drain(t, handles, errs)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParseCustomers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int64
	}{
		{"plain count", "data of 200,000 customers exposed", 200000},
		{"millions", "affecting 1.5 million customers", 1500000},
		{"no count", "bank fined by regulator", 0},
		{"number without customers", "fined $5 million", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCustomers(tt.text))
		})
	}
}
