package bankfind

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func institutionsJSON(cert int, name string) string {
	return fmt.Sprintf(`{"data":[{"data":{"CERT":%d,"NAME":%q,"ACTIVE":1}}]}`, cert, name)
}

func TestClient_Lookup_ByCert(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, institutionsJSON(3511, "JPMorgan Chase Bank, National Association"))
	})

	inst, err := client.Lookup(context.Background(), domain.Reference{Identifier: "3511"})
	require.NoError(t, err)
	assert.Equal(t, "cert:3511", inst.Key)
	assert.Equal(t, "JPMorgan Chase Bank, National Association", inst.CurrentName)
	assert.Contains(t, gotQuery, "CERT%3A3511")
}

func TestClient_Lookup_ByName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, institutionsJSON(628, "First National Bank"))
	})

	inst, err := client.Lookup(context.Background(), domain.Reference{Name: "First National Bank, N.A."})
	require.NoError(t, err)
	assert.Equal(t, "cert:628", inst.Key)
}

func TestClient_Lookup_NameMustMatchExactly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The search endpoint returns a near match; the client must
		// not accept it.
		fmt.Fprint(w, institutionsJSON(999, "Completely Different Bank"))
	})

	_, err := client.Lookup(context.Background(), domain.Reference{Name: "First National Bank"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Lookup_FallsBackFromCertToName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filters") != "" {
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		fmt.Fprint(w, institutionsJSON(42, "Example Bank"))
	})

	inst, err := client.Lookup(context.Background(), domain.Reference{
		Identifier: "99999",
		Name:       "Example Bank",
	})
	require.NoError(t, err)
	assert.Equal(t, "cert:42", inst.Key)
}

func TestClient_Lookup_EmptyResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})

	_, err := client.Lookup(context.Background(), domain.Reference{Identifier: "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Lookup_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Lookup(context.Background(), domain.Reference{Identifier: "1"})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_Lookup_ClientErrorIsNotTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Lookup(context.Background(), domain.Reference{Identifier: "1"})
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_Lookup_EmptyReference(t *testing.T) {
	client := NewClient()

	_, err := client.Lookup(context.Background(), domain.Reference{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
