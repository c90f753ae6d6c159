package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

const npmDocument = `{
  "name": "left-pad",
  "dist-tags": {"latest": "1.3.0"},
  "versions": {
    "1.3.0": {
      "version": "1.3.0",
      "description": "pad a string",
      "license": "WTFPL",
      "homepage": "https://github.com/stevemao/left-pad",
      "dependencies": {"foo": "^1.0.0"}
    }
  }
}`

func newTestNPMFetcher(t *testing.T, server *httptest.Server) *NPMFetcher {
	t.Helper()
	client := httpclient.New(httpclient.Config{})
	cache := cachestore.NewMemoryStore(16)
	providers := map[string]urlresolver.ProviderURLs{
		"npm": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet(server.URL+"/{{ software_name }}", nil, map[string]string{
				"search_url": server.URL + "/-/v1/search?text={{ software_name }}",
			}),
			nil,
		),
	}
	resolver := urlresolver.New(providers, nil)
	return NewNPMFetcher(client, cache, resolver, time.Minute)
}

func TestNPMFetcher_GetPackage_DecodesLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(npmDocument))
	}))
	defer server.Close()

	f := newTestNPMFetcher(t, server)
	pkg, err := f.GetPackage(context.Background(), "left-pad")
	require.NoError(t, err)
	assert.Equal(t, "left-pad", pkg.Name)
	assert.Equal(t, "1.3.0", pkg.Version)
	assert.Equal(t, "pad a string", pkg.Description)
	assert.Equal(t, "WTFPL", pkg.License)
	assert.Equal(t, []string{"foo"}, pkg.Dependencies)
	assert.Equal(t, "npm", pkg.Provider)
}

func TestNPMFetcher_GetPackage_UsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(npmDocument))
	}))
	defer server.Close()

	f := newTestNPMFetcher(t, server)
	_, err := f.GetPackage(context.Background(), "left-pad")
	require.NoError(t, err)
	_, err = f.GetPackage(context.Background(), "left-pad")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestNPMFetcher_FetchAll_ReportsUnsupported(t *testing.T) {
	f := newTestNPMFetcher(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	_, err := f.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrFullIndexUnsupported)
}

func TestNPMFetcher_Search_DecodesMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objects":[{"package":{"name":"left-pad","version":"1.3.0","description":"pad a string"}}]}`))
	}))
	defer server.Close()

	f := newTestNPMFetcher(t, server)
	matches, err := f.Search(context.Background(), "left-pad")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "left-pad", matches[0].Name)
}

func TestNPMFetcher_RepositoryName(t *testing.T) {
	f := newTestNPMFetcher(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	assert.Equal(t, "npm", f.RepositoryName())
}
