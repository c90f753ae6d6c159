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

const pypiDocument = `{
  "info": {
    "name": "requests",
    "version": "2.31.0",
    "summary": "Python HTTP for Humans.",
    "license": "Apache 2.0",
    "home_page": "https://requests.readthedocs.io",
    "requires_dist": ["urllib3"]
  }
}`

func newTestPyPIFetcher(t *testing.T, server *httptest.Server) *PyPIFetcher {
	t.Helper()
	client := httpclient.New(httpclient.Config{})
	cache := cachestore.NewMemoryStore(16)
	providers := map[string]urlresolver.ProviderURLs{
		"pypi": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet(server.URL+"/pypi/{{ software_name }}/json", nil, nil),
			nil,
		),
	}
	resolver := urlresolver.New(providers, nil)
	return NewPyPIFetcher(client, cache, resolver, time.Minute)
}

func TestPyPIFetcher_GetPackage_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pypiDocument))
	}))
	defer server.Close()

	f := newTestPyPIFetcher(t, server)
	pkg, err := f.GetPackage(context.Background(), "requests")
	require.NoError(t, err)
	assert.Equal(t, "requests", pkg.Name)
	assert.Equal(t, "2.31.0", pkg.Version)
	assert.Equal(t, "Apache 2.0", pkg.License)
	assert.Equal(t, "pypi", pkg.Provider)
}

func TestPyPIFetcher_Search_WithoutConfiguredURL_ReturnsError(t *testing.T) {
	f := newTestPyPIFetcher(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	_, err := f.Search(context.Background(), "requests")
	assert.ErrorIs(t, err, ErrSearchNotConfigured)
}

func TestPyPIFetcher_FetchAll_ReportsUnsupported(t *testing.T) {
	f := newTestPyPIFetcher(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	_, err := f.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrFullIndexUnsupported)
}
