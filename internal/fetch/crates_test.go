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

const cratesDocument = `{
  "crate": {
    "name": "serde",
    "description": "serialization framework",
    "homepage": "https://serde.rs",
    "repository": "https://github.com/serde-rs/serde",
    "max_stable_version": "1.0.196"
  },
  "versions": [{"num": "1.0.196", "license": "MIT OR Apache-2.0"}]
}`

func newTestCratesFetcher(t *testing.T, server *httptest.Server) *CratesFetcher {
	t.Helper()
	client := httpclient.New(httpclient.Config{})
	cache := cachestore.NewMemoryStore(16)
	providers := map[string]urlresolver.ProviderURLs{
		"crates": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet(server.URL+"/api/v1/crates/{{ software_name }}", nil, map[string]string{
				"search_url": server.URL + "/api/v1/crates?q={{ software_name }}",
			}),
			nil,
		),
	}
	resolver := urlresolver.New(providers, nil)
	return NewCratesFetcher(client, cache, resolver, time.Minute)
}

func TestCratesFetcher_GetPackage_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cratesDocument))
	}))
	defer server.Close()

	f := newTestCratesFetcher(t, server)
	pkg, err := f.GetPackage(context.Background(), "serde")
	require.NoError(t, err)
	assert.Equal(t, "serde", pkg.Name)
	assert.Equal(t, "1.0.196", pkg.Version)
	assert.Equal(t, "MIT OR Apache-2.0", pkg.License)
	assert.Equal(t, "https://github.com/serde-rs/serde", pkg.SourceURL)
}

func TestCratesFetcher_Search_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"crates":[{"name":"serde","max_version":"1.0.196","description":"serialization framework"}]}`))
	}))
	defer server.Close()

	f := newTestCratesFetcher(t, server)
	matches, err := f.Search(context.Background(), "serde")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "serde", matches[0].Name)
}
