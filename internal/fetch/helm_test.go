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

const helmIndexYAML = `
apiVersion: v1
entries:
  redis:
    - name: redis
      version: 17.0.0
      description: In-memory key-value store
      home: https://redis.io
      sources:
        - https://github.com/bitnami/charts
`

func newTestHelmFetcher(t *testing.T, server *httptest.Server) *HelmFetcher {
	t.Helper()
	client := httpclient.New(httpclient.Config{})
	cache := cachestore.NewMemoryStore(16)
	providers := map[string]urlresolver.ProviderURLs{
		"helm": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet(server.URL+"/index.yaml", nil, nil),
			nil,
		),
	}
	resolver := urlresolver.New(providers, nil)
	return NewHelmFetcher(client, cache, resolver, time.Minute)
}

func TestHelmFetcher_GetPackage_FindsLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(helmIndexYAML))
	}))
	defer server.Close()

	f := newTestHelmFetcher(t, server)
	pkg, err := f.GetPackage(context.Background(), "redis")
	require.NoError(t, err)
	assert.Equal(t, "redis", pkg.Name)
	assert.Equal(t, "17.0.0", pkg.Version)
	assert.Equal(t, "https://github.com/bitnami/charts", pkg.SourceURL)
}

func TestHelmFetcher_GetPackage_UnknownChart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(helmIndexYAML))
	}))
	defer server.Close()

	f := newTestHelmFetcher(t, server)
	_, err := f.GetPackage(context.Background(), "postgresql")
	assert.Error(t, err)
}

func TestHelmFetcher_FetchAll_ListsEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(helmIndexYAML))
	}))
	defer server.Close()

	f := newTestHelmFetcher(t, server)
	snapshot, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Packages, 1)
	assert.Equal(t, "redis", snapshot.Packages[0].Name)
}

func TestHelmFetcher_Search_CaseInsensitive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(helmIndexYAML))
	}))
	defer server.Close()

	f := newTestHelmFetcher(t, server)
	matches, err := f.Search(context.Background(), "RED")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "redis", matches[0].Name)
}
