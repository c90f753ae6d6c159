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

const homebrewDoc = `{
  "name": "jq",
  "desc": "Lightweight and flexible command-line JSON processor",
  "homepage": "https://jqlang.github.io/jq/",
  "license": "MIT",
  "versions": {"stable": "1.7.1"},
  "dependencies": ["oniguruma"]
}`

func newTestHomebrewFetcher(t *testing.T, server *httptest.Server) *HomebrewFetcher {
	t.Helper()
	client := httpclient.New(httpclient.Config{})
	cache := cachestore.NewMemoryStore(16)
	providers := map[string]urlresolver.ProviderURLs{
		"brew": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet(server.URL+"/api/formula/{{ software_name }}.json", nil, map[string]string{
				"all_formulae_url": server.URL + "/api/formula.json",
				"search_url":       server.URL + "/api/search?q={{ software_name }}",
			}),
			nil,
		),
	}
	resolver := urlresolver.New(providers, nil)
	return NewHomebrewFetcher(client, cache, resolver, time.Minute)
}

func TestHomebrewFetcher_GetPackage_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(homebrewDoc))
	}))
	defer server.Close()

	f := newTestHomebrewFetcher(t, server)
	pkg, err := f.GetPackage(context.Background(), "jq")
	require.NoError(t, err)
	assert.Equal(t, "jq", pkg.Name)
	assert.Equal(t, "1.7.1", pkg.Version)
	assert.Equal(t, []string{"oniguruma"}, pkg.Dependencies)
}

func TestHomebrewFetcher_FetchAll_Decodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[" + homebrewDoc + "]"))
	}))
	defer server.Close()

	f := newTestHomebrewFetcher(t, server)
	snapshot, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Packages, 1)
	assert.Equal(t, "jq", snapshot.Packages[0].Name)
}
