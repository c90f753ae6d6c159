package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

// PyPIFetcher adapts https://pypi.org/pypi/<name>/json to the shared
// Fetcher contract; same shape as NPMFetcher, different document.
type PyPIFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewPyPIFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *PyPIFetcher {
	return &PyPIFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *PyPIFetcher) RepositoryName() string { return "pypi" }

type pypiDocument struct {
	Info struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Summary     string `json:"summary"`
		License     string `json:"license"`
		HomePage    string `json:"home_page"`
		RequiresDist []string `json:"requires_dist"`
	} `json:"info"`
}

func (f *PyPIFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	cacheKey := fmt.Sprintf("pypi/%s", name)
	if raw, _, err := f.cache.Get(ctx, cacheKey); err == nil {
		var doc pypiDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return f.toPackageInfo(&doc), nil
		}
	}

	resolved := f.resolver.Resolve("pypi", "", "", "", map[string]string{"software_name": name})
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return nil, err
	}

	var doc pypiDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("pypi: decode %s: %w", name, err)
	}

	_ = f.cache.Put(ctx, cacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/json"})
	return f.toPackageInfo(&doc), nil
}

func (f *PyPIFetcher) toPackageInfo(doc *pypiDocument) *PackageInfo {
	return &PackageInfo{
		Name:         doc.Info.Name,
		Version:      doc.Info.Version,
		Description:  doc.Info.Summary,
		License:      doc.Info.License,
		Homepage:     doc.Info.HomePage,
		Dependencies: doc.Info.RequiresDist,
		Provider:     "pypi",
		FetchedAt:    time.Now(),
	}
}

// FetchAll: PyPI's simple index lists names only, with no version/metadata,
// so a full PackageInfo listing is not economical here either.
func (f *PyPIFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	return IndexSnapshot{Provider: "pypi", FetchedAt: time.Now()}, ErrFullIndexUnsupported
}

func (f *PyPIFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	// PyPI retired its XML-RPC search API; without a configured search_url
	// this reports unsupported rather than guessing at an endpoint.
	resolved := f.resolver.Resolve("pypi", "", "", "", map[string]string{"software_name": query})
	if _, ok := resolved.Named["search_url"]; !ok {
		return nil, ErrSearchNotConfigured
	}

	resp, err := f.client.Fetch(ctx, resolved.Named["search_url"], nil, 0)
	if err != nil {
		return nil, err
	}

	var results []PackageMatch
	if err := json.Unmarshal(resp.Body, &results); err != nil {
		return nil, fmt.Errorf("pypi: decode search results: %w", err)
	}
	return results, nil
}
