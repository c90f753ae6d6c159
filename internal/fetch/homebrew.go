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

// HomebrewFetcher adapts the Homebrew formula API
// (https://formulae.brew.sh/api/formula/<name>.json) to the shared
// Fetcher contract.
type HomebrewFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewHomebrewFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *HomebrewFetcher {
	return &HomebrewFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *HomebrewFetcher) RepositoryName() string { return "brew" }

type homebrewDocument struct {
	Name      string   `json:"name"`
	Desc      string   `json:"desc"`
	Homepage  string   `json:"homepage"`
	License   string   `json:"license"`
	Versions  struct {
		Stable string `json:"stable"`
	} `json:"versions"`
	Dependencies []string `json:"dependencies"`
}

func (f *HomebrewFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	cacheKey := fmt.Sprintf("brew/%s", name)
	if raw, _, err := f.cache.Get(ctx, cacheKey); err == nil {
		var doc homebrewDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return f.toPackageInfo(&doc), nil
		}
	}

	resolved := f.resolver.Resolve("brew", "", "", "", map[string]string{"software_name": name})
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return nil, err
	}

	var doc homebrewDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("brew: decode %s: %w", name, err)
	}

	_ = f.cache.Put(ctx, cacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/json"})
	return f.toPackageInfo(&doc), nil
}

func (f *HomebrewFetcher) toPackageInfo(doc *homebrewDocument) *PackageInfo {
	return &PackageInfo{
		Name:         doc.Name,
		Version:      doc.Versions.Stable,
		Description:  doc.Desc,
		License:      doc.License,
		Homepage:     doc.Homepage,
		Dependencies: doc.Dependencies,
		Provider:     "brew",
		FetchedAt:    time.Now(),
	}
}

// FetchAll hits https://formulae.brew.sh/api/formula.json, the full
// formula listing Homebrew itself publishes for exactly this purpose.
func (f *HomebrewFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	resolved := f.resolver.Resolve("brew", "", "", "", nil)
	allURL, ok := resolved.Named["all_formulae_url"]
	if !ok {
		return IndexSnapshot{Provider: "brew", FetchedAt: time.Now()}, ErrFullIndexUnsupported
	}

	resp, err := f.client.Fetch(ctx, allURL, nil, 0)
	if err != nil {
		return IndexSnapshot{Provider: "brew", FetchedAt: time.Now()}, err
	}

	var docs []homebrewDocument
	if err := json.Unmarshal(resp.Body, &docs); err != nil {
		return IndexSnapshot{Provider: "brew", FetchedAt: time.Now()}, fmt.Errorf("brew: decode formula.json: %w", err)
	}

	snapshot := IndexSnapshot{Provider: "brew", FetchedAt: time.Now()}
	for i := range docs {
		snapshot.Packages = append(snapshot.Packages, *f.toPackageInfo(&docs[i]))
	}
	return snapshot, nil
}

func (f *HomebrewFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	resolved := f.resolver.Resolve("brew", "", "", "", map[string]string{"software_name": query})
	searchURL, ok := resolved.Named["search_url"]
	if !ok {
		return nil, ErrSearchNotConfigured
	}

	resp, err := f.client.Fetch(ctx, searchURL, nil, 0)
	if err != nil {
		return nil, err
	}

	var docs []homebrewDocument
	if err := json.Unmarshal(resp.Body, &docs); err != nil {
		return nil, fmt.Errorf("brew: decode search results: %w", err)
	}

	matches := make([]PackageMatch, 0, len(docs))
	for _, d := range docs {
		matches = append(matches, PackageMatch{Name: d.Name, Version: d.Versions.Stable, Description: d.Desc})
	}
	return matches, nil
}
