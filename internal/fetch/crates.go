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

// CratesFetcher adapts https://crates.io/api/v1/crates/<name> to the shared
// Fetcher contract.
type CratesFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewCratesFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *CratesFetcher {
	return &CratesFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *CratesFetcher) RepositoryName() string { return "crates" }

type cratesDocument struct {
	Crate struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		Homepage      string `json:"homepage"`
		Repository    string `json:"repository"`
		MaxStableVersion string `json:"max_stable_version"`
	} `json:"crate"`
	Versions []struct {
		Num     string `json:"num"`
		License string `json:"license"`
	} `json:"versions"`
}

func (f *CratesFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	cacheKey := fmt.Sprintf("crates/%s", name)
	if raw, _, err := f.cache.Get(ctx, cacheKey); err == nil {
		var doc cratesDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return f.toPackageInfo(&doc), nil
		}
	}

	resolved := f.resolver.Resolve("crates", "", "", "", map[string]string{"software_name": name})
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return nil, err
	}

	var doc cratesDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("crates: decode %s: %w", name, err)
	}

	_ = f.cache.Put(ctx, cacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/json"})
	return f.toPackageInfo(&doc), nil
}

func (f *CratesFetcher) toPackageInfo(doc *cratesDocument) *PackageInfo {
	license := ""
	if len(doc.Versions) > 0 {
		license = doc.Versions[0].License
	}
	return &PackageInfo{
		Name:        doc.Crate.Name,
		Version:     doc.Crate.MaxStableVersion,
		Description: doc.Crate.Description,
		License:     license,
		Homepage:    doc.Crate.Homepage,
		SourceURL:   doc.Crate.Repository,
		Provider:    "crates",
		FetchedAt:   time.Now(),
	}
}

func (f *CratesFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	return IndexSnapshot{Provider: "crates", FetchedAt: time.Now()}, ErrFullIndexUnsupported
}

func (f *CratesFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	resolved := f.resolver.Resolve("crates", "", "", "", map[string]string{"software_name": query})
	searchURL, ok := resolved.Named["search_url"]
	if !ok {
		return nil, ErrSearchNotConfigured
	}

	resp, err := f.client.Fetch(ctx, searchURL, nil, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		Crates []struct {
			Name        string `json:"name"`
			MaxVersion  string `json:"max_version"`
			Description string `json:"description"`
		} `json:"crates"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("crates: decode search results: %w", err)
	}

	matches := make([]PackageMatch, 0, len(result.Crates))
	for _, c := range result.Crates {
		matches = append(matches, PackageMatch{Name: c.Name, Version: c.MaxVersion, Description: c.Description})
	}
	return matches, nil
}
