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

// NPMFetcher is the HTTP-JSON transport family's reference implementation
// (npm registry). PyPI, Crates, Docker Hub and the Homebrew formula API
// follow the identical fetch-decode-map shape with a different
// response struct, grounded on the same caching-wrapper-around-a-simple-
// HTTP-client pattern.
type NPMFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

// NewNPMFetcher wires the shared collaborators into an npm adapter.
func NewNPMFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *NPMFetcher {
	return &NPMFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *NPMFetcher) RepositoryName() string { return "npm" }

type npmPackageDocument struct {
	Name     string `json:"name"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
	Versions map[string]struct {
		Version      string            `json:"version"`
		Description  string            `json:"description"`
		License      string            `json:"license"`
		Homepage     string            `json:"homepage"`
		Repository   json.RawMessage   `json:"repository"`
		Dependencies map[string]string `json:"dependencies"`
	} `json:"versions"`
}

// GetPackage fetches https://registry.npmjs.org/<name>, decodes the npm
// package document and maps the `dist-tags.latest` version into
// PackageInfo. A cache-lookup precedes the HTTP fetch, keyed by
// provider/name so repeated runs in the same cache TTL window don't
// re-hit the registry.
func (f *NPMFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	cacheKey := fmt.Sprintf("npm/%s", name)
	if raw, _, err := f.cache.Get(ctx, cacheKey); err == nil {
		var doc npmPackageDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return f.toPackageInfo(&doc), nil
		}
	}

	resolved := f.resolver.Resolve("npm", "", "", "", map[string]string{"software_name": name})
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return nil, err
	}

	var doc npmPackageDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("npm: decode %s: %w", name, err)
	}

	_ = f.cache.Put(ctx, cacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/json"})
	return f.toPackageInfo(&doc), nil
}

func (f *NPMFetcher) toPackageInfo(doc *npmPackageDocument) *PackageInfo {
	version := doc.DistTags.Latest
	v, ok := doc.Versions[version]
	if !ok {
		return &PackageInfo{Name: doc.Name, Version: version, Provider: "npm", FetchedAt: time.Now()}
	}

	deps := make([]string, 0, len(v.Dependencies))
	for dep := range v.Dependencies {
		deps = append(deps, dep)
	}

	return &PackageInfo{
		Name:         doc.Name,
		Version:      v.Version,
		Description:  v.Description,
		License:      v.License,
		Homepage:     v.Homepage,
		Dependencies: deps,
		Provider:     "npm",
		FetchedAt:    time.Now(),
	}
}

// FetchAll is not economical for the npm registry (there is no bulk index
// endpoint); it reports unsupported rather than attempting to enumerate
// millions of packages.
func (f *NPMFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	return IndexSnapshot{Provider: "npm", FetchedAt: time.Now()}, ErrFullIndexUnsupported
}

// Search hits npm's search endpoint; https://registry.npmjs.org/-/v1/search?text=
func (f *NPMFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	resolved := f.resolver.Resolve("npm", "", "", "", map[string]string{"software_name": query})
	searchURL, ok := resolved.Named["search_url"]
	if !ok {
		return nil, ErrSearchNotConfigured
	}

	resp, err := f.client.Fetch(ctx, searchURL, nil, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		Objects []struct {
			Package struct {
				Name        string `json:"name"`
				Version     string `json:"version"`
				Description string `json:"description"`
			} `json:"package"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("npm: decode search results: %w", err)
	}

	matches := make([]PackageMatch, 0, len(result.Objects))
	for _, obj := range result.Objects {
		matches = append(matches, PackageMatch{
			Name:        obj.Package.Name,
			Version:     obj.Package.Version,
			Description: obj.Package.Description,
		})
	}
	return matches, nil
}
