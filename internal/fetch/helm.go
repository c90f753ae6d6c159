package fetch

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

// HelmFetcher adapts a Helm chart repository's index.yaml to the shared
// Fetcher contract. Unlike the JSON registries above this is a single
// bulk index document, so FetchAll is the primary operation and
// GetPackage/Search both work against the one cached copy of it, which is
// re-parsed on each call.
type HelmFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewHelmFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *HelmFetcher {
	return &HelmFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *HelmFetcher) RepositoryName() string { return "helm" }

type helmIndexDocument struct {
	Entries map[string][]struct {
		Name        string   `yaml:"name"`
		Version     string   `yaml:"version"`
		Description string   `yaml:"description"`
		Home        string   `yaml:"home"`
		Sources     []string `yaml:"sources"`
	} `yaml:"entries"`
}

const helmCacheKey = "helm/index"

func (f *HelmFetcher) fetchIndex(ctx context.Context) (*helmIndexDocument, error) {
	if raw, _, err := f.cache.Get(ctx, helmCacheKey); err == nil {
		var doc helmIndexDocument
		if err := yaml.Unmarshal(raw, &doc); err == nil {
			return &doc, nil
		}
	}

	resolved := f.resolver.Resolve("helm", "", "", "", nil)
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, nil, 0)
	if err != nil {
		return nil, err
	}

	var doc helmIndexDocument
	if err := yaml.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("helm: decode index.yaml: %w", err)
	}

	_ = f.cache.Put(ctx, helmCacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/yaml"})
	return &doc, nil
}

func (f *HelmFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	doc, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	versions, ok := doc.Entries[name]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("helm: chart %q not found in index", name)
	}

	latest := versions[0]
	var source string
	if len(latest.Sources) > 0 {
		source = latest.Sources[0]
	}
	return &PackageInfo{
		Name:        latest.Name,
		Version:     latest.Version,
		Description: latest.Description,
		Homepage:    latest.Home,
		SourceURL:   source,
		Provider:    "helm",
		FetchedAt:   time.Now(),
	}, nil
}

func (f *HelmFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	doc, err := f.fetchIndex(ctx)
	if err != nil {
		return IndexSnapshot{Provider: "helm", FetchedAt: time.Now()}, err
	}

	snapshot := IndexSnapshot{Provider: "helm", FetchedAt: time.Now()}
	for name, versions := range doc.Entries {
		if len(versions) == 0 {
			snapshot.Skipped = append(snapshot.Skipped, SkippedRecord{Identifier: name, Reason: "no versions listed"})
			continue
		}
		latest := versions[0]
		snapshot.Packages = append(snapshot.Packages, PackageInfo{
			Name:        latest.Name,
			Version:     latest.Version,
			Description: latest.Description,
			Homepage:    latest.Home,
			Provider:    "helm",
			FetchedAt:   snapshot.FetchedAt,
		})
	}
	return snapshot, nil
}

func (f *HelmFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	doc, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var matches []PackageMatch
	for name, versions := range doc.Entries {
		if len(versions) == 0 {
			continue
		}
		if !containsFold(name, query) {
			continue
		}
		latest := versions[0]
		matches = append(matches, PackageMatch{Name: latest.Name, Version: latest.Version, Description: latest.Description})
	}
	return matches, nil
}
