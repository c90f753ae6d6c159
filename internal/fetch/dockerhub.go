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

// DockerHubFetcher adapts the Docker Hub v2 repository API
// (https://hub.docker.com/v2/repositories/<namespace>/<name>) to the
// shared Fetcher contract. Docker images have no "dependencies" in the
// package-manager sense; RawAttrs carries the pull_count/star_count
// instead.
type DockerHubFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewDockerHubFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *DockerHubFetcher {
	return &DockerHubFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *DockerHubFetcher) RepositoryName() string { return "docker" }

type dockerHubDocument struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
	PullCount   int64  `json:"pull_count"`
	StarCount   int64  `json:"star_count"`
}

func (f *DockerHubFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	cacheKey := fmt.Sprintf("docker/%s", name)
	if raw, _, err := f.cache.Get(ctx, cacheKey); err == nil {
		var doc dockerHubDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return f.toPackageInfo(&doc), nil
		}
	}

	resolved := f.resolver.Resolve("docker", "", "", "", map[string]string{"software_name": name})
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, map[string]string{"Accept": "application/json"}, 0)
	if err != nil {
		return nil, err
	}

	var doc dockerHubDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("docker: decode %s: %w", name, err)
	}

	_ = f.cache.Put(ctx, cacheKey, resp.Body, f.ttl, cachestore.Meta{ContentType: "application/json"})
	return f.toPackageInfo(&doc), nil
}

func (f *DockerHubFetcher) toPackageInfo(doc *dockerHubDocument) *PackageInfo {
	return &PackageInfo{
		Name:        doc.Name,
		Description: doc.Description,
		RawAttrs: map[string]string{
			"namespace":  doc.Namespace,
			"pull_count": fmt.Sprintf("%d", doc.PullCount),
			"star_count": fmt.Sprintf("%d", doc.StarCount),
		},
		Provider:  "docker",
		FetchedAt: time.Now(),
	}
}

func (f *DockerHubFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	return IndexSnapshot{Provider: "docker", FetchedAt: time.Now()}, ErrFullIndexUnsupported
}

func (f *DockerHubFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	resolved := f.resolver.Resolve("docker", "", "", "", map[string]string{"software_name": query})
	searchURL, ok := resolved.Named["search_url"]
	if !ok {
		return nil, ErrSearchNotConfigured
	}

	resp, err := f.client.Fetch(ctx, searchURL, nil, 0)
	if err != nil {
		return nil, err
	}

	var result struct {
		Results []struct {
			RepoName         string `json:"repo_name"`
			ShortDescription string `json:"short_description"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("docker: decode search results: %w", err)
	}

	matches := make([]PackageMatch, 0, len(result.Results))
	for _, r := range result.Results {
		matches = append(matches, PackageMatch{Name: r.RepoName, Description: r.ShortDescription})
	}
	return matches, nil
}
