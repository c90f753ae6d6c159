// Package fetch implements the C6 fetcher set: one adapter per provider,
// grouped by transport family (HTTP-JSON, HTTP-text-index, XML-repomd,
// git-clone, local-command), all normalizing to PackageInfo. Every fetcher
// shares the same collaborators — HTTP Client, Cache Store, URL Resolver,
// Dependency Checker — and holds no long-lived per-process state beyond
// its cache.
package fetch

import (
	"context"
	"time"
)

// PackageInfo is the normalized record produced by every fetcher (spec §3).
type PackageInfo struct {
	Name         string
	Version      string
	Description  string
	License      string
	Homepage     string
	SourceURL    string
	Dependencies []string
	RawAttrs     map[string]string
	Provider     string
	FetchedAt    time.Time
	Confidence   int
}

// PackageMatch is one hit from a repository-wide search.
type PackageMatch struct {
	Name        string
	Version     string
	Description string
}

// SkippedRecord documents one record a fetcher could not parse, without
// failing the whole index.
type SkippedRecord struct {
	Identifier string
	Reason     string
}

// IndexSnapshot is the result of fetch_all(): every package the provider's
// index currently lists, plus a summary of anything that failed to parse.
type IndexSnapshot struct {
	Provider string
	Packages []PackageInfo
	Skipped  []SkippedRecord
	FetchedAt time.Time
}

// Fetcher is the shared contract every provider adapter implements (spec
// §4.6). GetDetails is not part of it: it lives on the separate
// DetailFetcher interface, which no adapter in this package implements.
type Fetcher interface {
	RepositoryName() string
	FetchAll(ctx context.Context) (IndexSnapshot, error)
	GetPackage(ctx context.Context, name string) (*PackageInfo, error)
	Search(ctx context.Context, query string) ([]PackageMatch, error)
}

// DetailFetcher is implemented by adapters with a distinct, richer
// per-package endpoint beyond what their index entry already carries.
type DetailFetcher interface {
	GetDetails(ctx context.Context, name string) (*PackageInfo, error)
}
