package fetch

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

// decodeBestEffort implements the UTF-8 → Latin-1 → binary-safe fallback
// chain spec §4.6 requires for text indices of uncertain encoding.
func decodeBestEffort(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}
	// Latin-1 (ISO-8859-1): every byte maps 1:1 to a Unicode code point.
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), true
}

// maybeGunzip transparently decompresses gzip-magic-prefixed bodies;
// plain-text bodies pass through unchanged.
func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// controlBlock is one key:value stanza from a Debian control-format file
// (APT Packages, dpkg status). Continuation lines (leading whitespace)
// are folded into the previous key's value.
type controlBlock map[string]string

// parseControlFormat splits text into control-format stanzas separated by
// blank lines, as used by APT's Packages index.
func parseControlFormat(text string) []controlBlock {
	var blocks []controlBlock
	var current controlBlock
	var lastKey string

	flush := func() {
		if current != nil && len(current) > 0 {
			blocks = append(blocks, current)
		}
		current = nil
		lastKey = ""
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current == nil {
			current = controlBlock{}
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			current[lastKey] += "\n" + strings.TrimSpace(line)
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		current[key] = value
		lastKey = key
	}
	flush()
	return blocks
}

// AptFetcher adapts a Debian-family APT Packages(.gz) index to the shared
// Fetcher contract.
type AptFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewAptFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *AptFetcher {
	return &AptFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *AptFetcher) RepositoryName() string { return "apt" }

const aptCacheKey = "apt/packages"

func (f *AptFetcher) fetchIndex(ctx context.Context) ([]controlBlock, []SkippedRecord, error) {
	var skipped []SkippedRecord

	if raw, _, err := f.cache.Get(ctx, aptCacheKey); err == nil {
		return parseControlFormat(string(raw)), nil, nil
	}

	resolved := f.resolver.Resolve("apt", "", "", "", nil)
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, nil, 0)
	if err != nil {
		return nil, nil, err
	}

	plain, err := maybeGunzip(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("apt: %w", err)
	}

	text, downgraded := decodeBestEffort(plain)
	if downgraded {
		skipped = append(skipped, SkippedRecord{Identifier: resolved.PrimaryURL, Reason: "decoded as Latin-1 fallback, not valid UTF-8"})
	}

	_ = f.cache.Put(ctx, aptCacheKey, []byte(text), f.ttl, cachestore.Meta{ContentType: "text/plain"})
	return parseControlFormat(text), skipped, nil
}

func (f *AptFetcher) toPackageInfo(b controlBlock) PackageInfo {
	var deps []string
	if d := b["Depends"]; d != "" {
		for _, part := range strings.Split(d, ",") {
			part = strings.TrimSpace(part)
			if sp := strings.IndexAny(part, " ("); sp >= 0 {
				part = part[:sp]
			}
			if part != "" {
				deps = append(deps, part)
			}
		}
	}
	return PackageInfo{
		Name:         b["Package"],
		Version:      b["Version"],
		Description:  b["Description"],
		Homepage:     b["Homepage"],
		Dependencies: deps,
		RawAttrs:     map[string]string{"maintainer": b["Maintainer"], "section": b["Section"]},
		Provider:     "apt",
		FetchedAt:    time.Now(),
	}
}

func (f *AptFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	blocks, _, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if b["Package"] == name {
			info := f.toPackageInfo(b)
			return &info, nil
		}
	}
	return nil, fmt.Errorf("apt: package %q not found in index", name)
}

func (f *AptFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	blocks, skipped, err := f.fetchIndex(ctx)
	snapshot := IndexSnapshot{Provider: "apt", FetchedAt: time.Now(), Skipped: skipped}
	if err != nil {
		return snapshot, err
	}
	for _, b := range blocks {
		if b["Package"] == "" {
			snapshot.Skipped = append(snapshot.Skipped, SkippedRecord{Identifier: "(unnamed stanza)", Reason: "missing Package field"})
			continue
		}
		snapshot.Packages = append(snapshot.Packages, f.toPackageInfo(b))
	}
	return snapshot, nil
}

func (f *AptFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	blocks, _, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	var matches []PackageMatch
	for _, b := range blocks {
		if containsFold(b["Package"], query) || containsFold(b["Description"], query) {
			matches = append(matches, PackageMatch{Name: b["Package"], Version: b["Version"], Description: b["Description"]})
		}
	}
	return matches, nil
}

// ApkFetcher adapts an Alpine APKINDEX (tar.gz containing an APKINDEX
// text file in a flattened key:value grammar — distinct from Debian
// control format, one letter-prefixed key per line with no continuation
// folding) to the shared Fetcher contract.
type ApkFetcher struct {
	client   *httpclient.Client
	cache    cachestore.Store
	resolver *urlresolver.Resolver
	ttl      time.Duration
}

func NewApkFetcher(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *ApkFetcher {
	return &ApkFetcher{client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *ApkFetcher) RepositoryName() string { return "apk" }

// apkStanza is one package record parsed from APKINDEX's "P:name\nV:ver\n..."
// line-prefixed grammar.
type apkStanza map[string]string

func parseAPKIndex(text string) []apkStanza {
	var stanzas []apkStanza
	var current apkStanza

	flush := func() {
		if current != nil && len(current) > 0 {
			stanzas = append(stanzas, current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		if len(line) < 2 || line[1] != ':' {
			continue
		}
		if current == nil {
			current = apkStanza{}
		}
		current[line[:1]] = line[2:]
	}
	flush()
	return stanzas
}

const apkCacheKey = "apk/index"

func (f *ApkFetcher) fetchIndex(ctx context.Context) ([]apkStanza, []SkippedRecord, error) {
	var skipped []SkippedRecord

	if raw, _, err := f.cache.Get(ctx, apkCacheKey); err == nil {
		return parseAPKIndex(string(raw)), nil, nil
	}

	resolved := f.resolver.Resolve("apk", "", "", "", nil)
	resp, err := f.client.Fetch(ctx, resolved.PrimaryURL, nil, 0)
	if err != nil {
		return nil, nil, err
	}

	plain, err := maybeGunzip(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("apk: %w", err)
	}

	text, downgraded := decodeBestEffort(plain)
	if downgraded {
		skipped = append(skipped, SkippedRecord{Identifier: resolved.PrimaryURL, Reason: "decoded as Latin-1 fallback, not valid UTF-8"})
	}

	_ = f.cache.Put(ctx, apkCacheKey, []byte(text), f.ttl, cachestore.Meta{ContentType: "text/plain"})
	return parseAPKIndex(text), skipped, nil
}

// APKINDEX field codes: P=package, V=version, T=description, U=homepage,
// D=depends (space-separated).
func (f *ApkFetcher) toPackageInfo(s apkStanza) PackageInfo {
	var deps []string
	if d := s["D"]; d != "" {
		deps = strings.Fields(d)
	}
	return PackageInfo{
		Name:         s["P"],
		Version:      s["V"],
		Description:  s["T"],
		Homepage:     s["U"],
		Dependencies: deps,
		Provider:     "apk",
		FetchedAt:    time.Now(),
	}
}

func (f *ApkFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	stanzas, _, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range stanzas {
		if s["P"] == name {
			info := f.toPackageInfo(s)
			return &info, nil
		}
	}
	return nil, fmt.Errorf("apk: package %q not found in index", name)
}

func (f *ApkFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	stanzas, skipped, err := f.fetchIndex(ctx)
	snapshot := IndexSnapshot{Provider: "apk", FetchedAt: time.Now(), Skipped: skipped}
	if err != nil {
		return snapshot, err
	}
	for _, s := range stanzas {
		if s["P"] == "" {
			snapshot.Skipped = append(snapshot.Skipped, SkippedRecord{Identifier: "(unnamed stanza)", Reason: "missing P field"})
			continue
		}
		snapshot.Packages = append(snapshot.Packages, f.toPackageInfo(s))
	}
	return snapshot, nil
}

func (f *ApkFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	stanzas, _, err := f.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	var matches []PackageMatch
	for _, s := range stanzas {
		if containsFold(s["P"], query) || containsFold(s["T"], query) {
			matches = append(matches, PackageMatch{Name: s["P"], Version: s["V"], Description: s["T"]})
		}
	}
	return matches, nil
}
