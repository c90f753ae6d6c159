package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

// repomdDocument is repodata/repomd.xml: a list of <data> entries, one of
// which (type="primary") points at the compressed package metadata file.
type repomdDocument struct {
	XMLName xml.Name `xml:"repomd"`
	Data    []struct {
		Type     string `xml:"type,attr"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
	} `xml:"data"`
}

// primaryPackage is one <package> element of the decompressed
// primary.xml.gz, decoded one at a time by streamPackages since repos can
// list tens of thousands of entries.
type primaryPackage struct {
	Name    string `xml:"name"`
	Version struct {
		Ver string `xml:"ver,attr"`
	} `xml:"version"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	URL         string `xml:"url"`
	Format      struct {
		License  string `xml:"license"`
		Requires struct {
			Entries []struct {
				Name string `xml:"name,attr"`
			} `xml:"entry"`
		} `xml:"requires"`
	} `xml:"format"`
}

// RepomdFetcher adapts an RPM-family repository (DNF, YUM, Zypper) to the
// shared Fetcher contract: follow repomd.xml to primary.xml.gz, decompress,
// stream-parse with a pull parser rather than loading the whole document
// into a tree.
type RepomdFetcher struct {
	client     *httpclient.Client
	cache      cachestore.Store
	resolver   *urlresolver.Resolver
	ttl        time.Duration
	repository string
}

func NewRepomdFetcher(repository string, client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) *RepomdFetcher {
	return &RepomdFetcher{repository: repository, client: client, cache: cache, resolver: resolver, ttl: ttl}
}

func (f *RepomdFetcher) RepositoryName() string { return f.repository }

func (f *RepomdFetcher) cacheKey() string { return fmt.Sprintf("%s/primary", f.repository) }

func (f *RepomdFetcher) fetchPrimaryXML(ctx context.Context) ([]byte, error) {
	if raw, _, err := f.cache.Get(ctx, f.cacheKey()); err == nil {
		return raw, nil
	}

	resolved := f.resolver.Resolve(f.repository, "", "", "", nil)
	repomdResp, err := f.client.Fetch(ctx, resolved.PrimaryURL, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch repomd.xml: %w", f.repository, err)
	}

	var repomd repomdDocument
	if err := xml.Unmarshal(repomdResp.Body, &repomd); err != nil {
		return nil, fmt.Errorf("%s: decode repomd.xml: %w", f.repository, err)
	}

	var primaryHref string
	for _, d := range repomd.Data {
		if d.Type == "primary" {
			primaryHref = d.Location.Href
			break
		}
	}
	if primaryHref == "" {
		return nil, fmt.Errorf("%s: repomd.xml has no primary data entry", f.repository)
	}

	baseURL := resolved.PrimaryURL
	if idx := strings.LastIndex(baseURL, "/repodata/"); idx >= 0 {
		baseURL = baseURL[:idx+1]
	}
	primaryURL := baseURL + primaryHref

	primaryResp, err := f.client.Fetch(ctx, primaryURL, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch primary.xml.gz: %w", f.repository, err)
	}

	plain, err := maybeGunzip(primaryResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.repository, err)
	}

	_ = f.cache.Put(ctx, f.cacheKey(), plain, f.ttl, cachestore.Meta{ContentType: "application/xml"})
	return plain, nil
}

// streamPackages pull-parses primary.xml's <package> elements one at a
// time rather than unmarshaling the whole document, since repositories
// can list hundreds of thousands of packages.
func streamPackages(raw []byte, visit func(primaryPackage)) error {
	decoder := xml.NewDecoder(strings.NewReader(string(raw)))
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "package" {
			continue
		}
		var pkg primaryPackage
		if err := decoder.DecodeElement(&pkg, &start); err != nil {
			continue
		}
		visit(pkg)
	}
	return nil
}

func toRepomdPackageInfo(provider string, pkg primaryPackage) PackageInfo {
	var deps []string
	for _, req := range pkg.Format.Requires.Entries {
		if req.Name != "" {
			deps = append(deps, req.Name)
		}
	}
	return PackageInfo{
		Name:         pkg.Name,
		Version:      pkg.Version.Ver,
		Description:  strings.TrimSpace(firstNonEmpty(pkg.Summary, pkg.Description)),
		License:      pkg.Format.License,
		Homepage:     pkg.URL,
		Dependencies: deps,
		Provider:     provider,
		FetchedAt:    time.Now(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (f *RepomdFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	raw, err := f.fetchPrimaryXML(ctx)
	if err != nil {
		return nil, err
	}

	var found *PackageInfo
	_ = streamPackages(raw, func(pkg primaryPackage) {
		if found == nil && pkg.Name == name {
			info := toRepomdPackageInfo(f.repository, pkg)
			found = &info
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%s: package %q not found in primary.xml", f.repository, name)
	}
	return found, nil
}

func (f *RepomdFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	raw, err := f.fetchPrimaryXML(ctx)
	snapshot := IndexSnapshot{Provider: f.repository, FetchedAt: time.Now()}
	if err != nil {
		return snapshot, err
	}

	_ = streamPackages(raw, func(pkg primaryPackage) {
		if pkg.Name == "" {
			snapshot.Skipped = append(snapshot.Skipped, SkippedRecord{Identifier: "(unnamed package)", Reason: "missing name element"})
			return
		}
		snapshot.Packages = append(snapshot.Packages, toRepomdPackageInfo(f.repository, pkg))
	})
	return snapshot, nil
}

func (f *RepomdFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	raw, err := f.fetchPrimaryXML(ctx)
	if err != nil {
		return nil, err
	}

	var matches []PackageMatch
	_ = streamPackages(raw, func(pkg primaryPackage) {
		if containsFold(pkg.Name, query) || containsFold(pkg.Summary, query) {
			matches = append(matches, PackageMatch{Name: pkg.Name, Version: pkg.Version.Ver, Description: pkg.Summary})
		}
	})
	return matches, nil
}
