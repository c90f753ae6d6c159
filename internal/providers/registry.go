// Package providers wires the concrete provider set: for each supported
// package manager it builds a fetch.Fetcher plus, for the HTTP-backed
// providers, the urlresolver.ProviderURLs entry that drives it — grounded on
// the real endpoint each fetcher's doc comment already names (spec.md §3's
// RepositoryDescriptor, materialized as Go data instead of a config file
// since the provider set is declared statically — spec.md's
// external-interfaces non-goals exclude runtime repository discovery). The
// git-clone family (spec.md §4.6) has no ProviderURLs entry since it clones a
// fixed repository URL directly rather than resolving one per OS/version.
package providers

import (
	"path/filepath"
	"time"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/depcheck"
	"github.com/example42/saidata-gen/internal/fetch"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/urlresolver"
)

// URLs returns the default provider → ProviderURLs document the Resolver is
// built from. Placeholders follow urlresolver's {{ name }} substitution
// grammar; software_name is supplied per-call by each fetcher.
func URLs() map[string]urlresolver.ProviderURLs {
	return map[string]urlresolver.ProviderURLs{
		"apt": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("http://deb.debian.org/debian/dists/stable/main/binary-amd64/Packages.gz", nil, nil),
			nil,
		),
		"apk": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://dl-cdn.alpinelinux.org/alpine/latest-stable/main/x86_64/APKINDEX.tar.gz", nil, nil),
			nil,
		),
		"dnf": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://dl.fedoraproject.org/pub/fedora/linux/releases/40/Everything/x86_64/os/repodata/repomd.xml", nil, nil),
			nil,
		),
		"yum": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://repo.almalinux.org/almalinux/9/BaseOS/x86_64/os/repodata/repomd.xml", nil, nil),
			nil,
		),
		"zypper": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://download.opensuse.org/tumbleweed/repo/oss/repodata/repomd.xml", nil, nil),
			nil,
		),
		"npm": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://registry.npmjs.org/{{ software_name }}", nil, nil),
			nil,
		),
		"pypi": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://pypi.org/pypi/{{ software_name }}/json", nil, nil),
			nil,
		),
		"cargo": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://crates.io/api/v1/crates/{{ software_name }}", nil, nil),
			nil,
		),
		"brew": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://formulae.brew.sh/api/formula/{{ software_name }}.json", nil, nil),
			nil,
		),
		"docker": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://hub.docker.com/v2/repositories/library/{{ software_name }}", nil, nil),
			nil,
		),
		"helm": urlresolver.NewProviderURLs(
			urlresolver.NewURLSet("https://charts.bitnami.com/bitnami/index.yaml", nil, nil),
			nil,
		),
	}
}

// httpFamily are the providers built over the shared HTTP-JSON/text-index/
// repomd transports, each requiring a *httpclient.Client, cachestore.Store
// and *urlresolver.Resolver.
func httpFamily(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration) map[string]fetch.Fetcher {
	return map[string]fetch.Fetcher{
		"apt":    fetch.NewAptFetcher(client, cache, resolver, ttl),
		"apk":    fetch.NewApkFetcher(client, cache, resolver, ttl),
		"dnf":    fetch.NewRepomdFetcher("dnf", client, cache, resolver, ttl),
		"yum":    fetch.NewRepomdFetcher("yum", client, cache, resolver, ttl),
		"zypper": fetch.NewRepomdFetcher("zypper", client, cache, resolver, ttl),
		"npm":    fetch.NewNPMFetcher(client, cache, resolver, ttl),
		"pypi":   fetch.NewPyPIFetcher(client, cache, resolver, ttl),
		"cargo":  fetch.NewCratesFetcher(client, cache, resolver, ttl),
		"brew":   fetch.NewHomebrewFetcher(client, cache, resolver, ttl),
		"docker": fetch.NewDockerHubFetcher(client, cache, resolver, ttl),
		"helm":   fetch.NewHelmFetcher(client, cache, resolver, ttl),
	}
}

// localCommandFamily are the best-effort providers gated on a local binary
// (spec.md §4.4); a missing command marks the provider skipped for the
// run, it never fails the run.
func localCommandFamily(depChecker *depcheck.Checker) map[string]fetch.Fetcher {
	return map[string]fetch.Fetcher{
		"nix":    fetch.NewNixFetcher(depChecker),
		"emerge": fetch.NewEmergeFetcher(depChecker),
		"guix":   fetch.NewGuixFetcher(depChecker),
	}
}

// gitCloneFamily are the providers whose authoritative data lives in a git
// repository (spec.md §4.6): a shallow clone under gitWorkDirRoot, walked
// and parsed per provider-specific manifest layout. Gated on a local `git`
// binary through the same Dependency Checker as localCommandFamily.
func gitCloneFamily(depChecker *depcheck.Checker, gitWorkDirRoot string) map[string]fetch.Fetcher {
	return map[string]fetch.Fetcher{
		"winget": fetch.NewGitCloneFetcher(
			"winget",
			"https://github.com/microsoft/winget-pkgs",
			filepath.Join(gitWorkDirRoot, "winget"),
			fetch.WingetManifestParser,
			depChecker,
		),
		"scoop": fetch.NewGitCloneFetcher(
			"scoop",
			"https://github.com/ScoopInstaller/Main",
			filepath.Join(gitWorkDirRoot, "scoop"),
			fetch.ScoopManifestParser,
			depChecker,
		),
	}
}

// Build assembles every statically-known provider's fetch.Fetcher, keyed by
// provider name, ready to hand to generator.New. gitWorkDirRoot is where
// git-clone-backed providers check out their repositories (one subdirectory
// per provider).
func Build(client *httpclient.Client, cache cachestore.Store, resolver *urlresolver.Resolver, ttl time.Duration, depChecker *depcheck.Checker, gitWorkDirRoot string) map[string]fetch.Fetcher {
	fetchers := make(map[string]fetch.Fetcher)
	for name, f := range httpFamily(client, cache, resolver, ttl) {
		fetchers[name] = f
	}
	for name, f := range localCommandFamily(depChecker) {
		fetchers[name] = f
	}
	for name, f := range gitCloneFamily(depChecker, gitWorkDirRoot) {
		fetchers[name] = f
	}
	return fetchers
}

// Names returns every statically-known provider name, sorted the way
// Build's map keys would be if iterated deterministically; used to report
// "every configured provider" when Options.Providers is empty.
func Names() []string {
	return []string{
		"apt", "apk", "dnf", "yum", "zypper",
		"npm", "pypi", "cargo", "brew", "docker", "helm",
		"nix", "emerge", "guix",
		"winget", "scoop",
	}
}
