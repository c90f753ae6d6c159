package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example42/saidata-gen/internal/configmanager"
	"github.com/example42/saidata-gen/internal/core/resilience"
	"github.com/example42/saidata-gen/internal/fetch"
	"github.com/example42/saidata-gen/internal/schema"
	"github.com/example42/saidata-gen/internal/template"
)

// stubFetcher returns a fixed PackageInfo (or error) for every GetPackage
// call, standing in for a real provider adapter.
type stubFetcher struct {
	name string
	info *fetch.PackageInfo
	err  error
}

func (s *stubFetcher) RepositoryName() string { return s.name }
func (s *stubFetcher) FetchAll(ctx context.Context) (fetch.IndexSnapshot, error) {
	return fetch.IndexSnapshot{Provider: s.name}, nil
}
func (s *stubFetcher) GetPackage(ctx context.Context, name string) (*fetch.PackageInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info := *s.info
	return &info, nil
}
func (s *stubFetcher) Search(ctx context.Context, query string) ([]fetch.PackageMatch, error) {
	return nil, nil
}

func newTestGenerator(t *testing.T, fsys fstest.MapFS, fetchers map[string]fetch.Fetcher) (*Generator, string) {
	t.Helper()
	engine, err := template.NewEngine(template.Options{CacheSize: 16})
	require.NoError(t, err)
	manager := configmanager.NewManager(configmanager.NewFSSource(fsys), engine)
	dir := t.TempDir()
	return New(fetchers, manager, schema.New(), resilience.NewDegradationRegistry(), nil), dir
}

func baseFixture() fstest.MapFS {
	return fstest.MapFS{
		"defaults.yaml": {Data: []byte(`
version: "0.1"
platforms: [linux]
`)},
		"provider_defaults.yaml": {Data: []byte(`
apt: {}
yum: {}
`)},
	}
}

// S1 from spec.md §8: a single apt-only provider contributes straight into
// defaults.yaml, and no providers/apt.yaml is emitted because apt carries
// nothing beyond what the reconciled aggregate already put in defaults.
func TestGenerate_SingleProvider_NoOverrideFile(t *testing.T) {
	fsys := baseFixture()
	fetchers := map[string]fetch.Fetcher{
		"apt": &stubFetcher{name: "apt", info: &fetch.PackageInfo{
			Name: "nginx", Version: "1.18.0", Description: "web server", Provider: "apt",
		}},
	}
	g, dir := newTestGenerator(t, fsys, fetchers)

	res, err := g.Generate(context.Background(), "nginx", Options{
		Providers: []string{"apt"}, OutputDir: dir, Validate: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.ProviderFilesWritten)

	raw, err := os.ReadFile(filepath.Join(dir, "nginx", "defaults.yaml"))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "nginx")
	assert.Contains(t, content, "1.18.0")
	assert.Contains(t, content, "web server")

	_, err = os.Stat(filepath.Join(dir, "nginx", "providers"))
	assert.True(t, os.IsNotExist(err), "expected no providers/ directory to be created")
}

// S2 from spec.md §8: apt and yum disagree on package name; each gets its
// own override file with its own name, while defaults.yaml leaves the
// disagreeing name out.
func TestGenerate_ConflictingProviders_EachGetsOwnOverride(t *testing.T) {
	fsys := baseFixture()
	fetchers := map[string]fetch.Fetcher{
		"apt": &stubFetcher{name: "apt", info: &fetch.PackageInfo{Name: "apache2", Version: "2.4.1", Provider: "apt"}},
		"yum": &stubFetcher{name: "yum", info: &fetch.PackageInfo{Name: "httpd", Version: "2.4.1", Provider: "yum"}},
	}
	g, dir := newTestGenerator(t, fsys, fetchers)

	res, err := g.Generate(context.Background(), "apache-httpd", Options{
		Providers: []string{"apt", "yum"}, OutputDir: dir, Validate: true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"apt", "yum"}, res.ProviderFilesWritten)

	aptRaw, err := os.ReadFile(filepath.Join(dir, "apache-httpd", "providers", "apt.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(aptRaw), "apache2")

	yumRaw, err := os.ReadFile(filepath.Join(dir, "apache-httpd", "providers", "yum.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yumRaw), "httpd")
}

// S3 from spec.md §8: a provider whose command is missing on the host is
// classified Dependency, marked unavailable, and generation still succeeds
// with no override file for it.
func TestGenerate_DependencyErrorSkipsProviderNotSoftware(t *testing.T) {
	fsys := baseFixture()
	fetchers := map[string]fetch.Fetcher{
		"apt":  &stubFetcher{name: "apt", info: &fetch.PackageInfo{Name: "hello", Version: "1.0", Provider: "apt"}},
		"guix": &stubFetcher{name: "guix", err: resilience.NewError(resilience.ClassDependency, "guix", "", nil)},
	}
	g, dir := newTestGenerator(t, fsys, fetchers)

	res, err := g.Generate(context.Background(), "hello", Options{
		Providers: []string{"apt", "guix"}, OutputDir: dir,
	})
	require.NoError(t, err)

	var guixOutcome *ProviderOutcome
	for i := range res.ProviderOutcomes {
		if res.ProviderOutcomes[i].Provider == "guix" {
			guixOutcome = &res.ProviderOutcomes[i]
		}
	}
	require.NotNil(t, guixOutcome)
	assert.Equal(t, resilience.ProviderSkipped, guixOutcome.State)

	degraded := false
	for _, rec := range res.Degraded {
		if rec.Provider == "guix" && rec.Reason == resilience.ClassDependency {
			degraded = true
		}
	}
	assert.True(t, degraded)

	_, err = os.Stat(filepath.Join(dir, "hello", "providers", "guix.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate_NoProvidersStillEmitsDefaults(t *testing.T) {
	fsys := baseFixture()
	g, dir := newTestGenerator(t, fsys, map[string]fetch.Fetcher{})

	res, err := g.Generate(context.Background(), "standalone-tool", Options{OutputDir: dir})
	require.NoError(t, err)
	assert.Empty(t, res.ProviderFilesWritten)

	_, err = os.Stat(filepath.Join(dir, "standalone-tool", "defaults.yaml"))
	require.NoError(t, err)
}

func TestGenerate_PlatformMismatchExcludesProvider(t *testing.T) {
	fsys := baseFixture()
	fetchers := map[string]fetch.Fetcher{
		"winget": &stubFetcher{name: "winget", info: &fetch.PackageInfo{Name: "nginx", Provider: "winget"}},
	}
	g, dir := newTestGenerator(t, fsys, fetchers)

	res, err := g.Generate(context.Background(), "nginx", Options{
		Providers: []string{"winget"}, Platforms: []string{"linux"}, OutputDir: dir,
	})
	require.NoError(t, err)
	assert.Empty(t, res.ProviderOutcomes, "winget should have been excluded before any fetch was attempted")
}

func TestGenerate_RerunRemovesStaleProviderOverride(t *testing.T) {
	fsys := baseFixture()
	fetchers := map[string]fetch.Fetcher{
		"apt": &stubFetcher{name: "apt", info: &fetch.PackageInfo{Name: "apache2", Version: "2.4.1", Provider: "apt"}},
		"yum": &stubFetcher{name: "yum", info: &fetch.PackageInfo{Name: "httpd", Version: "2.4.1", Provider: "yum"}},
	}
	g, dir := newTestGenerator(t, fsys, fetchers)

	_, err := g.Generate(context.Background(), "apache-httpd", Options{
		Providers: []string{"apt", "yum"}, OutputDir: dir,
	})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "apache-httpd", "providers", "yum.yaml"))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "apache-httpd", Options{
		Providers: []string{"apt"}, OutputDir: dir,
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "apache-httpd", "providers", "yum.yaml"))
	assert.True(t, os.IsNotExist(err), "a provider dropped from the run should have its stale override removed")
}
