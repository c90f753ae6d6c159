package configmanager

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/example42/saidata-gen/internal/template"
	"github.com/example42/saidata-gen/internal/value"
)

type countingSource struct {
	inner             TemplateSource
	baseCalls         int
	providerDefCalls  int
}

func (c *countingSource) BaseDefaults() ([]byte, error) {
	c.baseCalls++
	return c.inner.BaseDefaults()
}

func (c *countingSource) ProviderDefaults() ([]byte, error) {
	c.providerDefCalls++
	return c.inner.ProviderDefaults()
}

func (c *countingSource) ProviderTemplate(provider string) ([]byte, bool, bool, error) {
	return c.inner.ProviderTemplate(provider)
}

func newTestManager(t *testing.T, fsys fstest.MapFS) (*Manager, *countingSource) {
	t.Helper()
	engine, err := template.NewEngine(template.Options{CacheSize: 16})
	if err != nil {
		t.Fatal(err)
	}
	src := &countingSource{inner: NewFSSource(fsys)}
	return NewManager(src, engine), src
}

func TestManager_Resolve_LayersInPrecedenceOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml": {Data: []byte(`
version: "1"
description: base description
license: unknown
`)},
		"provider_defaults.yaml": {Data: []byte(`
apt:
  license: apt-default-license
`)},
		"providers/apt.yaml": {Data: []byte(`
description: apt-specific description
`)},
	}
	m, _ := newTestManager(t, fsys)

	repoData := value.NewMap([]string{"license"}, map[string]value.Value{"license": value.NewString("MIT")})

	res, err := m.Resolve(context.Background(), "apt", map[string]interface{}{}, repoData)
	if err != nil {
		t.Fatal(err)
	}
	got := res.Merged.ToGo().(map[string]interface{})
	if got["version"] != "1" {
		t.Fatalf("expected version to survive from base, got %v", got["version"])
	}
	if got["description"] != "apt-specific description" {
		t.Fatalf("expected the flat provider template to override description, got %v", got["description"])
	}
	if got["license"] != "MIT" {
		t.Fatalf("expected repo data to win over provider defaults for license, got %v", got["license"])
	}
	if !res.CreateProviderFile {
		t.Fatal("expected a non-empty provider override to be worth materializing")
	}
}

func TestManager_Resolve_NoOverrideWhenProviderMatchesDefaults(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml": {Data: []byte(`
version: "1"
license: unknown
`)},
		"provider_defaults.yaml": {Data: []byte(`
apt:
  license: apt-default-license
`)},
	}
	m, _ := newTestManager(t, fsys)

	res, err := m.Resolve(context.Background(), "apt", map[string]interface{}{}, value.Null())
	if err != nil {
		t.Fatal(err)
	}
	if res.CreateProviderFile {
		t.Fatalf("expected no provider file when nothing differs from provider defaults, got override %v", res.ProviderOverride.ToGo())
	}
	got := res.Merged.ToGo().(map[string]interface{})
	if got["license"] != "apt-default-license" {
		t.Fatalf("expected provider defaults to apply, got %v", got["license"])
	}
}

func TestManager_Resolve_MissingProviderTemplateIsEmptyPartial(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml": {Data: []byte(`
version: "1"
description: base description
`)},
		"provider_defaults.yaml": {Data: []byte(`{}`)},
	}
	m, _ := newTestManager(t, fsys)

	res, err := m.Resolve(context.Background(), "winget", map[string]interface{}{}, value.Null())
	if err != nil {
		t.Fatal(err)
	}
	got := res.Merged.ToGo().(map[string]interface{})
	if got["description"] != "base description" {
		t.Fatalf("expected the base document to survive untouched, got %v", got)
	}
	if res.CreateProviderFile {
		t.Fatal("expected no provider override file for a provider with no template and no defaults")
	}
}

func TestManager_Resolve_LoadsBaseAndProviderDefaultsOncePerRun(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml":          {Data: []byte(`version: "1"`)},
		"provider_defaults.yaml": {Data: []byte(`{}`)},
	}
	m, src := newTestManager(t, fsys)

	if _, err := m.Resolve(context.Background(), "apt", map[string]interface{}{}, value.Null()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve(context.Background(), "brew", map[string]interface{}{}, value.Null()); err != nil {
		t.Fatal(err)
	}

	if src.baseCalls != 1 {
		t.Fatalf("expected base defaults to be loaded exactly once, got %d", src.baseCalls)
	}
	if src.providerDefCalls != 1 {
		t.Fatalf("expected provider defaults to be loaded exactly once, got %d", src.providerDefCalls)
	}
}

func TestManager_ResolveBase_IgnoresProviderLayers(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml": {Data: []byte(`
version: "1"
license: unknown
`)},
		"provider_defaults.yaml": {Data: []byte(`
apt:
  license: apt-default-license
`)},
	}
	m, _ := newTestManager(t, fsys)

	repoData := value.NewMap([]string{"license"}, map[string]value.Value{"license": value.NewString("MIT")})
	merged, err := m.ResolveBase(context.Background(), map[string]interface{}{}, repoData)
	if err != nil {
		t.Fatal(err)
	}
	got := merged.ToGo().(map[string]interface{})
	if got["license"] != "MIT" {
		t.Fatalf("expected repo data to win over base, with no provider layer involved, got %v", got["license"])
	}
}

func TestManager_Resolve_PlatformDirectiveInProviderTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults.yaml":          {Data: []byte(`version: "1"`)},
		"provider_defaults.yaml": {Data: []byte(`{}`)},
		"providers/winget.yaml": {Data: []byte(`
$platform: windows
service_manager: none
$endif: true
`)},
	}
	m, _ := newTestManager(t, fsys)

	res, err := m.Resolve(context.Background(), "winget", map[string]interface{}{"platforms": []interface{}{"windows"}}, value.Null())
	if err != nil {
		t.Fatal(err)
	}
	got := res.Merged.ToGo().(map[string]interface{})
	if got["service_manager"] != "none" {
		t.Fatalf("expected the $platform-gated field to be present, got %v", got)
	}
}
