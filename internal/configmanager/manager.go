package configmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/example42/saidata-gen/internal/template"
	"github.com/example42/saidata-gen/internal/value"
)

// Resolution is the outcome of resolving one (software, provider) pair.
type Resolution struct {
	// Merged is the fully layered metadata document: base defaults,
	// provider defaults, hierarchical/flat provider template, and
	// repository-derived data, in that precedence order.
	Merged value.Value
	// ProviderOverride is the minimal partial document that, merged onto
	// base plus provider defaults, reproduces the provider template's
	// contribution to Merged; repository-derived data is not part of it.
	// It is the template part of providers/<provider>.yaml.
	ProviderOverride value.Value
	// CreateProviderFile is true iff ProviderOverride is non-empty (spec
	// §4.8 step 5): an all-default provider has nothing worth writing.
	CreateProviderFile bool
	Warnings           []template.Warning
}

// Manager implements spec §4.8's layered resolution. Base defaults and
// provider defaults are loaded and rendered once per Manager (i.e. once per
// run), guarded by sync.Once so concurrent per-provider Resolve calls from
// the Generator's bounded-parallel dispatch never race the first load.
type Manager struct {
	source TemplateSource
	engine *template.Engine

	baseOnce sync.Once
	base     value.Value
	baseErr  error

	providerDefaultsOnce sync.Once
	providerDefaults     value.Value
	providerDefaultsErr  error

	mu               sync.Mutex
	templateRawCache map[string]struct {
		raw           []byte
		hierarchical  bool
		found         bool
	}
}

// NewManager builds a Manager that loads templates from source and renders
// directives/substitutions through engine.
func NewManager(source TemplateSource, engine *template.Engine) *Manager {
	return &Manager{
		source: source,
		engine: engine,
		templateRawCache: make(map[string]struct {
			raw          []byte
			hierarchical bool
			found        bool
		}),
	}
}

func (m *Manager) loadBase(ctx context.Context, vars map[string]interface{}) (value.Value, error) {
	m.baseOnce.Do(func() {
		raw, err := m.source.BaseDefaults()
		if err != nil {
			m.baseErr = err
			return
		}
		v, _, err := m.engine.Render(ctx, raw, vars)
		if err != nil {
			m.baseErr = fmt.Errorf("configmanager: rendering base defaults: %w", err)
			return
		}
		m.base = v
	})
	return m.base, m.baseErr
}

func (m *Manager) loadProviderDefaults(ctx context.Context, vars map[string]interface{}) (value.Value, error) {
	m.providerDefaultsOnce.Do(func() {
		raw, err := m.source.ProviderDefaults()
		if err != nil {
			m.providerDefaultsErr = err
			return
		}
		v, _, err := m.engine.Render(ctx, raw, vars)
		if err != nil {
			m.providerDefaultsErr = fmt.Errorf("configmanager: rendering provider defaults: %w", err)
			return
		}
		m.providerDefaults = v
	})
	return m.providerDefaults, m.providerDefaultsErr
}

// Resolve implements spec §4.8 steps 1-5 for one (software, provider) pair.
// vars is the substitution/condition context made available to every layer
// ($platform, ${...} and $name references); repoData is the caller-supplied
// repository-derived partial (typically built from a fetcher's PackageInfo).
func (m *Manager) Resolve(ctx context.Context, provider string, vars map[string]interface{}, repoData value.Value) (Resolution, error) {
	base, err := m.loadBase(ctx, vars)
	if err != nil {
		return Resolution{}, err
	}

	providerDefaultsDoc, err := m.loadProviderDefaults(ctx, vars)
	if err != nil {
		return Resolution{}, err
	}
	providerDefaults, ok := providerDefaultsDoc.Get(provider)
	if !ok || providerDefaults.IsNull() {
		// Absent from provider_defaults.yaml means "no provider-level
		// defaults", an empty partial — not a null override, which at the
		// document root would erase the whole merged document (spec §4.7
		// step 1's null-pruning rule applies at every depth, including
		// this one).
		providerDefaults = emptyDoc()
	}

	overrideRaw, _, found, err := m.providerTemplate(provider)
	if err != nil {
		return Resolution{}, err
	}

	var override value.Value
	var warnings []template.Warning
	if found {
		override, warnings, err = m.engine.Render(ctx, overrideRaw, vars)
		if err != nil {
			return Resolution{}, fmt.Errorf("configmanager: rendering provider template for %q: %w", provider, err)
		}
	} else {
		override = emptyDoc()
	}

	if repoData.IsNull() {
		repoData = emptyDoc()
	}

	beforeOverride, _, err := value.MergeWithDefaults(base, providerDefaults)
	if err != nil {
		return Resolution{}, fmt.Errorf("configmanager: merging provider defaults for %q: %w", provider, err)
	}
	afterOverride, _, err := value.MergeWithDefaults(beforeOverride, override)
	if err != nil {
		return Resolution{}, fmt.Errorf("configmanager: merging provider template for %q: %w", provider, err)
	}
	merged, _, err := value.MergeWithDefaults(afterOverride, repoData)
	if err != nil {
		return Resolution{}, fmt.Errorf("configmanager: merging repository data for %q: %w", provider, err)
	}

	// The provider override file's content reflects only the static
	// hierarchical/flat template's contribution — diffed against the
	// document as it stood before that template was applied — not the
	// repository-fetched data layered on top of it afterward (spec §4.8
	// step 5: "the provider override ... against provider-defaults").
	providerOverride := value.ApplyProviderOverridesOnly(beforeOverride, afterOverride)

	return Resolution{
		Merged:             merged,
		ProviderOverride:   providerOverride,
		CreateProviderFile: !providerOverride.IsNull(),
		Warnings:           warnings,
	}, nil
}

// ResolveBase merges base defaults with caller-supplied repository data only
// — no provider defaults, no provider template — for building the
// provider-agnostic defaults.yaml document.
func (m *Manager) ResolveBase(ctx context.Context, vars map[string]interface{}, repoData value.Value) (value.Value, error) {
	base, err := m.loadBase(ctx, vars)
	if err != nil {
		return value.Value{}, err
	}
	if repoData.IsNull() {
		repoData = emptyDoc()
	}
	merged, _, err := value.MergeWithDefaults(base, repoData)
	if err != nil {
		return value.Value{}, fmt.Errorf("configmanager: merging repository data into base: %w", err)
	}
	return merged, nil
}

// emptyDoc is the "no override provided" partial: merging it onto any
// document is a no-op, unlike Null() which at the document root means
// "erase everything" (spec §4.7 step 1's null-pruning rule has no special
// case for depth 0).
func emptyDoc() value.Value {
	return value.NewMap(nil, map[string]value.Value{})
}

func (m *Manager) providerTemplate(provider string) ([]byte, bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.templateRawCache[provider]; ok {
		return cached.raw, cached.hierarchical, cached.found, nil
	}
	raw, hierarchical, found, err := m.source.ProviderTemplate(provider)
	if err != nil {
		return nil, false, false, err
	}
	m.templateRawCache[provider] = struct {
		raw          []byte
		hierarchical bool
		found        bool
	}{raw: raw, hierarchical: hierarchical, found: found}
	return raw, hierarchical, found, nil
}
