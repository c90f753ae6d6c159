// Package configmanager implements the layered template resolution
// described by spec §4.8: for a given (software, provider) pair it loads
// base defaults, global provider defaults, a hierarchical-or-flat provider
// template, and merges them with caller-supplied repository data to decide
// both the final metadata document and whether a provider override file is
// worth materializing.
package configmanager

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
)

// TemplateSource loads the raw YAML template bytes the Manager layers
// together. Base defaults and provider defaults are loaded once per run;
// provider templates are looked up per provider.
type TemplateSource interface {
	BaseDefaults() ([]byte, error)
	ProviderDefaults() ([]byte, error)
	// ProviderTemplate returns the provider's override template, preferring
	// a hierarchical layout (providers/<provider>/default.yaml) over a flat
	// one (providers/<provider>.yaml) when both exist (spec §4.8 step 3).
	// found is false when neither exists, in which case the caller treats
	// the provider override as an empty partial.
	ProviderTemplate(provider string) (raw []byte, hierarchical bool, found bool, err error)
}

// FSSource reads templates from an fs.FS rooted at the conventional layout:
//
//	defaults.yaml
//	provider_defaults.yaml
//	providers/<provider>/default.yaml   (hierarchical, preferred)
//	providers/<provider>.yaml           (flat, fallback)
type FSSource struct {
	fsys fs.FS
}

// NewFSSource builds a TemplateSource rooted at fsys (typically
// os.DirFS(templatesDir) or an embed.FS for bundled defaults).
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

func (s *FSSource) BaseDefaults() ([]byte, error) {
	raw, err := fs.ReadFile(s.fsys, "defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("configmanager: reading base defaults: %w", err)
	}
	return raw, nil
}

func (s *FSSource) ProviderDefaults() ([]byte, error) {
	raw, err := fs.ReadFile(s.fsys, "provider_defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("configmanager: reading provider defaults: %w", err)
	}
	return raw, nil
}

func (s *FSSource) ProviderTemplate(provider string) ([]byte, bool, bool, error) {
	hierarchicalPath := path.Join("providers", provider, "default.yaml")
	if raw, err := fs.ReadFile(s.fsys, hierarchicalPath); err == nil {
		return raw, true, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, false, fmt.Errorf("configmanager: reading hierarchical template for %q: %w", provider, err)
	}

	flatPath := path.Join("providers", provider+".yaml")
	if raw, err := fs.ReadFile(s.fsys, flatPath); err == nil {
		return raw, false, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, false, fmt.Errorf("configmanager: reading flat template for %q: %w", provider, err)
	}

	return nil, false, false, nil
}
