// Package urlresolver resolves a provider's download URLs for a given
// (os, os_version, arch) triple, substituting {{ var }} placeholders from
// both the fixed set (arch, os, os_version, provider) and any
// caller-supplied context keys (such as software_name or version). Spec §4.3.
package urlresolver

import (
	"fmt"
	"log/slog"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Resolved is the output of a resolution: a primary URL, ordered fallbacks,
// and any additional named URLs the provider document declares.
type Resolved struct {
	PrimaryURL   string
	FallbackURLs []string
	Named        map[string]string
	Warnings     []string
}

// osVersionURLs holds per-version URL overrides for a single OS.
type osVersionURLs struct {
	Default  urlSet
	Versions map[string]urlSet
}

// urlSet is one level of the providers.<p>.default / .os.<os> /
// .os.<os>.versions.<v> hierarchy.
type urlSet struct {
	PrimaryURL   string
	FallbackURLs []string
	Named        map[string]string
}

// ProviderURLs is the parsed per-provider document: a default urlSet plus
// per-OS overrides.
type ProviderURLs struct {
	Default urlSet
	OS      map[string]osVersionURLs
}

// Resolver is constructed once per run from a single YAML document and is
// immutable thereafter; safe for concurrent reads without locking since
// nothing is ever mutated after New returns.
type Resolver struct {
	providers map[string]ProviderURLs
	logger    *slog.Logger
}

// New builds an immutable Resolver from a parsed provider-URL document.
func New(providers map[string]ProviderURLs, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, logger: logger}
}

// Resolve implements spec §4.3's resolution order (later overrides
// earlier): default → os.<os> → os.<os>.versions.<version>. A missing
// provider yields an empty Resolved plus a warning, never a panic.
func (r *Resolver) Resolve(provider, osName, osVersion, arch string, context map[string]string) Resolved {
	p, ok := r.providers[provider]
	if !ok {
		return Resolved{Warnings: []string{fmt.Sprintf("unknown provider %q", provider)}}
	}

	merged := p.Default
	if osName != "" {
		if osEntry, ok := p.OS[osName]; ok {
			merged = overlay(merged, osEntry.Default)
			if osVersion != "" {
				if verSet, ok := osEntry.Versions[osVersion]; ok {
					merged = overlay(merged, verSet)
				}
			}
		}
	}

	vars := map[string]string{
		"arch":       arch,
		"os":         osName,
		"os_version": osVersion,
		"provider":   provider,
	}
	for k, v := range context {
		vars[k] = v
	}

	var warnings []string
	primary, w := substitute(merged.PrimaryURL, vars)
	warnings = append(warnings, w...)

	fallbacks := make([]string, 0, len(merged.FallbackURLs))
	for _, u := range merged.FallbackURLs {
		sub, w := substitute(u, vars)
		warnings = append(warnings, w...)
		fallbacks = append(fallbacks, sub)
	}

	named := make(map[string]string, len(merged.Named))
	for name, u := range merged.Named {
		sub, w := substitute(u, vars)
		warnings = append(warnings, w...)
		named[name] = sub
	}

	return Resolved{PrimaryURL: primary, FallbackURLs: fallbacks, Named: named, Warnings: warnings}
}

// overlay applies override on top of base: any field override sets
// non-zero wins, matching the spec's "later overrides earlier" rule.
func overlay(base, override urlSet) urlSet {
	out := base
	if override.PrimaryURL != "" {
		out.PrimaryURL = override.PrimaryURL
	}
	if len(override.FallbackURLs) > 0 {
		out.FallbackURLs = override.FallbackURLs
	}
	if len(override.Named) > 0 {
		named := make(map[string]string, len(out.Named)+len(override.Named))
		for k, v := range out.Named {
			named[k] = v
		}
		for k, v := range override.Named {
			named[k] = v
		}
		out.Named = named
	}
	return out
}

// substitute replaces every {{ var }} placeholder found in vars; unknown
// placeholders are left verbatim and reported as a warning (spec §4.3).
func substitute(template string, vars map[string]string) (string, []string) {
	if template == "" {
		return "", nil
	}
	var warnings []string
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		name := sub[1]
		if val, ok := vars[name]; ok {
			return val
		}
		warnings = append(warnings, fmt.Sprintf("unresolved placeholder {{ %s }}", name))
		return match
	})
	return result, warnings
}

// NewURLSet is a constructor for urlSet used by config-loading code outside
// this package (kept unexported fields, exposed via this builder so callers
// parsing YAML don't need package-internal knowledge).
func NewURLSet(primary string, fallbacks []string, named map[string]string) urlSet {
	return urlSet{PrimaryURL: primary, FallbackURLs: fallbacks, Named: named}
}

// NewOSVersionURLs builds an osVersionURLs from a default set plus
// per-version overrides.
func NewOSVersionURLs(def urlSet, versions map[string]urlSet) osVersionURLs {
	return osVersionURLs{Default: def, Versions: versions}
}

// NewProviderURLs builds a ProviderURLs from a default set plus per-OS
// overrides.
func NewProviderURLs(def urlSet, os map[string]osVersionURLs) ProviderURLs {
	return ProviderURLs{Default: def, OS: os}
}
