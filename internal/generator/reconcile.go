package generator

import (
	"sort"

	"github.com/example42/saidata-gen/internal/fetch"
	"github.com/example42/saidata-gen/internal/value"
)

// providerPriority ranks each provider's repository data by how authoritative
// it is, independent of any single record's field completeness ("authoritative
// repository data beats heuristic", spec.md §4.10 step 3): a native OS
// package manager's index is a curated, maintainer-reviewed source for that
// OS, a cross-platform package registry is one step further from the ground
// truth for any single target OS, and a best-effort local-command adapter
// (nix/emerge/guix, parsed from CLI output rather than a structured index)
// is the least authoritative tier.
var providerPriority = map[string]int{
	"apt": 9, "dnf": 9, "yum": 9, "zypper": 9, "pacman": 9, "apk": 9,
	"winget": 7, "scoop": 7, "brew": 7,
	"npm": 5, "pypi": 5, "cargo": 5, "docker": 5, "helm": 5,
	"nix": 3, "emerge": 3, "guix": 3,
}

func priorityOf(provider string) int {
	if p, ok := providerPriority[provider]; ok {
		return p
	}
	return 1
}

// fieldPresenceCount counts the normalized fields a PackageInfo carries,
// rewarding a richer record over a sparse one from the same provider tier.
func fieldPresenceCount(info fetch.PackageInfo) int {
	n := 0
	if info.Name != "" {
		n++
	}
	if info.Version != "" {
		n++
	}
	if info.Description != "" {
		n++
	}
	if info.License != "" {
		n++
	}
	if info.Homepage != "" {
		n++
	}
	if info.SourceURL != "" {
		n++
	}
	return n
}

// Confidence scores one provider's record: provider_priority(provider)*10 +
// field_presence_count, so that provider tier always dominates completeness
// — a sparse apt record still outranks a feature-complete npm one.
func Confidence(info fetch.PackageInfo) int {
	return priorityOf(info.Provider)*10 + fieldPresenceCount(info)
}

// FieldProvenance records which provider's record supplied a reconciled
// document field, and at what confidence, for inclusion in a run's result
// summary (spec.md §4.10 step 3: "record confidence per field").
type FieldProvenance struct {
	Path       string
	Provider   string
	Confidence int
}

// reconciledPaths lists, in a fixed order, every document path Reconcile and
// PackageInfoToValue can populate from a PackageInfo.
var reconciledPaths = []struct {
	path string
	get  func(fetch.PackageInfo) (string, bool)
}{
	{"description", func(i fetch.PackageInfo) (string, bool) { return i.Description, i.Description != "" }},
	{"license", func(i fetch.PackageInfo) (string, bool) { return i.License, i.License != "" }},
	{"urls.homepage", func(i fetch.PackageInfo) (string, bool) { return i.Homepage, i.Homepage != "" }},
	{"urls.source", func(i fetch.PackageInfo) (string, bool) { return i.SourceURL, i.SourceURL != "" }},
	{"packages.default.name", func(i fetch.PackageInfo) (string, bool) { return i.Name, i.Name != "" }},
	{"packages.default.version", func(i fetch.PackageInfo) (string, bool) { return i.Version, i.Version != "" }},
}

// Reconcile merges same-software PackageInfos from multiple providers into
// one repository-derived document for defaults.yaml (spec.md §4.10 step 3).
// A field naming the package itself under a particular provider's own
// naming convention (e.g. packages.default.name) is inherently
// provider-specific: when every contributing record that sets a field
// agrees (or only one record sets it at all), the highest-confidence
// record's value is promoted into the provider-agnostic document and
// attributed to it; when two records disagree, the field is left out of
// defaults.yaml entirely — it belongs in each disagreeing provider's own
// override file instead (spec.md S2: apt's "apache2" and yum's "httpd"
// never both land in the shared defaults). Deterministic given identical
// inputs regardless of arrival order (spec.md §5), since the ordering used
// here is confidence, never slice position.
func Reconcile(infos []fetch.PackageInfo) (value.Value, []FieldProvenance) {
	ordered := append([]fetch.PackageInfo(nil), infos...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Confidence(ordered[i]) > Confidence(ordered[j])
	})

	doc := value.NewMap(nil, map[string]value.Value{})
	var provenance []FieldProvenance

	for _, field := range reconciledPaths {
		type candidate struct {
			value      string
			provider   string
			confidence int
		}
		var candidates []candidate
		for _, info := range ordered {
			s, present := field.get(info)
			if !present {
				continue
			}
			candidates = append(candidates, candidate{value: s, provider: info.Provider, confidence: Confidence(info)})
		}
		if len(candidates) == 0 {
			continue
		}
		agree := true
		for _, c := range candidates[1:] {
			if c.value != candidates[0].value {
				agree = false
				break
			}
		}
		if !agree {
			continue
		}
		winner := candidates[0]
		doc = setPath(doc, field.path, value.NewString(winner.value))
		provenance = append(provenance, FieldProvenance{Path: field.path, Provider: winner.provider, Confidence: winner.confidence})
	}

	return doc, provenance
}

// PackageInfoToValue converts a single provider's PackageInfo into the same
// repository-derived partial shape Reconcile produces for the aggregate
// document, used to compute that one provider's own override file (spec.md
// §4.10 step 5) independent of what Reconcile keeps for defaults.yaml —
// this is why apt and yum can carry different packages.default.name values
// in their respective provider override files while defaults.yaml, where
// they disagree, carries neither.
func PackageInfoToValue(info fetch.PackageInfo) value.Value {
	doc := value.NewMap(nil, map[string]value.Value{})
	for _, field := range reconciledPaths {
		s, present := field.get(info)
		if !present {
			continue
		}
		doc = setPath(doc, field.path, value.NewString(s))
	}
	return doc
}

// setPath sets a dotted path on doc, creating intermediate maps as needed
// and preserving sibling keys already set at that path. Only two levels deep
// are ever used by this package (e.g. "urls.homepage",
// "packages.default.name"), matching the container/slot/field shape spec.md
// §3 defines.
func setPath(doc value.Value, path string, v value.Value) value.Value {
	head, rest, hasRest := cutPath(path)
	if !hasRest {
		return doc.Set(head, v)
	}
	child, ok := doc.Get(head)
	if !ok || !child.IsMap() {
		child = value.NewMap(nil, map[string]value.Value{})
	}
	return doc.Set(head, setPath(child, rest, v))
}

func cutPath(path string) (head, rest string, hasRest bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}
