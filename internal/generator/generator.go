// Package generator implements the C10 Generator/Orchestrator: for one
// software name, it resolves the provider set, dispatches bounded-parallel
// per-provider fetches, reconciles the results by confidence, assembles and
// validates defaults.yaml and each provider's override file, and emits the
// output directory atomically (spec.md §4.10).
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/example42/saidata-gen/internal/configmanager"
	"github.com/example42/saidata-gen/internal/core/resilience"
	"github.com/example42/saidata-gen/internal/fetch"
	"github.com/example42/saidata-gen/internal/schema"
	"github.com/example42/saidata-gen/internal/value"
)

// Options configures one Generate call (spec.md §6's
// concurrency.per_software/output.* runtime configuration options).
type Options struct {
	// Providers restricts the provider set to these names; empty means
	// every fetcher the Generator was built with.
	Providers []string
	// Platforms is the software's declared platform constraint, consulted
	// by the provider-support heuristic; empty means no constraint.
	Platforms []string
	// PerSoftwareConcurrency bounds how many providers are fetched at once
	// for this software; 0 means "no tighter bound than the provider count".
	PerSoftwareConcurrency int
	// Validate runs the Schema Validator on defaults and each override
	// before emitting (output.validate).
	Validate bool
	// OutputDir is the root directory <software>/ is created under.
	OutputDir string
}

func (o Options) concurrencyLimit(providerCount int) int {
	if o.PerSoftwareConcurrency > 0 && o.PerSoftwareConcurrency < providerCount {
		return o.PerSoftwareConcurrency
	}
	return providerCount
}

// ProviderOutcome reports what happened to one provider's fetch attempt.
type ProviderOutcome struct {
	Provider string
	State    resilience.ProviderState
	Err      error
}

// Result is the per-software outcome of Generate.
type Result struct {
	SoftwareName         string
	Dir                  string
	ProviderOutcomes     []ProviderOutcome
	FieldProvenance      []FieldProvenance
	DefaultsValidation   *schema.Result
	OverrideValidation   map[string]*schema.Result
	ProviderFilesWritten []string
	Degraded             []resilience.DegradationRecord
}

// Generator implements spec.md §4.10. One Generator can serve an entire
// batch run; the DegradationRegistry it holds is the run-scoped shared state
// spec.md §5 calls out explicitly ("no global mutable state beyond the
// degradation registry and caches, both of which are reset per run").
type Generator struct {
	fetchers    map[string]fetch.Fetcher
	manager     *configmanager.Manager
	validator   schema.Validator
	degradation *resilience.DegradationRegistry
	logger      *slog.Logger
}

// New builds a Generator over fetchers (keyed by provider name), a
// Configuration Manager for template resolution, a Schema Validator, and a
// run-scoped DegradationRegistry.
func New(fetchers map[string]fetch.Fetcher, manager *configmanager.Manager, validator schema.Validator, degradation *resilience.DegradationRegistry, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		fetchers:    fetchers,
		manager:     manager,
		validator:   validator,
		degradation: degradation,
		logger:      logger,
	}
}

// Generate runs the full pipeline for one software name. Failure of one
// provider never aborts generation; only a failure to render, validate or
// emit defaults.yaml does (spec.md §4.10, §7.3). If ctx is cancelled before
// emission, no files are written (spec.md §5: "partial work is discarded").
func (g *Generator) Generate(ctx context.Context, softwareName string, opts Options) (*Result, error) {
	providers := g.resolveProviderSet(opts)
	g.logger.Debug("resolved provider set", "software", softwareName, "providers", providers)

	infos, outcomes := g.dispatchFetches(ctx, softwareName, providers, opts.concurrencyLimit(len(providers)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reconciled, provenance := Reconcile(infos)
	vars := buildVars(softwareName, opts.Platforms)

	defaultsDoc, err := g.manager.ResolveBase(ctx, vars, reconciled)
	if err != nil {
		return nil, fmt.Errorf("generator: assembling defaults for %q: %w", softwareName, err)
	}

	result := &Result{
		SoftwareName:       softwareName,
		Dir:                filepath.Join(opts.OutputDir, softwareName),
		ProviderOutcomes:   outcomes,
		FieldProvenance:    provenance,
		OverrideValidation: make(map[string]*schema.Result),
		Degraded:           g.degradation.Records(),
	}

	if opts.Validate {
		vres := g.validator.ValidateDocument(defaultsDoc)
		result.DefaultsValidation = vres
		if !vres.Valid {
			g.logger.Error("defaults.yaml failed validation", "software", softwareName, "issues", len(vres.Issues))
			return result, fmt.Errorf("generator: defaults.yaml for %q fails validation (%d issue(s))", softwareName, len(vres.Errors()))
		}
	}

	overrides, err := g.resolveOverrides(ctx, softwareName, infos, vars, reconciled, opts, result)
	if err != nil {
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	written, err := emitSoftwareDir(result.Dir, defaultsDoc, overrides)
	if err != nil {
		return result, fmt.Errorf("generator: emitting %q: %w", softwareName, err)
	}
	result.ProviderFilesWritten = written

	g.logger.Info("generated software metadata", "software", softwareName,
		"providers_fetched", len(infos), "providers_requested", len(providers),
		"override_files", len(written))

	return result, nil
}

// resolveOverrides implements spec.md §4.10 step 5. A provider's override
// file is the union of two independent diffs against its own provider
// defaults layer:
//
//   - the static provider template's own contribution, from
//     Manager.Resolve's ProviderOverride (repoData passed as Null so this
//     diff never includes repository facts); and
//   - that provider's own repository-derived facts which didn't already
//     make it into the reconciled defaults.yaml aggregate — e.g. in S2,
//     apt and yum both supply packages.default.name, Reconcile leaves the
//     field out of defaults.yaml because they disagree, and each provider's
//     own name shows up only in its own override via this diff.
//
// Either diff alone can be empty; a provider gets an override file only if
// their union is non-empty and passes validation.
func (g *Generator) resolveOverrides(ctx context.Context, softwareName string, infos []fetch.PackageInfo, vars map[string]interface{}, reconciled value.Value, opts Options, result *Result) (map[string]value.Value, error) {
	overrides := make(map[string]value.Value)
	for _, info := range infos {
		templateRes, err := g.manager.Resolve(ctx, info.Provider, vars, value.Null())
		if err != nil {
			return nil, fmt.Errorf("generator: resolving provider %q for %q: %w", info.Provider, softwareName, err)
		}

		repoDiff, err := repoOverrideDiff(reconciled, PackageInfoToValue(info))
		if err != nil {
			return nil, fmt.Errorf("generator: diffing provider %q repository data for %q: %w", info.Provider, softwareName, err)
		}

		combined, err := mergeOverridePartials(templateRes.ProviderOverride, repoDiff)
		if err != nil {
			return nil, fmt.Errorf("generator: combining provider %q override for %q: %w", info.Provider, softwareName, err)
		}
		if combined.IsNull() {
			continue
		}

		if opts.Validate {
			vres := g.validator.ValidateOverride(combined)
			result.OverrideValidation[info.Provider] = vres
			if !vres.Valid {
				g.logger.Warn("provider override failed validation, not emitting", "software", softwareName, "provider", info.Provider, "issues", len(vres.Issues))
				continue
			}
		}
		overrides[info.Provider] = combined
	}
	return overrides, nil
}

// repoOverrideDiff reports which parts of repoPartial are not already
// present, identically, in baseline — the repository-derived portion of one
// provider's override file.
func repoOverrideDiff(baseline, repoPartial value.Value) (value.Value, error) {
	merged, _, err := value.MergeWithDefaults(baseline, repoPartial)
	if err != nil {
		return value.Value{}, err
	}
	return value.ApplyProviderOverridesOnly(baseline, merged), nil
}

// mergeOverridePartials unions two independently computed override
// fragments; either may be Null.
func mergeOverridePartials(a, b value.Value) (value.Value, error) {
	if a.IsNull() {
		return b, nil
	}
	if b.IsNull() {
		return a, nil
	}
	merged, _, err := value.MergeWithDefaults(a, b)
	if err != nil {
		return value.Value{}, err
	}
	return merged, nil
}

// resolveProviderSet implements step 1: the intersection of requested
// providers (or every configured fetcher, if none requested) with providers
// that are plausibly relevant to the declared platforms and not already
// Skipped earlier in this run.
func (g *Generator) resolveProviderSet(opts Options) []string {
	requested := opts.Providers
	if len(requested) == 0 {
		for p := range g.fetchers {
			requested = append(requested, p)
		}
	}
	resolved := make([]string, 0, len(requested))
	for _, p := range requested {
		if _, known := g.fetchers[p]; !known {
			continue
		}
		if g.degradation.IsSkipped(p) {
			continue
		}
		if !configmanager.SupportsPlatform(p, opts.Platforms) {
			continue
		}
		resolved = append(resolved, p)
	}
	sort.Strings(resolved)
	return resolved
}

// dispatchFetches implements step 2: bounded-parallel get_package calls, one
// per provider. Grounded on a per-target fan-out/fan-in publish loop, with
// the two changes spec.md §4.10/§5 call for explicitly over that shape: the
// fan-out is bounded (an errgroup.Group with SetLimit, rather than one
// goroutine per target unconditionally) and a provider's failure is
// classified and swallowed into its own outcome rather than ever cancelling
// its siblings — "failure of one provider never aborts the whole software".
func (g *Generator) dispatchFetches(ctx context.Context, softwareName string, providers []string, concurrency int) ([]fetch.PackageInfo, []ProviderOutcome) {
	if len(providers) == 0 {
		return nil, nil
	}

	infos := make([]*fetch.PackageInfo, len(providers))
	outcomes := make([]ProviderOutcome, len(providers))

	group, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		group.SetLimit(concurrency)
	}

	for i, provider := range providers {
		i, provider := i, provider
		group.Go(func() error {
			outcomes[i] = g.fetchOne(gctx, softwareName, provider, infos, i)
			return nil
		})
	}
	_ = group.Wait()

	out := make([]fetch.PackageInfo, 0, len(infos))
	for _, info := range infos {
		if info != nil {
			out = append(out, *info)
		}
	}
	return out, outcomes
}

// fetchOne runs a single provider's get_package call and records its
// outcome in the Degradation Registry (spec.md §7.2): a Dependency-class
// error (e.g. a local-command provider with no binary on the host) skips
// the provider outright for the rest of the run; any other classified
// failure degrades it without skipping.
func (g *Generator) fetchOne(ctx context.Context, softwareName, provider string, infos []*fetch.PackageInfo, idx int) ProviderOutcome {
	info, err := g.fetchers[provider].GetPackage(ctx, softwareName)
	if err != nil {
		class := resilience.Classify(err)
		if errors.Is(err, fetch.ErrNotSupported) {
			// Fetchers report a missing host binary (and an operation they
			// have no command for) as ErrNotSupported.
			class = resilience.ClassDependency
		}
		switch class {
		case resilience.ClassDependency:
			// Missing local command: unusable for the rest of this run,
			// not just for this software (spec.md S3).
			g.degradation.MarkUnavailable(provider, class)
		case resilience.ClassNotFound:
			// Authoritative "provider does not carry this software" —
			// not a provider health signal, so it neither counts as a
			// failure nor degrades the provider for other software names.
		default:
			g.degradation.RecordFailure(provider, class)
			g.degradation.Degrade(provider, class)
		}
		g.logger.Warn("provider fetch failed", "software", softwareName, "provider", provider, "class", class, "error", err)
		return ProviderOutcome{Provider: provider, State: g.degradation.State(provider), Err: err}
	}
	infos[idx] = info
	return ProviderOutcome{Provider: provider, State: g.degradation.State(provider)}
}

// buildVars assembles the template substitution context spec.md §4.10 step
// 4 describes: "{software_name, platforms, provider=<each>, …}". provider is
// supplied per call by configmanager.Manager.Resolve itself (it selects the
// provider template by name directly), not threaded through vars here.
func buildVars(softwareName string, platforms []string) map[string]interface{} {
	vars := map[string]interface{}{"software_name": softwareName}
	if len(platforms) > 0 {
		asAny := make([]interface{}, len(platforms))
		for i, p := range platforms {
			asAny[i] = p
		}
		vars["platforms"] = asAny
	}
	return vars
}
