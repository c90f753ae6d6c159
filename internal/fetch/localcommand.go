package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/example42/saidata-gen/internal/depcheck"
)

// OutputParser turns one local command's captured stdout into normalized
// packages. Each local-command provider (Emerge, Guix, Nix)
// supplies its own, since every package manager's query output format
// differs.
type OutputParser func(stdout []byte) []PackageInfo

// commandSpec names the binary and argv used for each supported
// operation; a provider that can't support a given operation (e.g. no
// bulk listing) leaves that field nil.
type commandSpec struct {
	listArgs   []string
	showArgs   func(name string) []string
	searchArgs func(query string) []string
}

// LocalCommandFetcher adapts a package manager whose only interface is a
// local CLI (Gentoo's emerge, GNU Guix, Nix) to the shared Fetcher
// contract. Every
// operation is gated by the Dependency Checker: a missing binary reports
// ErrNotSupported rather than failing the run (spec §4.4).
type LocalCommandFetcher struct {
	repository string
	binary     string
	spec       commandSpec
	parser     OutputParser
	depChecker *depcheck.Checker
	runFunc    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLocalCommandFetcher wires a provider-specific parser and commandSpec
// onto the shared availability-gated exec machinery.
func NewLocalCommandFetcher(repository, binary string, spec commandSpec, parser OutputParser, depChecker *depcheck.Checker) *LocalCommandFetcher {
	return &LocalCommandFetcher{
		repository: repository,
		binary:     binary,
		spec:       spec,
		parser:     parser,
		depChecker: depChecker,
		runFunc:    runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (f *LocalCommandFetcher) RepositoryName() string { return f.repository }

func (f *LocalCommandFetcher) checkAvailable() error {
	if f.depChecker != nil && !f.depChecker.IsAvailable(f.binary) {
		return fmt.Errorf("%s: %w (%s)", f.repository, ErrNotSupported, f.depChecker.Instructions(f.binary))
	}
	return nil
}

func (f *LocalCommandFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	snapshot := IndexSnapshot{Provider: f.repository, FetchedAt: time.Now()}
	if err := f.checkAvailable(); err != nil {
		return snapshot, err
	}
	if f.spec.listArgs == nil {
		return snapshot, ErrFullIndexUnsupported
	}

	out, err := f.runFunc(ctx, f.binary, f.spec.listArgs...)
	if err != nil {
		return snapshot, fmt.Errorf("%s: %s: %w", f.repository, f.binary, err)
	}

	packages := f.parser(out)
	for i := range packages {
		packages[i].Provider = f.repository
		packages[i].FetchedAt = snapshot.FetchedAt
	}
	snapshot.Packages = packages
	return snapshot, nil
}

func (f *LocalCommandFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	if err := f.checkAvailable(); err != nil {
		return nil, err
	}
	if f.spec.showArgs == nil {
		return nil, ErrNotSupported
	}

	out, err := f.runFunc(ctx, f.binary, f.spec.showArgs(name)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", f.repository, f.binary, err)
	}

	packages := f.parser(out)
	if len(packages) == 0 {
		return nil, fmt.Errorf("%s: package %q not found", f.repository, name)
	}
	packages[0].Provider = f.repository
	packages[0].FetchedAt = time.Now()
	return &packages[0], nil
}

func (f *LocalCommandFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	if err := f.checkAvailable(); err != nil {
		return nil, err
	}
	if f.spec.searchArgs == nil {
		return nil, ErrNotSupported
	}

	out, err := f.runFunc(ctx, f.binary, f.spec.searchArgs(query)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", f.repository, f.binary, err)
	}

	packages := f.parser(out)
	matches := make([]PackageMatch, 0, len(packages))
	for _, pkg := range packages {
		matches = append(matches, PackageMatch{Name: pkg.Name, Version: pkg.Version, Description: pkg.Description})
	}
	return matches, nil
}

// NewNixFetcher wires the commandSpec/parser pair for `nix-env -qa --json`
// (full listing and per-name lookup), whose JSON output is a map keyed by
// attribute path. No search command is wired, so Search returns
// ErrNotSupported.
func NewNixFetcher(depChecker *depcheck.Checker) *LocalCommandFetcher {
	spec := commandSpec{
		listArgs: []string{"-qa", "--json"},
		showArgs: func(name string) []string {
			return []string{"-qa", "--json", name}
		},
	}
	return NewLocalCommandFetcher("nix", "nix-env", spec, parseNixEnvJSON, depChecker)
}

func parseNixEnvJSON(stdout []byte) []PackageInfo {
	var raw map[string]struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Meta    struct {
			Description string   `json:"description"`
			Homepage    []string `json:"homepage"`
			License     []struct {
				ShortName string `json:"shortName"`
			} `json:"license"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return nil
	}

	packages := make([]PackageInfo, 0, len(raw))
	for _, entry := range raw {
		homepage := ""
		if len(entry.Meta.Homepage) > 0 {
			homepage = entry.Meta.Homepage[0]
		}
		license := ""
		if len(entry.Meta.License) > 0 {
			license = entry.Meta.License[0].ShortName
		}
		packages = append(packages, PackageInfo{
			Name:        entry.Name,
			Version:     entry.Version,
			Description: entry.Meta.Description,
			Homepage:    homepage,
			License:     license,
		})
	}
	return packages
}

// NewEmergeFetcher wires the commandSpec/parser pair for Gentoo's
// `emerge --search --searchdesc`; emerge has no bulk-listing
// mode that's economical to run per generate cycle, so FetchAll reports
// unsupported and GetPackage/Search shell out per call.
func NewEmergeFetcher(depChecker *depcheck.Checker) *LocalCommandFetcher {
	spec := commandSpec{
		showArgs: func(name string) []string {
			return []string{"--search", "--searchdesc", name}
		},
		searchArgs: func(query string) []string {
			return []string{"--search", "--searchdesc", query}
		},
	}
	return NewLocalCommandFetcher("emerge", "emerge", spec, parseEmergeSearchOutput, depChecker)
}

// parseEmergeSearchOutput parses emerge's "* category/name" search-result
// blocks, each followed by indented "Description:" and "Homepage:" lines.
func parseEmergeSearchOutput(stdout []byte) []PackageInfo {
	var packages []PackageInfo
	var current *PackageInfo

	for _, line := range strings.Split(string(stdout), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "* "):
			if current != nil {
				packages = append(packages, *current)
			}
			name := strings.TrimPrefix(trimmed, "* ")
			if idx := strings.Index(name, "/"); idx >= 0 {
				name = name[idx+1:]
			}
			current = &PackageInfo{Name: name}
		case strings.HasPrefix(trimmed, "Description:") && current != nil:
			current.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "Description:"))
		case strings.HasPrefix(trimmed, "Homepage:") && current != nil:
			current.Homepage = strings.TrimSpace(strings.TrimPrefix(trimmed, "Homepage:"))
		case strings.HasPrefix(trimmed, "Latest version available:") && current != nil:
			current.Version = strings.TrimSpace(strings.TrimPrefix(trimmed, "Latest version available:"))
		}
	}
	if current != nil {
		packages = append(packages, *current)
	}
	return packages
}

// NewGuixFetcher wires the commandSpec/parser pair for `guix search`, whose
// output is recfile-like blank-line-separated stanzas similar to control
// format. Only Search is wired: FetchAll reports ErrFullIndexUnsupported
// and GetPackage reports ErrNotSupported.
func NewGuixFetcher(depChecker *depcheck.Checker) *LocalCommandFetcher {
	spec := commandSpec{
		searchArgs: func(query string) []string {
			return []string{"search", query}
		},
	}
	return NewLocalCommandFetcher("guix", "guix", spec, parseGuixSearchOutput, depChecker)
}

// parseGuixSearchOutput parses `guix search`'s recfile-style output:
// blank-line-separated stanzas of "key: value" lines, reusing the same
// control-format grammar APT's index uses.
func parseGuixSearchOutput(stdout []byte) []PackageInfo {
	blocks := parseControlFormat(string(stdout))
	packages := make([]PackageInfo, 0, len(blocks))
	for _, b := range blocks {
		name := b["name"]
		if name == "" {
			continue
		}
		packages = append(packages, PackageInfo{
			Name:        name,
			Version:     b["version"],
			Description: b["synopsis"],
			Homepage:    b["homepage"],
			License:     b["license"],
		})
	}
	return packages
}
