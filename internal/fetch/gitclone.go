package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/example42/saidata-gen/internal/depcheck"
	"gopkg.in/yaml.v3"
)

// ManifestParser extracts a PackageInfo from one manifest file's raw bytes
// within a cloned repository. Each git-clone-backed provider (Winget,
// Scoop) supplies its own, since manifest
// layout/grammar differs per ecosystem.
type ManifestParser func(relPath string, contents []byte) (*PackageInfo, bool)

// GitCloneFetcher adapts a provider whose authoritative data lives in a
// git repository (Winget's winget-pkgs, a Scoop bucket) to the shared
// Fetcher contract: a
// shallow clone (or fetch+reset if already cloned) followed by a
// directory walk, gated by the Dependency Checker since this family
// requires a local `git` binary.
type GitCloneFetcher struct {
	repository  string
	repoURL     string
	workDir     string
	parser      ManifestParser
	depChecker  *depcheck.Checker
	mu          sync.Mutex
	cloned      bool
	runGitFunc  func(ctx context.Context, dir string, args ...string) error
}

// NewGitCloneFetcher wires a provider-specific manifest parser onto the
// shared clone/walk machinery. workDir is where the repository is cloned
// (or reused, if already present from a prior run).
func NewGitCloneFetcher(repository, repoURL, workDir string, parser ManifestParser, depChecker *depcheck.Checker) *GitCloneFetcher {
	return &GitCloneFetcher{
		repository: repository,
		repoURL:    repoURL,
		workDir:    workDir,
		parser:     parser,
		depChecker: depChecker,
		runGitFunc: runGit,
	}
}

func (f *GitCloneFetcher) RepositoryName() string { return f.repository }

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Run()
}

// ensureClone, on its first successful call, clones f.repoURL into
// f.workDir, or fetches and hard-resets a checkout already present there;
// later calls within the same process skip both. Missing git is reported
// as ErrNotSupported, never a
// fatal error — the caller degrades this provider instead of failing
// the whole run.
func (f *GitCloneFetcher) ensureClone(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.depChecker != nil && !f.depChecker.IsAvailable("git") {
		return fmt.Errorf("%s: %w (%s)", f.repository, ErrNotSupported, f.depChecker.Instructions("git"))
	}

	if f.cloned {
		return nil
	}

	if _, err := os.Stat(filepath.Join(f.workDir, ".git")); err == nil {
		if err := f.runGitFunc(ctx, f.workDir, "fetch", "--depth", "1", "origin"); err != nil {
			return fmt.Errorf("%s: git fetch: %w", f.repository, err)
		}
		if err := f.runGitFunc(ctx, f.workDir, "reset", "--hard", "origin/HEAD"); err != nil {
			return fmt.Errorf("%s: git reset: %w", f.repository, err)
		}
		f.cloned = true
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.workDir), 0o755); err != nil {
		return fmt.Errorf("%s: mkdir workdir: %w", f.repository, err)
	}
	if err := f.runGitFunc(ctx, filepath.Dir(f.workDir), "clone", "--depth", "1", f.repoURL, f.workDir); err != nil {
		return fmt.Errorf("%s: git clone: %w", f.repository, err)
	}
	f.cloned = true
	return nil
}

func (f *GitCloneFetcher) walk(ctx context.Context) ([]PackageInfo, []SkippedRecord, error) {
	if err := f.ensureClone(ctx); err != nil {
		return nil, nil, err
	}

	var packages []PackageInfo
	var skipped []SkippedRecord

	err := filepath.Walk(f.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(f.workDir, path)
		if err != nil {
			rel = path
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Identifier: rel, Reason: err.Error()})
			return nil
		}
		pkg, ok := f.parser(rel, contents)
		if !ok {
			return nil
		}
		if pkg == nil {
			skipped = append(skipped, SkippedRecord{Identifier: rel, Reason: "manifest parse failed"})
			return nil
		}
		pkg.Provider = f.repository
		pkg.FetchedAt = time.Now()
		packages = append(packages, *pkg)
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("%s: walk repository: %w", f.repository, err)
	}
	return packages, skipped, nil
}

func (f *GitCloneFetcher) FetchAll(ctx context.Context) (IndexSnapshot, error) {
	packages, skipped, err := f.walk(ctx)
	snapshot := IndexSnapshot{Provider: f.repository, FetchedAt: time.Now(), Packages: packages, Skipped: skipped}
	return snapshot, err
}

func (f *GitCloneFetcher) GetPackage(ctx context.Context, name string) (*PackageInfo, error) {
	packages, _, err := f.walk(ctx)
	if err != nil {
		return nil, err
	}
	for i := range packages {
		if packages[i].Name == name {
			return &packages[i], nil
		}
	}
	return nil, fmt.Errorf("%s: package %q not found", f.repository, name)
}

func (f *GitCloneFetcher) Search(ctx context.Context, query string) ([]PackageMatch, error) {
	packages, _, err := f.walk(ctx)
	if err != nil {
		return nil, err
	}
	var matches []PackageMatch
	for _, pkg := range packages {
		if containsFold(pkg.Name, query) || containsFold(pkg.Description, query) {
			matches = append(matches, PackageMatch{Name: pkg.Name, Version: pkg.Version, Description: pkg.Description})
		}
	}
	return matches, nil
}

// WingetManifestParser parses a winget-pkgs-style manifest directory
// entry: "<Publisher>.<Name>/<Version>/<Publisher>.<Name>.yaml" YAML
// documents with PackageIdentifier/PackageVersion/ShortDescription keys.
func WingetManifestParser(relPath string, contents []byte) (*PackageInfo, bool) {
	if !strings.HasSuffix(relPath, ".yaml") && !strings.HasSuffix(relPath, ".yml") {
		return nil, false
	}
	var doc struct {
		PackageIdentifier string `yaml:"PackageIdentifier"`
		PackageVersion    string `yaml:"PackageVersion"`
		ShortDescription  string `yaml:"ShortDescription"`
		PackageUrl        string `yaml:"PackageUrl"`
		License           string `yaml:"License"`
	}
	if err := yaml.Unmarshal(contents, &doc); err != nil || doc.PackageIdentifier == "" {
		return nil, false
	}
	return &PackageInfo{
		Name:        doc.PackageIdentifier,
		Version:     doc.PackageVersion,
		Description: doc.ShortDescription,
		Homepage:    doc.PackageUrl,
		License:     doc.License,
	}, true
}

// ScoopManifestParser parses a Scoop bucket's "<name>.json" manifest.
func ScoopManifestParser(relPath string, contents []byte) (*PackageInfo, bool) {
	if !strings.HasSuffix(relPath, ".json") {
		return nil, false
	}
	name := strings.TrimSuffix(filepath.Base(relPath), ".json")
	var doc struct {
		Version     string   `json:"version"`
		Description string   `json:"description"`
		Homepage    string   `json:"homepage"`
		License     string   `json:"license"`
		Depends     []string `json:"depends"`
	}
	if err := json.Unmarshal(contents, &doc); err != nil {
		return nil, false
	}
	return &PackageInfo{
		Name:         name,
		Version:      doc.Version,
		Description:  doc.Description,
		Homepage:     doc.Homepage,
		License:      doc.License,
		Dependencies: doc.Depends,
	}, true
}
