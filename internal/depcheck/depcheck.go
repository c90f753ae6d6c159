// Package depcheck answers "is this command available" for the
// local-command and git-clone fetcher families (Nix, Guix, Emerge, Spack,
// git itself). Spec §4.4: missing commands never fail a run, they cause the
// fetcher to report "unsupported on this host" and the provider to be
// skipped with a degradation record.
package depcheck

import (
	"fmt"
	"os/exec"
	"sync"
)

// instructionsByCommand gives a short, actionable hint for the commands the
// fetcher set depends on. Unlisted commands fall back to a generic message.
var instructionsByCommand = map[string]string{
	"git":   "install git (e.g. apt install git, brew install git)",
	"nix":   "install Nix from https://nixos.org/download",
	"guix":  "install GNU Guix from https://guix.gnu.org/manual/en/html_node/Installation.html",
	"emerge": "emerge is part of Gentoo's portage; this fetcher only runs on Gentoo hosts",
	"spack": "install Spack from https://github.com/spack/spack",
}

// Checker caches is_available results for the lifetime of a process, since
// PATH does not change mid-run.
type Checker struct {
	mu     sync.Mutex
	lookup func(string) (string, error)
	cache  map[string]bool
}

// New returns a Checker using os/exec.LookPath.
func New() *Checker {
	return &Checker{lookup: exec.LookPath, cache: make(map[string]bool)}
}

// newWithLookup is used by tests to substitute a fake LookPath.
func newWithLookup(lookup func(string) (string, error)) *Checker {
	return &Checker{lookup: lookup, cache: make(map[string]bool)}
}

// NewForTest builds a Checker with a caller-supplied lookup function, for
// use by other packages' tests that need to fake command availability
// without touching the real PATH.
func NewForTest(lookup func(string) (string, error)) *Checker {
	return newWithLookup(lookup)
}

// IsAvailable reports whether command resolves on PATH. The result is
// cached for the lifetime of the Checker.
func (c *Checker) IsAvailable(command string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[command]; ok {
		return cached
	}
	_, err := c.lookup(command)
	available := err == nil
	c.cache[command] = available
	return available
}

// Instructions returns a short remediation hint for command.
func (c *Checker) Instructions(command string) string {
	if hint, ok := instructionsByCommand[command]; ok {
		return hint
	}
	return fmt.Sprintf("install %q and ensure it is on PATH", command)
}
