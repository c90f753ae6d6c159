package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/example42/saidata-gen/internal/value"
)

// emitSoftwareDir writes <dir>/defaults.yaml and <dir>/providers/<p>.yaml for
// every entry in overrides (spec.md §4.10 step 7), UTF-8/LF/stable-key-order,
// each file replaced by atomic rename so a crash mid-write never leaves a
// half-written document visible to a reader. Any providers/*.yaml left over
// from an earlier generation of the same software that is no longer among
// overrides is removed, and providers/ itself is removed if it ends up
// empty — re-running the generator must not leave stale per-provider files
// behind after a provider stops needing an override.
func emitSoftwareDir(dir string, defaults value.Value, overrides map[string]value.Value) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("generator: creating %s: %w", dir, err)
	}

	defaultsRaw, err := value.MarshalYAML(defaults)
	if err != nil {
		return nil, fmt.Errorf("generator: rendering defaults.yaml: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "defaults.yaml"), defaultsRaw); err != nil {
		return nil, fmt.Errorf("generator: writing defaults.yaml: %w", err)
	}

	providersDir := filepath.Join(dir, "providers")
	if len(overrides) == 0 {
		if err := removeStaleProviderFiles(providersDir, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := os.MkdirAll(providersDir, 0o755); err != nil {
		return nil, fmt.Errorf("generator: creating %s: %w", providersDir, err)
	}

	written := make([]string, 0, len(overrides))
	for provider := range overrides {
		written = append(written, provider)
	}
	sort.Strings(written)

	for _, provider := range written {
		raw, err := value.MarshalYAML(overrides[provider])
		if err != nil {
			return nil, fmt.Errorf("generator: rendering providers/%s.yaml: %w", provider, err)
		}
		path := filepath.Join(providersDir, provider+".yaml")
		if err := writeAtomic(path, raw); err != nil {
			return nil, fmt.Errorf("generator: writing providers/%s.yaml: %w", provider, err)
		}
	}

	if err := removeStaleProviderFiles(providersDir, written); err != nil {
		return nil, err
	}

	return written, nil
}

// removeStaleProviderFiles deletes any providers/<p>.yaml not named in keep,
// then removes providers/ itself once empty.
func removeStaleProviderFiles(providersDir string, keep []string) error {
	entries, err := os.ReadDir(providersDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("generator: reading %s: %w", providersDir, err)
	}

	wanted := make(map[string]bool, len(keep))
	for _, provider := range keep {
		wanted[provider+".yaml"] = true
	}

	for _, entry := range entries {
		if entry.IsDir() || wanted[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(providersDir, entry.Name())); err != nil {
			return fmt.Errorf("generator: removing stale %s: %w", entry.Name(), err)
		}
	}

	remaining, err := os.ReadDir(providersDir)
	if err != nil {
		return fmt.Errorf("generator: reading %s: %w", providersDir, err)
	}
	if len(remaining) == 0 {
		if err := os.Remove(providersDir); err != nil {
			return fmt.Errorf("generator: removing empty %s: %w", providersDir, err)
		}
	}
	return nil
}

// writeAtomic writes data to path via a same-directory temp file plus
// rename, so a reader never observes a partially written file. Adapted from
// internal/cachestore's FilesystemStore.Put/writeAtomic, which uses the same
// pattern for cache blobs.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
