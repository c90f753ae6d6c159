package cachestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// sidecarMeta is the on-disk JSON companion to each blob file.
type sidecarMeta struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
	TTLSeconds  int64     `json:"ttl_seconds"`
}

// FilesystemStore stores one file per key plus a ".meta" sidecar under dir.
// Keys are hashed to filenames (sha256 hex) so arbitrary cache keys — URLs,
// provider/software pairs — never collide with path separators. Writes go
// to a temp file in the same directory then os.Rename, so a crash mid-write
// never leaves a half-written blob visible to readers.
type FilesystemStore struct {
	dir string
	mu  sync.Mutex

	hits, misses, evictions int64
}

// NewFilesystemStore returns a Store rooted at dir, creating it if absent.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemStore{dir: dir}, nil
}

func (s *FilesystemStore) pathFor(key string) (blob, meta string) {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name+".blob"), filepath.Join(s.dir, name+".meta")
}

func (s *FilesystemStore) Get(_ context.Context, key string) ([]byte, Meta, error) {
	blobPath, metaPath := s.pathFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	rawMeta, err := os.ReadFile(metaPath)
	if err != nil {
		s.misses++
		return nil, Meta{}, ErrMiss
	}
	var sc sidecarMeta
	if err := json.Unmarshal(rawMeta, &sc); err != nil {
		s.misses++
		return nil, Meta{}, ErrMiss
	}

	ttl := time.Duration(sc.TTLSeconds) * time.Second
	if ttl > 0 && time.Now().After(sc.StoredAt.Add(ttl)) {
		_ = os.Remove(blobPath)
		_ = os.Remove(metaPath)
		s.misses++
		s.evictions++
		return nil, Meta{}, ErrMiss
	}

	data, err := os.ReadFile(blobPath)
	if err != nil {
		s.misses++
		return nil, Meta{}, ErrMiss
	}

	s.hits++
	return data, Meta{ContentType: sc.ContentType, StoredAt: sc.StoredAt, TTL: ttl}, nil
}

func (s *FilesystemStore) Put(_ context.Context, key string, value []byte, ttl time.Duration, meta Meta) error {
	blobPath, metaPath := s.pathFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(blobPath, value); err != nil {
		return err
	}

	sc := sidecarMeta{
		Key:         key,
		ContentType: meta.ContentType,
		StoredAt:    time.Now(),
		TTLSeconds:  int64(ttl / time.Second),
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return writeAtomic(metaPath, raw)
}

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

func (s *FilesystemStore) Invalidate(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".meta" {
			continue
		}
		metaPath := filepath.Join(s.dir, e.Name())
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var sc sidecarMeta
		if err := json.Unmarshal(raw, &sc); err != nil {
			continue
		}
		if !MatchesGlob(pattern, sc.Key) {
			continue
		}
		blobPath, _ := s.pathFor(sc.Key)
		os.Remove(blobPath)
		os.Remove(metaPath)
		removed++
		s.evictions++
	}
	return removed, nil
}

func (s *FilesystemStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _ := os.ReadDir(s.dir)
	size := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".blob" {
			size++
		}
	}
	return Stats{Hits: s.hits, Misses: s.misses, Evictions: s.evictions, Size: size}
}

func (s *FilesystemStore) Close() error { return nil }
