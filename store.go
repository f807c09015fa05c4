package jpostcode

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// blobExt is the file extension of index blobs in the cache directory.
const blobExt = ".jpci"

// Store persists one index blob per region in the cache directory.
type Store struct {
	dir      string
	compress bool
	logger   *zap.Logger
}

// NewStore returns a Store rooted at the configured cache directory.
func NewStore(opts ...Option) *Store {
	cfg := newConfig(opts)
	return &Store{dir: cfg.CacheDir, compress: cfg.Compress, logger: cfg.Logger}
}

// Path returns the blob path for region.
func (s *Store) Path(region Region) string {
	return filepath.Join(s.dir, string(region)+blobExt)
}

// Save writes idx as the blob for region. The blob is written to a temporary
// file and renamed into place, so readers never observe a partial blob and an
// existing blob is only replaced by a complete one.
func (s *Store) Save(region Region, idx *Index) error {
	if !region.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	path := s.Path(region)
	tmp, err := os.CreateTemp(s.dir, string(region)+blobExt+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := EncodeIndex(w, idx, s.compress); err != nil {
		return fmt.Errorf("encoding %s index: %w", region, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming blob into place: %w", err)
	}
	success = true

	s.logger.Info("stored index",
		zap.String("region", string(region)),
		zap.String("path", path),
		zap.Bool("compressed", s.compress))
	return nil
}

// Load decodes the blob for region. A missing blob fails with ErrIndexNotFound.
func (s *Store) Load(region Region) (*Index, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	path := s.Path(region)
	start := time.Now()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	idx, err := DecodeIndex(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	s.logger.Info("loaded index",
		zap.String("region", string(region)),
		zap.Int("codes", idx.CodeCount()),
		zap.Int("legacy_codes", idx.LegacyCodeCount()),
		zap.Duration("elapsed", time.Since(start)))
	return idx, nil
}

// Exists reports whether a blob is stored for region.
func (s *Store) Exists(region Region) bool {
	_, err := os.Stat(s.Path(region))
	return err == nil
}
