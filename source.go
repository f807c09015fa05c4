package jpostcode

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecordSource supplies the raw rows a region's index is built from, sorted
// by 7-digit code.
type RecordSource interface {
	Records(ctx context.Context, region Region) ([]Record, error)
}

// maxConcurrentDownloads bounds parallel archive downloads for multi-archive
// regions such as metro.
const maxConcurrentDownloads = 4

// ArchiveSource reads Japan Post zip archives from the data directory,
// downloading any that are missing.
type ArchiveSource struct {
	dataDir string
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu sync.Mutex // serializes downloads into dataDir
}

// NewArchiveSource returns an ArchiveSource using the configured data
// directory, base URL and HTTP client.
func NewArchiveSource(opts ...Option) *ArchiveSource {
	cfg := newConfig(opts)
	return &ArchiveSource{
		dataDir: cfg.DataDir,
		baseURL: cfg.BaseURL,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

// Records downloads the region's archives if needed and returns their rows
// in 7-digit code order. The region's legacy prefix filter is not applied
// here; the Builder applies it.
func (s *ArchiveSource) Records(ctx context.Context, region Region) ([]Record, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	archives := region.Archives()
	if err := s.download(ctx, archives); err != nil {
		return nil, fmt.Errorf("downloading %s archives: %w", region, err)
	}

	var records []Record
	for _, name := range archives {
		rows, err := readArchive(filepath.Join(s.dataDir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		s.logger.Debug("read archive", zap.String("archive", name), zap.Int("rows", len(rows)))
		records = append(records, rows...)
	}
	SortRecords(records)
	return records, nil
}

// download fetches every archive not yet present in the data directory.
func (s *ArchiveSource) download(ctx context.Context, archives []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	type fetch struct{ link, path string }
	var missing []fetch
	for _, name := range archives {
		path := filepath.Join(s.dataDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		link, err := url.JoinPath(s.baseURL, name)
		if err != nil {
			return fmt.Errorf("building url for %s: %w", name, err)
		}
		missing = append(missing, fetch{link: link, path: path})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for _, f := range missing {
		f := f
		g.Go(func() error {
			s.logger.Info("downloading archive", zap.String("url", f.link))
			return s.downloadFile(ctx, f.link, f.path)
		})
	}
	return g.Wait()
}

func (s *ArchiveSource) downloadFile(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", link, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP GET %s: status %d", link, resp.StatusCode)
	}

	// The archive only appears under its final name once it is complete.
	out, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := out.Name()

	success := false
	defer func() {
		if !success {
			out.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	success = true
	return nil
}

// readArchive returns the rows of every CSV entry in a zip archive.
func readArchive(path string) ([]Record, error) {
	rz, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening zip file: %w", err)
	}
	defer rz.Close()

	var records []Record
	for _, f := range rz.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rows, err := readZipEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		records = append(records, rows...)
	}
	return records, nil
}

// readZipEntry decodes one entry. The entry is streamed into memory, never
// extracted to disk.
func readZipEntry(f *zip.File) ([]Record, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening file in zip: %w", err)
	}
	defer rc.Close()
	return ReadShiftJISRecords(rc)
}
