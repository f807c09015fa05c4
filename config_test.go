package jpostcode

import (
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := newConfig(nil)

	if cfg.DataDir != "./jpostcode-data" {
		t.Errorf("DataDir = %q, want ./jpostcode-data", cfg.DataDir)
	}
	if cfg.CacheDir != "./jpostcode-cache" {
		t.Errorf("CacheDir = %q, want ./jpostcode-cache", cfg.CacheDir)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.HTTPClient == nil || cfg.HTTPClient.Timeout != 2*time.Minute {
		t.Errorf("HTTPClient = %+v, want a client with a 2m timeout", cfg.HTTPClient)
	}
	if cfg.Logger == nil {
		t.Error("Logger is nil")
	}
	if !cfg.Compress {
		t.Error("Compress = false, want true")
	}
}

func TestConfigOptions(t *testing.T) {
	client := &http.Client{Timeout: time.Second}
	logger := zap.NewExample()

	cfg := newConfig([]Option{
		WithDataDir("/var/lib/jpostcode/archives"),
		WithCacheDir("/var/cache/jpostcode"),
		WithBaseURL("http://mirror.local/kogaki/"),
		WithHTTPClient(client),
		WithLogger(logger),
		WithCompression(false),
	})

	if cfg.DataDir != "/var/lib/jpostcode/archives" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.CacheDir != "/var/cache/jpostcode" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.BaseURL != "http://mirror.local/kogaki/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.HTTPClient != client {
		t.Error("HTTPClient option not applied")
	}
	if cfg.Logger != logger {
		t.Error("Logger option not applied")
	}
	if cfg.Compress {
		t.Error("Compress = true, want false")
	}
}

func TestConfigNilOptionsFallBack(t *testing.T) {
	cfg := newConfig([]Option{WithLogger(nil), WithHTTPClient(nil)})
	if cfg.Logger == nil {
		t.Error("nil logger not replaced")
	}
	if cfg.HTTPClient != http.DefaultClient {
		t.Error("nil client not replaced with http.DefaultClient")
	}
}

func TestComponentsShareConfig(t *testing.T) {
	dir := t.TempDir()
	opts := []Option{WithCacheDir(dir), WithDataDir(dir), WithCompression(false)}

	store := NewStore(opts...)
	if store.dir != dir || store.compress {
		t.Errorf("NewStore() = {dir: %q, compress: %v}", store.dir, store.compress)
	}
	source := NewArchiveSource(opts...)
	if source.dataDir != dir || source.baseURL != DefaultBaseURL {
		t.Errorf("NewArchiveSource() = {dataDir: %q, baseURL: %q}", source.dataDir, source.baseURL)
	}
}
