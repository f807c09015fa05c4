package jpostcode

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Japan Post download path for the per-prefecture and
// national kanji address archives.
const DefaultBaseURL = "https://www.post.japanpost.jp/zipcode/dl/kogaki/zip/"

// Config contains the settings shared by Store, ArchiveSource and IndexCache.
type Config struct {
	DataDir    string       // Directory for downloaded archives (default: "./jpostcode-data")
	CacheDir   string       // Directory for index blobs (default: "./jpostcode-cache")
	BaseURL    string       // Archive download base URL (default: DefaultBaseURL)
	HTTPClient *http.Client // Client for archive downloads
	Logger     *zap.Logger  // Defaults to a no-op logger
	Compress   bool         // Gzip index blobs on write (default: true)
}

// Option is a functional option for configuring components.
type Option func(*Config)

// WithDataDir sets the directory for downloaded archives.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithCacheDir sets the directory for index blobs.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithBaseURL sets the base URL archives are downloaded from.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets the client used for archive downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithCompression controls whether index blobs are gzip compressed on write.
// Blobs of either kind can always be read.
func WithCompression(enabled bool) Option {
	return func(c *Config) {
		c.Compress = enabled
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:  "./jpostcode-data",
		CacheDir: "./jpostcode-cache",
		BaseURL:  DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		Logger:   zap.NewNop(),
		Compress: true,
	}
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return cfg
}
