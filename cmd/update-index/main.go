// Command update-index builds postal code indexes from the Japan Post
// archives and stores them in the cache directory.
//
// Usage:
//
//	go run ./cmd/update-index [flags] REGION [REGION...]
//	go run ./cmd/update-index -cache ./jpostcode-cache test tokyo
//
// Missing archives are downloaded into the data directory first. Pass "all"
// to build every region. Each index is validated before it is stored; a
// region that fails to build or validate leaves its previous blob untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andreiashu/jpostcode"
)

func main() {
	dataDir := flag.String("data", envOr("JPOSTCODE_DATA_DIR", "./jpostcode-data"), "directory for downloaded archives")
	cacheDir := flag.String("cache", envOr("JPOSTCODE_CACHE_DIR", "./jpostcode-cache"), "directory for index blobs")
	baseURL := flag.String("base-url", jpostcode.DefaultBaseURL, "archive download base URL")
	noCompress := flag.Bool("no-compress", false, "store blobs without gzip")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: update-index [flags] REGION [REGION...]\n\nRegions: all, %s\n\nFlags:\n", regionNames())
		flag.PrintDefaults()
	}
	flag.Parse()

	regions, err := parseRegions(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	opts := []jpostcode.Option{
		jpostcode.WithDataDir(*dataDir),
		jpostcode.WithCacheDir(*cacheDir),
		jpostcode.WithBaseURL(*baseURL),
		jpostcode.WithCompression(!*noCompress),
		jpostcode.WithLogger(logger),
	}
	source := jpostcode.NewArchiveSource(opts...)
	store := jpostcode.NewStore(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := 0
	for _, region := range regions {
		if err := update(ctx, source, store, region); err != nil {
			fmt.Fprintf(os.Stderr, "> %s: %v\n", region, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func update(ctx context.Context, source jpostcode.RecordSource, store *jpostcode.Store, region jpostcode.Region) error {
	start := time.Now()
	fmt.Printf("> Building %s...\n", region)

	idx, stats, err := jpostcode.BuildRegion(ctx, source, region)
	if err != nil {
		return err
	}
	fmt.Printf("      Rows: %d (%d filtered, %d duplicate)\n", stats.Rows, stats.Skipped, stats.Duplicates)
	fmt.Printf("      Found %d 7-digit postal codes (%d entries)\n", stats.Codes, stats.Entries)

	if err := jpostcode.ValidateIndex(region, idx); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Printf("      Validation: OK\n")

	if err := store.Save(region, idx); err != nil {
		return err
	}
	fmt.Printf("> Finished %s -> %s (%.2fs)\n", region, store.Path(region), time.Since(start).Seconds())
	return nil
}

func parseRegions(args []string) ([]jpostcode.Region, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no region given")
	}
	var regions []jpostcode.Region
	for _, arg := range args {
		for _, name := range strings.Split(arg, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if name == "all" {
				return jpostcode.Regions(), nil
			}
			r, err := jpostcode.ParseRegion(name)
			if err != nil {
				return nil, err
			}
			regions = append(regions, r)
		}
	}
	return regions, nil
}

func regionNames() string {
	var names []string
	for _, r := range jpostcode.Regions() {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
