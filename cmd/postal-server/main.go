// Command postal-server serves postal code lookups over HTTP from stored
// indexes.
//
// Usage:
//
//	go run ./cmd/postal-server -cache ./jpostcode-cache -preload metro
//
// Build indexes first with cmd/update-index, or pass -build to build missing
// ones from the Japan Post archives on first request.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andreiashu/jpostcode"
	"github.com/andreiashu/jpostcode/internal/httpapi"
)

func main() {
	addr := flag.String("addr", envOr("JPOSTCODE_ADDR", ":8080"), "listen address")
	cacheDir := flag.String("cache", envOr("JPOSTCODE_CACHE_DIR", "./jpostcode-cache"), "directory for index blobs")
	dataDir := flag.String("data", envOr("JPOSTCODE_DATA_DIR", "./jpostcode-data"), "directory for downloaded archives")
	build := flag.Bool("build", false, "build missing indexes from the Japan Post archives")
	preload := flag.String("preload", string(jpostcode.DefaultRegion), "comma separated regions to load at startup")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	opts := []jpostcode.Option{
		jpostcode.WithCacheDir(*cacheDir),
		jpostcode.WithDataDir(*dataDir),
		jpostcode.WithLogger(logger),
	}
	var source jpostcode.RecordSource
	if *build {
		source = jpostcode.NewArchiveSource(opts...)
	}
	cache := jpostcode.NewIndexCache(jpostcode.NewStore(opts...), source, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range strings.Split(*preload, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		region, err := jpostcode.ParseRegion(name)
		if err != nil {
			logger.Fatal("invalid preload region", zap.Error(err))
		}
		if _, err := cache.GetOrBuild(ctx, region); err != nil {
			logger.Fatal("failed to load index", zap.String("region", name), zap.Error(err))
		}
	}

	s := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewRouter(cache, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", *addr))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
