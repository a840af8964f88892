package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/neowatch/neowatch/internal/api"
	"github.com/neowatch/neowatch/internal/cache"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/metrics"
	"github.com/neowatch/neowatch/internal/propagation"
	"github.com/neowatch/neowatch/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("NEOWATCH_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	catalogCfg := loadCatalogConfig(logger)
	session := propagation.NewSession(logger)
	diskCache := catalog.NewCache(catalogCfg.CacheDir, catalogCfg.MaxFiles)

	// Attempt to load a cached catalog on startup.
	data, ts, err := diskCache.LoadLatest()
	if err != nil {
		logger.Info("no catalog cache found, starting without catalog", "error", err)
	} else {
		raws, err := catalog.DecodeBrowse(data)
		if err != nil {
			logger.Warn("failed to decode cached catalog", "error", err)
		} else {
			ds := catalog.BuildDataset("cache", ts, raws, logger)
			session.LoadCatalog(ds)
			logger.Info("loaded catalog from cache", "count", len(ds.Objects), "cached_at", ts.Format(time.RFC3339))
		}
	}

	propCfg := loadPropConfig(logger)
	prop := propagation.NewPropagator(session, propCfg, logger)

	cacheCfg := loadCacheConfig(logger, propCfg)
	kfCache := cache.NewKeyframeCache(cacheCfg, prop, session, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(kfCache, session, streamCfg, logger)

	var ref api.Refresher
	var refresher *catalogRefresher
	if catalogCfg.EnableFetch {
		refresher = &catalogRefresher{
			fetcher:   catalog.NewFetcher(catalogCfg.SourceURL, catalogCfg.APIKey, catalogCfg.PageSize),
			diskCache: diskCache,
			session:   session,
			logger:    logger,
		}
		ref = refresher
	}

	srv := api.NewServer(addr, api.Deps{
		Session:    session,
		Propagator: prop,
		Cache:      kfCache,
		Stream:     streamHandler,
		Refresher:  ref,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cache background worker.
	go kfCache.Start(ctx)

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ds := session.Dataset(); ds != nil {
					metrics.SetCatalogAge(time.Since(ds.FetchedAt).Seconds())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Periodic catalog refresh, including an immediate fetch when no cached
	// catalog was found.
	if refresher != nil {
		go refresher.run(ctx, catalogCfg.RefreshInterval, session.Dataset() == nil)
	}

	go func() {
		logger.Info("starting server", "addr", addr, "catalog_fetch_enabled", catalogCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// catalogRefresher fetches the catalog, installs it in the session and writes
// the raw payload to the disk cache.
type catalogRefresher struct {
	fetcher   *catalog.Fetcher
	diskCache *catalog.Cache
	session   *propagation.Session
	logger    *slog.Logger
}

func (cr *catalogRefresher) Refresh(ctx context.Context) error {
	data, err := cr.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	raws, err := catalog.DecodeBrowse(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ds := catalog.BuildDataset(cr.fetcher.SourceURL(), now, raws, cr.logger)
	cr.session.LoadCatalog(ds)

	if err := cr.diskCache.Write(data, now); err != nil {
		cr.logger.Warn("catalog disk cache write failed", "error", err)
	}
	return nil
}

// run refreshes the catalog on a fixed interval until ctx is cancelled.
func (cr *catalogRefresher) run(ctx context.Context, interval time.Duration, immediate bool) {
	if immediate {
		if err := cr.Refresh(ctx); err != nil {
			cr.logger.Error("initial catalog fetch failed", "error", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cr.Refresh(ctx); err != nil {
				cr.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}

// catalogConfig holds catalog acquisition settings.
type catalogConfig struct {
	EnableFetch     bool
	SourceURL       string
	APIKey          string
	PageSize        int
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		EnableFetch:     true,
		PageSize:        20,
		CacheDir:        "/tmp/neowatch/catalog",
		MaxFiles:        5,
		RefreshInterval: 6 * time.Hour,
	}

	if v := os.Getenv("NEOWATCH_ENABLE_CATALOG_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid NEOWATCH_ENABLE_CATALOG_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("NEOWATCH_CATALOG_URL"); v != "" {
		cfg.SourceURL = v
	}

	cfg.APIKey = os.Getenv("NEOWATCH_API_KEY")

	if v := os.Getenv("NEOWATCH_CATALOG_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CATALOG_PAGE_SIZE value, using default", "value", v, "default", cfg.PageSize)
		} else {
			cfg.PageSize = n
		}
	}

	if v := os.Getenv("NEOWATCH_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("NEOWATCH_CATALOG_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CATALOG_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("NEOWATCH_CATALOG_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 60 {
			logger.Warn("invalid NEOWATCH_CATALOG_REFRESH_INTERVAL value, using default", "value", v, "default", 21600)
		} else {
			cfg.RefreshInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("catalog config",
		"fetch_enabled", cfg.EnableFetch,
		"cache_dir", cfg.CacheDir,
		"page_size", cfg.PageSize,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
	)

	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: runtime.NumCPU(),
		Step:    1 * time.Second,
		Horizon: 120 * time.Second,
	}

	if v := os.Getenv("NEOWATCH_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("NEOWATCH_KEYFRAME_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_KEYFRAME_STEP value, using default", "value", v, "default", 1)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("NEOWATCH_KEYFRAME_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_KEYFRAME_HORIZON value, using default", "value", v, "default", 120)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger, propCfg propagation.PropConfig) cache.Config {
	cfg := cache.Config{
		Step:        propCfg.Step,
		Horizon:     propCfg.Horizon,
		GracePeriod: 30 * time.Second,
		Buffer:      60 * time.Second,
	}

	if v := os.Getenv("NEOWATCH_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CACHE_STEP value, using propagation step", "value", v)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("NEOWATCH_CACHE_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CACHE_HORIZON value, using propagation horizon", "value", v)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("NEOWATCH_CACHE_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CACHE_GRACE_PERIOD value, using default", "value", v, "default", 30)
		} else {
			cfg.GracePeriod = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("NEOWATCH_CACHE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_CACHE_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	logger.Info("cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"grace_period_seconds", cfg.GracePeriod.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("NEOWATCH_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("NEOWATCH_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NEOWATCH_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("NEOWATCH_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid NEOWATCH_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
