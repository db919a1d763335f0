package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/local/flipbook/internal/assetcache"
	cfgpkg "github.com/local/flipbook/internal/config"
	"github.com/local/flipbook/internal/document"
	"github.com/local/flipbook/internal/flipbook"
	"github.com/local/flipbook/internal/imagerender"
	logpkg "github.com/local/flipbook/internal/logger"
	"github.com/local/flipbook/internal/metrics"
	"github.com/local/flipbook/internal/pageflip"
	"github.com/local/flipbook/internal/source"
	"github.com/local/flipbook/internal/statuscheck"
	"github.com/local/flipbook/internal/web"
)

const initialStatus = "Betöltés..."

func main() {
	cfg := cfgpkg.Load()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:         cfg.Logging.Level,
		Pretty:        cfg.Logging.Pretty,
		File:          cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxBackups:    cfg.Logging.MaxBackups,
		MaxAgeDays:    cfg.Logging.MaxAgeDays,
		Compress:      cfg.Logging.Compress,
		SendToAxiom:   cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:   cfg.Axiom.APIKey,
		AxiomOrgID:    cfg.Axiom.OrgID,
		AxiomDataset:  cfg.Axiom.Dataset,
		AxiomFlush:    cfg.Axiom.FlushInterval,
		AxiomMinLevel: cfg.Axiom.MinLevel,
	})
	defer logpkg.Close()
	metrics.Init()
	lg := logpkg.Component("main")

	source.CleanupTemps(os.TempDir(), cfg.Source.TempMaxAge)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Document pipeline
	backend, err := document.Default()
	if err != nil {
		lg.Fatal().Err(err).Msg("no document backend")
	}
	fetcher := source.NewFetcher(&http.Client{Timeout: cfg.Source.Timeout}, cfg.Source.Password)
	opener := source.NewOpener(fetcher, backend)

	policy, err := flipbook.ParsePolicy(cfg.Book.Policy)
	if err != nil {
		lg.Fatal().Err(err).Msg("invalid layout policy")
	}
	board := web.NewBoard(initialStatus)
	loader := flipbook.NewLoader(opener, pageflip.New, board, flipbook.LoaderOptions{
		Source: cfg.Book.Source,
		Sizer: flipbook.Sizer{
			Policy:     policy,
			BaseHeight: cfg.Book.BaseHeight,
			ViewportW:  cfg.Book.ViewportW,
			ViewportH:  cfg.Book.ViewportH,
			Padding:    cfg.Book.Padding,
		},
		Flip: flipbook.FlipOptions{
			Size:             flipbook.SizeMode(cfg.Book.SizeMode),
			MinWidth:         cfg.Book.MinWidth,
			MaxWidth:         cfg.Book.MaxWidth,
			MinHeight:        cfg.Book.MinHeight,
			MaxHeight:        cfg.Book.MaxHeight,
			ShowCover:        cfg.Book.ShowCover,
			MaxShadowOpacity: cfg.Book.MaxShadow,
			UsePortrait:      cfg.Book.UsePortrait,
		},
		AwaitRenders: cfg.Book.AwaitRenders,
		Concurrency:  cfg.Render.Concurrency,
		FailureText:  cfg.Book.FailureText,
	})

	// Asset cache
	var (
		store      assetcache.Store
		redisStore *assetcache.RedisStore
	)
	switch cfg.Cache.Backend {
	case "redis":
		redisStore, err = assetcache.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
	default:
		store = assetcache.NewMemoryStore()
	}
	cache := assetcache.NewManager(
		assetcache.Manifest{Name: cfg.Cache.Name, Assets: cfg.Cache.Assets},
		store,
		assetcache.NewHTTPFetcher(&http.Client{Timeout: cfg.Cache.Timeout}, cfg.Cache.BaseURL, cfg.Cache.FetchRPS),
	)

	// Health
	checkOpts := statuscheck.Options{Loader: loader, S3Bucket: sourceBucket(cfg)}
	if cfg.Cache.Install {
		checkOpts.Cache = cache
	}
	if redisStore != nil {
		checkOpts.Redis = statuscheck.RedisClient{C: redisStore.Client()}
	}
	checker := statuscheck.New(checkOpts)

	viewer := web.New(web.Options{
		Title:           "Flipbook",
		Board:           board,
		Loader:          loader,
		Factory:         pageflip.New,
		Encoder:         imagerender.NewEncoder(cfg.Render.JPEGQuality, cfg.Render.ColorMode),
		Cache:           cache,
		Health:          checker.Handler(),
		Interval:        cfg.AutoFlip.Interval,
		AllowFullscreen: cfg.Book.Fullscreen,
		SessionTTL:      cfg.Server.SessionTTL,
		RateLimit:       cfg.Server.RateLimit,
		BaseContext:     ctx,
	})

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/", viewer.Handler())

	ln, err := net.Listen("tcp", ":"+cfg.Server.Port)
	if err != nil {
		lg.Fatal().Err(err).Str("port", cfg.Server.Port).Msg("listen failed")
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		lg.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("http server error")
		}
	}()

	// The listener is open, so the install can fetch from this server.
	if cfg.Cache.Install {
		go func() {
			ictx, cancel := context.WithTimeout(ctx, cfg.Cache.Timeout)
			defer cancel()
			if err := cache.Install(ictx); err != nil {
				lg.Warn().Err(err).Msg("asset cache not installed; serving uncached")
			}
		}()
	}

	go func() {
		book, err := loader.Load(ctx)
		if err != nil {
			return
		}
		viewer.SetBook(book)
		if err := book.Wait(); err != nil {
			lg.Warn().Err(err).Msg("some pages failed to render")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	lg.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Warn().Err(err).Msg("http shutdown")
	}
	if book := viewer.Book(); book != nil {
		if err := book.Close(); err != nil {
			lg.Warn().Err(err).Msg("close document")
		}
	}
	lg.Info().Msg("shutdown complete")
}

// sourceBucket is the bucket probed by the health check: the source's own
// bucket for s3:// sources, otherwise the configured one.
func sourceBucket(cfg cfgpkg.Config) string {
	if bucket, _, err := source.ParseS3URL(cfg.Book.Source); err == nil {
		return bucket
	}
	return cfg.S3.Bucket
}
