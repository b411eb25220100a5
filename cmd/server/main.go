package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/barflow/internal/adapters/http"
	wsignal "github.com/dkeye/barflow/internal/adapters/signal"
	"github.com/dkeye/barflow/internal/adapters/stockfeed"
	"github.com/dkeye/barflow/internal/app"
	"github.com/dkeye/barflow/internal/app/orch"
	"github.com/dkeye/barflow/internal/catalog"
	"github.com/dkeye/barflow/internal/config"
	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/ledger"
	"github.com/dkeye/barflow/internal/store/sqlitestore"
	"github.com/dkeye/barflow/internal/store/sqlstore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("barflow stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		// Machine-readable logs outside development.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	cache := catalog.NewClient(ctx, catalog.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	var itemCatalog core.Catalog = store
	var itemCache *catalog.Cache
	if cache != nil {
		defer cache.Close()
		itemCache = catalog.NewCache(cache, store, cfg.Redis.TTL)
		itemCatalog = itemCache
	}

	for _, item := range cfg.Menu {
		if err := store.UpsertItem(ctx, item); err != nil {
			return fmt.Errorf("seed menu: %w", err)
		}
		if itemCache != nil {
			itemCache.Invalidate(ctx, item.Name)
		}
	}
	log.Info().Int("items", len(cfg.Menu)).Msg("menu seeded")

	var policy app.Policy = app.SimplePolicy{}
	if cfg.Presence.Backpressure == "tolerate" {
		policy = app.TolerantPolicy{}
	}
	reg := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry: reg,
		Router:   app.NewRouter(reg),
		Policy:   policy,
	}
	led := ledger.New(store, itemCatalog, o)
	o.Tickets = led

	ctl := wsignal.NewSignalWSController(o,
		wsignal.NewJoinLimiter(cfg.Signal.JoinRate, cfg.Signal.JoinBurst),
		wsignal.Options{
			SendBuffer: cfg.Signal.SendBuffer,
			PingPeriod: cfg.PingPeriod,
			ReadLimit:  cfg.ReadLimit,
		})

	g, gctx := errgroup.WithContext(ctx)

	r := router.SetupRouter(gctx, cfg, &router.Handlers{Ledger: led, Orch: o, Signal: ctl})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("barflow server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	g.Go(func() error {
		o.Run(gctx, cfg.Presence.SnapshotInterval)
		return nil
	})
	if cfg.Rabbit.URL != "" {
		feed := &stockfeed.Consumer{URL: cfg.Rabbit.URL, Queue: cfg.Rabbit.Queue, Handler: o.StockSignal}
		g.Go(func() error { return feed.Run(gctx) })
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Storage) (core.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return sqlitestore.Open(sqlitestore.Config{Path: cfg.Path, PoolSize: cfg.PoolSize})
	default:
		dialect, err := sqlstore.ParseDialect(cfg.Driver)
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, sqlstore.Config{Dialect: dialect, DSN: cfg.DSN, MaxOpenConns: cfg.PoolSize})
	}
}
