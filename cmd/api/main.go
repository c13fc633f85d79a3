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

	"github.com/cenkalti/backoff/v4"

	"pokeswap.org/internal/audit"
	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/config"
	"pokeswap.org/internal/events"
	"pokeswap.org/internal/httpapi"
	"pokeswap.org/internal/migrate"
	"pokeswap.org/internal/obs"
	"pokeswap.org/internal/pokemon"
	"pokeswap.org/internal/store/memory"
	"pokeswap.org/internal/store/pg"
	"pokeswap.org/internal/stream"
	"pokeswap.org/internal/trade"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what both storage implementations provide.
type backend interface {
	auth.Store
	pokemon.Store
	trade.Store
	audit.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	log := obs.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	// register metrics before the first request
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, store,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}
	authSvc := auth.NewService(store, issuer)
	if err := authSvc.EnsureCatalog(ctx); err != nil {
		log.Fatal().Err(err).Msg("rights catalog")
	}
	if created, err := authSvc.BootstrapAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin")
	} else if created {
		log.Info().Str("login", cfg.AdminLogin).Msg("administrator created")
	}

	// trade events: SSE subscribers always, NATS when configured
	tradeStream := stream.New()
	publishers := events.Fanout{tradeStream}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(ctx, cfg.NATSURL, 30*time.Second)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("connect nats")
		}
		defer nc.Drain()
		publishers = append(publishers, events.NewNATSPublisher(nc, cfg.NATSSubject))
		log.Info().Str("subject", cfg.NATSSubject).Msg("publishing trade events to nats")
	}

	ready := httpapi.ReadyProbe{Store: store}
	api := httpapi.New(httpapi.Deps{
		Auth:          authSvc,
		Guard:         auth.NewGuard(issuer, store),
		Pokemons:      pokemon.NewService(store),
		Trades:        trade.NewEngine(store),
		Audit:         audit.NewRecorder(store),
		Events:        publishers,
		Stream:        tradeStream,
		Ready:         ready,
		Version:       version,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE responses stay open, so no write timeout
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	health := httpapi.NewHealthServer(ready)
	grpcSrv := httpapi.NewGRPCServer(health)
	go health.Run(ctx, 10*time.Second)

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()

	go func() {
		log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting " + obs.ServiceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()
	log.Info().Msg("stopped")
}

// openStore connects to PostgreSQL and applies migrations and seeds, or falls
// back to the in-memory store when no DSN is configured.
func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	if cfg.PGDSN == "" {
		obs.Logger().Warn().Msg("POKESWAP_PG_DSN is empty, using in-memory store")
		return memory.New(), func() {}, nil
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.PGConnectTimeout
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pctx); err != nil {
			obs.Logger().Warn().Err(err).Msg("waiting for postgres")
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	mgr := migrate.NewManager(store.DB(), migrate.Migrations(), migrate.Seeds())
	if err := mgr.Up(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := mgr.Seed(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
