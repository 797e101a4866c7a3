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

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/config"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/httpapi"
	"sigepa.cl/internal/obs"
	"sigepa.cl/internal/payment"
	"sigepa.cl/internal/store/pg"
	"sigepa.cl/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal("load config", zap.Error(err))
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = version
	}

	obs.InitLogger(obs.LogConfig{
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		Service: "sigepa-api",
		Version: cfg.App.Version,
	})
	defer func() { _ = obs.SyncLogger() }()
	log := obs.Logger()

	obs.Init()
	obs.InitBuildInfo(cfg.App.Version, commit)

	var (
		store estate.Store
		probe httpapi.ReadyProbe
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database.DSN, pg.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
		probe.DB = pgStore.DB()
	} else {
		log.Warn("SIGEPA_PG_DSN not set, using in-memory store")
		store = estate.NewInMemory()
	}

	gw, err := payment.New(cfg)
	if err != nil {
		log.Fatal("payment gateway", zap.Error(err))
	}

	notifications := stream.New()
	svc, err := estate.NewService(store,
		estate.WithGateway(gw, cfg.Payment.ReturnURL),
		estate.WithPublisher(notifications),
		estate.WithSummaryTTL(cfg.Cache.SummaryTTL),
		estate.WithServiceLogger(log.Named("estate")),
	)
	if err != nil {
		log.Fatal("estate service", zap.Error(err))
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithLeeway(cfg.Auth.Leeway),
	)
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}

	proxies, err := httpapi.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal("trusted proxies", zap.Error(err))
	}

	api := httpapi.New(svc, tokens,
		httpapi.WithVersion(cfg.App.Version),
		httpapi.WithReadiness(probe),
		httpapi.WithStream(notifications),
		httpapi.WithLogger(log),
		httpapi.WithCORSOrigins(cfg.Server.CORSAllowedOrigins),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		httpapi.WithRateLimit(cfg.Server.RateBurst, cfg.Server.RatePerSecond),
		httpapi.WithTrustedProxies(proxies),
	)

	// No WriteTimeout: the notification stream holds responses open, and
	// request contexts are cancelled when shutdown starts so streams end.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	health := httpapi.NewHealthService(probe, log.Named("grpc"))
	grpcSrv := httpapi.NewGRPCServer(health)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go health.Watch(ctx, 5*time.Second)

	go func() {
		log.Info("starting sigepa-api",
			zap.String("version", cfg.App.Version),
			zap.String("addr", srv.Addr),
			zap.String("payment", gw.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Fatal("grpc listen", zap.Error(err))
		}
		go func() {
			log.Info("starting grpc health", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
