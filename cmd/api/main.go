package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/config"
	"propertyhub.org/internal/httpapi"
	"propertyhub.org/internal/obs"
	"propertyhub.org/internal/records"
	"propertyhub.org/internal/store/memstore"
	"propertyhub.org/internal/store/pg"
	"propertyhub.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is everything the API persists to.
type backend interface {
	auth.Store
	audit.Store
	records.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("config_load_failed", err)
	}
	obs.SetLogger(obs.NewLogger(os.Stdout, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		fatal("config_invalid", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store backend
		db    *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			fatal("db_open_failed", err)
		}
		defer pgStore.Close()
		store, db = pgStore, pgStore.DB()
	} else {
		log.Warn("no database configured, using in-memory store")
		store = memstore.New()
	}

	tokens, err := auth.NewTokens(auth.TokenConfig{
		SigningKey: []byte(cfg.JWT.SigningKey),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		TTL:        cfg.TokenTTL(),
	})
	if err != nil {
		fatal("tokens_init_failed", err)
	}
	authSvc, err := auth.NewService(store, tokens)
	if err != nil {
		fatal("auth_init_failed", err)
	}
	feed := stream.New()
	recorder := audit.NewRecorder(store, audit.WithPublisher(feed))
	admin, err := auth.NewAdmin(store, recorder)
	if err != nil {
		fatal("admin_init_failed", err)
	}
	recordSvc, err := records.NewService(store, recorder)
	if err != nil {
		fatal("records_init_failed", err)
	}

	if db == nil {
		if err := seedCatalog(ctx, admin); err != nil {
			fatal("seed_failed", err)
		}
	}
	if cfg.Bootstrap.AdminEmail != "" {
		if err := bootstrapAdmin(ctx, admin, store, cfg.Bootstrap); err != nil {
			fatal("bootstrap_admin_failed", err)
		}
	}

	ready := httpapi.ReadyProbe{DB: db}
	api, err := httpapi.New(httpapi.Options{
		Version:        version,
		Ready:          ready,
		Auth:           authSvc,
		Admin:          admin,
		Records:        recordSvc,
		Audit:          recorder,
		Feed:           feed,
		CORSOrigins:    cfg.CORSOrigins,
		LoginBurst:     cfg.Rate.Burst,
		LoginPerSecond: cfg.Rate.PerSecond,
	})
	if err != nil {
		fatal("api_init_failed", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("http_listening", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http_listen_failed", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			fatal("grpc_listen_failed", err)
		}
		grpcServer = grpc.NewServer()
		health := httpapi.NewHealthServer(ready)
		health.Register(grpcServer)
		go health.Run(ctx, 10*time.Second)
		go func() {
			log.Info("grpc_listening", slog.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				fatal("grpc_serve_failed", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http_shutdown_failed", slog.String("error", err.Error()))
	}
	log.Info("stopped")
}

func fatal(msg string, err error) {
	obs.Logger().Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
