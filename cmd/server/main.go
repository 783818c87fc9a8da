// Command circ-server runs the library circulation HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/library-circulation/internal/authz"
	"github.com/and161185/library-circulation/internal/config"
	"github.com/and161185/library-circulation/internal/ledger"
	"github.com/and161185/library-circulation/internal/limiter"
	"github.com/and161185/library-circulation/internal/metrics"
	"github.com/and161185/library-circulation/internal/migrate"
	"github.com/and161185/library-circulation/internal/repository/postgres"
	httpserver "github.com/and161185/library-circulation/internal/server/http"
	"github.com/and161185/library-circulation/internal/service"
	"github.com/and161185/library-circulation/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type flags struct {
	configPath string
	addr       string
	dsn        string
	jwtKey     string
	dev        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:          "circ-server",
		Short:        "Library circulation and access control API",
		Version:      fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN (overrides config)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serve.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	serve.Flags().StringVar(&f.jwtKey, "jwt-key", "", "HS256 signing key (overrides config)")
	serve.Flags().BoolVar(&f.dev, "dev", false, "development logging")

	mig := &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrate.CmdUp, migrate.CmdDown, migrate.CmdStatus, migrate.CmdVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return migrate.Run(cmd.Context(), cfg.Database.DSN, args[0])
		},
	}

	root.AddCommand(serve, mig)
	return root
}

// loadConfig resolves defaults -> file -> env, then applies explicitly set flags.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("dsn") {
		cfg.Database.DSN = f.dsn
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTP.Addr = f.addr
	}
	if cmd.Flags().Changed("jwt-key") {
		cfg.Auth.JWTKey = f.jwtKey
	}
	if cmd.Flags().Changed("dev") {
		cfg.Log.Dev = f.dev
	}
	return cfg, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runServe wires storage, services and transport, then blocks until SIGINT/SIGTERM.
func runServe(parent context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg.Log.Dev)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr),
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
			logger.Error("migrate up", zap.Error(err))
			return err
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("open pool", zap.Error(err))
		return err
	}
	defer db.Close()

	// Repositories
	users := postgres.NewUserRepo(db)
	books := postgres.NewBookRepo(db)
	loans := postgres.NewLoanRepo(db)
	reservations := postgres.NewReservationRepo(db)
	catalog := postgres.NewCatalogRepo(db)

	var lim limiter.Limiter = limiter.Nop{}
	if cfg.Limiter.MaxFails > 0 {
		lim = limiter.NewPG(db.Pool, cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	tokens, err := token.NewManager([]byte(cfg.Auth.JWTKey), cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.AccessTTL)
	if err != nil {
		return err
	}
	gate := authz.NewGate(users)
	bookLedger := ledger.New(books)

	// Services
	authSvc := service.NewAuthService(users, db, tokens, cfg.Auth.RefreshTTL, lim, logger.Named("auth"), met)
	loanSvc := service.NewLoanService(db, loans, users, bookLedger, gate, logger.Named("loans"), met)
	resSvc := service.NewReservationService(db, reservations, users, books, gate, logger.Named("reservations"), met)
	catalogSvc := service.NewCatalogService(books, catalog, gate)
	userSvc := service.NewUserService(users, gate, logger.Named("users"))

	api := httpserver.New(httpserver.Deps{
		Auth:           authSvc,
		Users:          userSvc,
		Catalog:        catalogSvc,
		Loans:          loanSvc,
		Reservations:   resSvc,
		Tokens:         tokens,
		Log:            logger.Named("http"),
		Metrics:        met,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health:         db.Ping,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.HTTP.TLSCert != "" {
			logger.Info("listening (TLS)", zap.String("addr", cfg.HTTP.Addr))
			errCh <- srv.ListenAndServeTLS(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
			return
		}
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	logger.Info("shutdown complete")
	return nil
}
