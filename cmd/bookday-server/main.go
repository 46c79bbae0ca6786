package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"bookday/backend/internal/config"
	"bookday/backend/internal/service/booking"
	"bookday/backend/internal/store/postgres"
	"bookday/backend/internal/store/postgres/migrations"
	httptransport "bookday/backend/internal/transport/http"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookday-server",
		Short: "Appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger("info", false)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{})
			if err != nil {
				return err
			}
			defer func() { _ = postgres.Close(db) }()

			migrator := migrate.NewMigrator(db, migrations.Migrations)
			if err := migrator.Init(ctx); err != nil {
				return err
			}
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Info().Msg("database is up to date")
				return nil
			}
			log.Info().Str("group", group.String()).Msg("migrations applied")
			return nil
		},
	}
}

func runServer() error {
	log := newLogger("info", os.Getenv("ENV") == "development")

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		return err
	}
	log = newLogger(cfg.LogLevel, cfg.IsDev()).With().Str("service", "bookday-server").Logger()

	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("log_level", cfg.LogLevel).
		Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logDatabaseTarget(log, cfg.DatabaseURL)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}()

	repo := postgres.NewAppointmentRepo(db)
	svc := booking.NewService(repo, cfg.Availability)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httptransport.Recovery(log))
	e.Use(httptransport.RequestID())
	e.Use(httptransport.Logger(log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("", httptransport.Identity(cfg.AuthSecret, cfg.IsDev()))
	httptransport.NewAppointmentsHandler(svc, log).Register(api)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	log.Info().Str("http_addr", cfg.HTTPAddr).Msg("http server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdown(log, e, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped with error")
			return err
		}
	}
	return nil
}

func shutdown(log zerolog.Logger, e *echo.Echo, timeout time.Duration) {
	log.Info().Dur("timeout", timeout).Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http graceful shutdown failed; forcing close")
		_ = e.Close()
		return
	}
	log.Info().Msg("http server stopped")
}

func newLogger(level string, dev bool) zerolog.Logger {
	lvl := parseLogLevel(level)
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func logDatabaseTarget(log zerolog.Logger, databaseURL string) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		log.Info().Str("db_url", "invalid").Msg("connecting to database")
		return
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	log.Info().
		Str("db_host", host).
		Str("db_port", port).
		Str("db_name", name).
		Msg("connecting to database")
}
