package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"turfslot/internal/api"
	"turfslot/internal/catalog"
	"turfslot/internal/config"
	"turfslot/internal/database"
	"turfslot/internal/events"
	"turfslot/internal/metrics"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Str("service", "turfslot-server").Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("TURFSLOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(cfg.LogLevel())

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := catalog.NewStore(nil)
	if err := config.WatchTurfs(ctx, &logger, cfg.Catalog.Path, cfg.CatalogReloadInterval(), store.ApplyConfig); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("failed to load turf catalog")
	}
	logger.Info().Int("turfs", store.Len()).Msg("turf catalog loaded")

	bus := events.NewEventBus(&logger)
	subscribeAuditLog(bus, &logger)

	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	perSecond, burst := cfg.SubmitLimit()
	srv := api.NewHTTPServer(api.Options{
		Address:         cfg.Server.Address,
		APIKeys:         cfg.Server.APIKeys,
		ReadTimeout:     cfg.ReadTimeout(),
		MaxAdvance:      cfg.BookingMaxAdvance(),
		SubmitPerSecond: perSecond,
		SubmitBurst:     burst,
	}, db, store, bus, &logger)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
	logger.Info().Msg("API server stopped")
}

func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	audit := func(_ context.Context, e events.Event) error {
		logger.Info().
			Str("event", e.Type).
			Int64("booking_id", e.Booking.ID).
			Str("reference", e.Booking.Reference).
			Int64("user_id", e.Booking.UserID).
			Int64("turf_id", e.Booking.TurfID).
			Int64("sport_id", e.Booking.SportID).
			Str("date", e.Booking.Date).
			Str("range", e.Booking.StartTime+"-"+e.Booking.EndTime).
			Msg("booking event")
		return nil
	}
	bus.Subscribe(events.TypeBookingCreated, audit)
	bus.Subscribe(events.TypeBookingCancelled, audit)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
