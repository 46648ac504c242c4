package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wrenchway/backend/internal/config"
	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/events"
	"github.com/wrenchway/backend/internal/geocode"
	httpapi "github.com/wrenchway/backend/internal/http"
	"github.com/wrenchway/backend/internal/service"
	"github.com/wrenchway/backend/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "dispatch-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var source upstream.Client
	if cfg.UpstreamURL == "" {
		source = upstream.MockClient{}
		logger.Info().Msg("using mock upstream appointments source")
	} else {
		source = upstream.HTTPClient{BaseURL: cfg.UpstreamURL, Timeout: cfg.UpstreamTimeout}
	}

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.New(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect message broker")
		}
		defer publisher.Close()
	} else {
		logger.Info().Msg("event publishing disabled")
	}

	var geocoder geocode.Geocoder
	if cfg.GeocodeURL != "" {
		geocoder = &geocode.NominatimGeocoder{BaseURL: cfg.GeocodeURL}
	}

	scheduler := cron.New()
	if cfg.SyncSchedule != "" {
		syncer := &service.SyncService{Store: store, Upstream: source, Validate: validator.New(), Logger: logger}
		_, err := scheduler.AddFunc(cfg.SyncSchedule, func() {
			runCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
			defer cancel()
			if _, err := syncer.Sync(runCtx, false); err != nil {
				logger.Error().Err(err).Msg("scheduled sync failed")
			}
		})
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("invalid sync schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info().Str("schedule", cfg.SyncSchedule).Msg("background sync scheduled")
	}

	router := httpapi.Router(cfg, store, source, publisher, geocoder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
