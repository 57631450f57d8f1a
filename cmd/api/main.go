package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/safar/petalstore/internal/auth"
	"github.com/safar/petalstore/internal/checkout"
	"github.com/safar/petalstore/internal/config"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/events"
	"github.com/safar/petalstore/internal/httpapi"
	"github.com/safar/petalstore/internal/logging"
	"github.com/safar/petalstore/internal/models"
	"github.com/safar/petalstore/internal/orders"
	"github.com/safar/petalstore/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	logger.Info("connected to database")

	publisher, closePublisher := newPublisher(ctx, cfg.Redis, logger)
	defer closePublisher()

	repo := store.NewPostgres(db, logger)
	svc := orders.NewService(repo, publisher, logger, orders.Config{
		Pricing: models.PricingRules{
			ShippingFee:     cfg.Store.ShippingFee,
			FreeShippingMin: cfg.Store.FreeShippingMin,
		},
		Checkout: checkout.OptionsFromConfig(cfg.Store),
		Timeout:  cfg.Server.RequestTimeout,
	})

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Orders:   svc,
		Catalog:  repo,
		Profiles: repo,
		Verifier: auth.NewVerifier(cfg.Auth),
		Roles:    repo,
		Limiter:  httpapi.NewRateLimiter(cfg.RateLimit.TrackPerMinute, cfg.RateLimit.TrackBurst),
		Logger:   logger,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// newPublisher returns a Redis-backed publisher when REDIS_URL is set. A Redis
// outage at startup degrades to no events rather than failing the API.
func newPublisher(ctx context.Context, cfg config.RedisConfig, logger logrus.FieldLogger) (events.Publisher, func()) {
	if cfg.URL == "" {
		return events.NopPublisher{}, func() {}
	}

	client, err := events.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, order events disabled")
		return events.NopPublisher{}, func() {}
	}

	pub := events.NewRedisPublisher(client, cfg.EventsChannel, logger)
	return pub, func() {
		pub.Close()
		client.Close()
	}
}
