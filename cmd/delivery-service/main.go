package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/catalog"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/db"
	"delivery-marketplace/internal/driver"
	"delivery-marketplace/internal/earnings"
	"delivery-marketplace/internal/handler"
	"delivery-marketplace/internal/notify"
	"delivery-marketplace/internal/order"
	"delivery-marketplace/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "delivery-service").Logger()

	log.Info().Msg("Delivery service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Rabbit.URL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("Connected to RabbitMQ")
	}

	catalogStore := catalog.NewStore(dbConn.Pool)
	driverRepo := driver.NewRepository(dbConn.Pool)
	driverSvc := driver.NewService(driverRepo)

	orderRepo := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepo, catalogStore, driverRepo, notifier, earnings.Rates{
		DriverRate:     cfg.Commission.DriverRate,
		RestaurantRate: cfg.Commission.RestaurantRate,
	})

	orderHandler := handler.NewOrderHandler(orderSvc)
	driverHandler := handler.NewDriverHandler(driverSvc)
	earningsHandler := handler.NewEarningsHandler(earnings.NewRepository(dbConn.Pool))

	router := transport.NewRouter(orderHandler, driverHandler, earningsHandler, []byte(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
