package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/booking"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/catalog"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/config"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/db"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/mq"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/notification"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/obs"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/payment"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/server"
)

// @title HandShake Booking API
// @version 1.0
// @description Instant booking between clients and masters.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting booking service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to load booking time zone", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, "handshake-booking", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("Failed to init tracing", "error", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.RabbitMQURL, cfg.NotifyExchange)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer publisher.Close()

	notifications := notification.New(rdb, publisher, cfg.NotifyRPS)
	go notifications.Start(ctx)

	catalogRepo := catalog.NewRepository(database)
	ledger := payment.NewRepository(database)
	gateway := payment.NewGateway(payment.NewStripeProvider(cfg.StripeSecretKey), ledger, catalogRepo, cfg.Currency)

	policy := booking.DefaultPolicy(loc)
	policy.PendingTTL = cfg.PendingTTL
	bookings := booking.NewService(booking.NewRepository(database), catalogRepo, gateway, notifications, policy)

	srv := server.New(cfg, server.Deps{
		DB:       database,
		Redis:    rdb,
		Bookings: bookings,
		Ledger:   ledger,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		logger.Error("Server error", "error", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", "error", err)
	}

	logger.Info("Server stopped")
}
