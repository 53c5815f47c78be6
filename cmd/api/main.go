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

	"golang.org/x/sync/errgroup"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	"github.com/Bahdan321/Study-Practice-3-course/internal/database"
	"github.com/Bahdan321/Study-Practice-3-course/internal/events"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/rates"
	"github.com/Bahdan321/Study-Practice-3-course/internal/server"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
	"github.com/Bahdan321/Study-Practice-3-course/internal/validator"
)

// @title           FinTrack API
// @version         1.0
// @description     FinTrack is a personal finance tracker: accounts, categories and an income/expense ledger.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()
	if err := database.Seed(db); err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if appConfig.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		publisher = amqpPublisher
	} else {
		log.Info("AMQP_URL not set, ledger events are disabled")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("failed to close event publisher: %v", err)
		}
	}()

	converter := rates.NewForexConverter(&http.Client{Timeout: 10 * time.Second}, appConfig.RatesBaseURL, appConfig.RatesTTL)

	svc := server.NewServices(db, appConfig.SessionTTL, publisher, converter)
	router := server.NewRouter(svc, appConfig.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Starting FinTrack server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		purgeSessions(gctx, svc.Sessions, appConfig.SessionCleanupInterval)
		return nil
	})

	return g.Wait()
}

// purgeSessions deletes expired sessions every interval until ctx is done.
func purgeSessions(ctx context.Context, sessions services.SessionServicer, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log := logger.Named("sessions")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpiredSessions()
			if err != nil {
				log.Errorw("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("purged expired sessions", "count", n)
			}
		}
	}
}
