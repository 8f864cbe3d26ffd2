package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/gigportal/bid-service/internal/adapters/api"
	infradb "github.com/gigportal/bid-service/internal/adapters/database"
	infraevents "github.com/gigportal/bid-service/internal/adapters/events"
	"github.com/gigportal/bid-service/internal/adapters/projects"
	"github.com/gigportal/bid-service/internal/config"
	"github.com/gigportal/bid-service/internal/domain/bids"
	"github.com/gigportal/bid-service/pkg/auth"
	pkgdb "github.com/gigportal/bid-service/pkg/database"
	pkgevents "github.com/gigportal/bid-service/pkg/events"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Missing configuration is a process-level fault, surfaced here once and
	// never downgraded to a per-request client error.
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Initialize RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := infraevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 3. Initialize Project Service Client (with optional Redis cache)
	var projectClient bids.ProjectClient = projects.NewClient(cfg.ProjectServiceURL, cfg.ProjectTimeout)
	if cfg.RedisURL != "" {
		rdb, err := projects.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, project cache disabled", "error", err)
		} else {
			projectClient = projects.NewCachedClient(projectClient, rdb, logger)
			logger.Info("Redis Connected")
		}
	}

	// 4. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	bidRepo := infradb.NewPostgresBidRepository(pool)
	outboxRepo := infradb.NewPostgresOutboxRepository(pool)

	// 5. Initialize Service (Domain Layer)
	bidService := bids.NewService(txManager, bidRepo, outboxRepo, projectClient)

	// 6. Initialize Auth and API Handler
	signer, err := auth.NewSignerFromPublicKey(cfg.JWTPublicKey, "gigportal")
	if err != nil {
		logger.Error("Failed to load JWT public key", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	api.NewBidHandler(e, bidService, bidRepo, auth.Middleware(signer))

	// 7. Outbox Relay alongside the server
	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,                   // batch size
		1*time.Second,        // interval
		infraevents.Exchange, // exchange
		logger,
	)

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h2c.NewHandler(e, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Bid Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
