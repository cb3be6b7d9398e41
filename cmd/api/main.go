package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-stream/internal/api/http"
	"github.com/spec-kit/support-stream/internal/api/http/handlers"
	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/config"
	"github.com/spec-kit/support-stream/internal/observability"
	"github.com/spec-kit/support-stream/internal/persistence"
	"github.com/spec-kit/support-stream/internal/repository"
	"github.com/spec-kit/support-stream/internal/sequence"
	"github.com/spec-kit/support-stream/internal/service"
	"github.com/spec-kit/support-stream/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	presence := persistence.NewPresenceStore(redis, cfg.Stream.PresenceTTL(), logger)

	metrics := observability.NewMetrics()
	registry := stream.NewRegistry(logger)
	dispatcher := stream.NewDispatcher(registry, metrics, logger)
	heartbeat := stream.NewHeartbeat(dispatcher, registry, presence, cfg.Stream.HeartbeatInterval(), logger)
	go heartbeat.Run(ctx)

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	var counters sequence.CounterStore = repository.NewSequenceRepository(pool)
	if pool == nil {
		logger.Warn("no postgres pool; ticket numbers will not survive restarts")
		counters = sequence.NewMemoryStore()
	}
	generator := sequence.NewGenerator(counters, cfg.Sequence.LockTimeout(), logger)

	authService := service.NewAuthService(cfg.Auth, accountRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		HistoryRepo:  historyRepo,
		AccountRepo:  accountRepo,
		Policy:       auth.NewPolicy(),
		Sequences:    generator,
		Dispatcher:   dispatcher,
		Logger:       logger,
		TicketPrefix: cfg.Sequence.TicketPrefix,
	})

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Stream:         handlers.NewStreamHandler(registry, dispatcher, presence, cfg.Stream.ChannelBufferSize, logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
