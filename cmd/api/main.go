package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sms-desk/internal/api/http"
	"github.com/spec-kit/sms-desk/internal/api/http/handlers"
	"github.com/spec-kit/sms-desk/internal/config"
	"github.com/spec-kit/sms-desk/internal/events"
	"github.com/spec-kit/sms-desk/internal/gateway"
	"github.com/spec-kit/sms-desk/internal/observability"
	"github.com/spec-kit/sms-desk/internal/persistence"
	"github.com/spec-kit/sms-desk/internal/repository"
	"github.com/spec-kit/sms-desk/internal/service"
	"github.com/spec-kit/sms-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	var sender gateway.Sender
	if cfg.Gateway.APIKey != "" {
		sender = gateway.NewRESTClient(cfg.Gateway)
	} else {
		logger.Warn("SMS_GATEWAY_API_KEY not provided; outbound SMS will be logged only")
		sender = gateway.NewNopSender(logger)
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Sender:      sender,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	engine := html.New("./views", ".html")
	app := fiber.New(fiber.Config{Views: engine})
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhook:   handlers.NewWebhookHandler(ticketService, redis, logger),
		Dashboard: handlers.NewDashboardHandler(ticketService, logger),
		Tickets:   handlers.NewTicketsHandler(ticketService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
