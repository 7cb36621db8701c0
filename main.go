package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"visitor-booking/cmd"
	"visitor-booking/internal/data/repository"
	"visitor-booking/internal/usecase"
	"visitor-booking/internal/wire"
	"visitor-booking/pkg/database"
	"visitor-booking/pkg/events"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/notify"
	"visitor-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Name, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("timezone", config.App.Timezone),
		zap.Bool("debug", config.App.Debug),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)
	m := metrics.New("visitor_booking")

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if config.Email.MailerSendKey != "" {
		ms, err := notify.NewMailerSendNotifier(config.Email.MailerSendKey, config.Email.FromName, config.Email.From)
		if err != nil {
			logger.Fatal("Failed to init MailerSend notifier", zap.Error(err))
		}
		notifier = ms
		logger.Info("Confirmation emails enabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if config.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(config.NATS.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		publisher = nc
		logger.Info("Domain events enabled", zap.String("nats_url", config.NATS.URL))
	}

	effects := usecase.NewSideEffects(usecase.SideEffectsConfig{
		Workers:   config.SideEffect.Workers,
		QueueSize: config.SideEffect.QueueSize,
		Timeout:   config.SideEffect.Timeout,
	}, repos.AuditLog, notifier, publisher, m, logger)

	service := usecase.NewService(repos, effects, m, logger,
		usecase.WithLocation(config.App.Location()),
		usecase.WithExpiryInterval(config.Scheduler.ExpiryInterval),
	)

	app := wire.Wiring(service, repos, m, config, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cmd.APIServer(gctx, app.Router, config.App.Port, logger)
	})
	g.Go(func() error {
		return service.Expiry.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
	}

	// queued audits and notifications still need the pool and the publisher
	effects.Close()
	if err := publisher.Close(); err != nil {
		logger.Warn("Failed to close event publisher", zap.Error(err))
	}

	logger.Info("Application stopped")
}
