package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"github.com/gin-gonic/gin"
	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/internal/api"
	"github.com/illmade-knight/random-user/internal/clients"
	"github.com/illmade-knight/random-user/internal/config"
	"github.com/illmade-knight/random-user/internal/messaging"
	"github.com/illmade-knight/random-user/internal/metrics"
	"github.com/illmade-knight/random-user/internal/render"
	firestorestorage "github.com/illmade-knight/random-user/internal/storage/firestore"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	renderTerminal := flag.Bool("render", false, "print the active tab to stderr on every state change")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.Level(cfg.Level())

	// 2. Choose the list store: Firestore when a project is configured, memory otherwise
	var store users.Store = users.NewInMemoryStore()
	if cfg.GCPProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		defer fsClient.Close()
		store = firestorestorage.NewUserStore(fsClient, cfg.FirestoreCollection)
		logger.Info().Str("collection", cfg.FirestoreCollection).Msg("Firestore user store initialized")
	}

	// 3. Instantiate the upstream client and the application
	userClient := clients.NewRandomUserClient(cfg.BaseURL, cfg.Seed, cfg.HTTPTimeout, logger)
	collector := metrics.NewCollector()
	application := app.New(userClient, store, logger, app.Options{
		ResultsPerPage: cfg.ResultsPerPage,
		Metrics:        collector,
	})

	// 4. Optional event forwarding and terminal output
	if cfg.PubsubTopicID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Pub/Sub client")
		}
		defer psClient.Close()
		publisher := messaging.NewEventPublisher(psClient, cfg.PubsubTopicID, logger)
		defer publisher.Stop()
		application.Subscribe(publisher.Forward(ctx))
		logger.Info().Str("topic", cfg.PubsubTopicID).Msg("Forwarding events to Pub/Sub")
	}
	if *renderTerminal {
		renderer := render.New()
		application.Subscribe(func(ev app.Event) {
			if ev.Type == app.EventLoading {
				return
			}
			if err := renderer.Render(os.Stderr, ev.State); err != nil {
				logger.Warn().Err(err).Msg("Failed to render state")
			}
		})
	}

	// 5. Start the HTTP API
	if cfg.Level() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(application, collector.Handler(), logger)
	if err := server.Start(cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("Failed to start HTTP API")
	}

	// 6. Load the first page
	if err := application.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial refresh failed; the list stays empty until the next refresh")
	}

	logger.Info().Msg("Random user service running. Waiting for shutdown signal...")
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received. Exiting.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP API shutdown failed")
	}
}
