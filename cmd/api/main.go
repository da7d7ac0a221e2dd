package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/garrettjsmith/localpresence/internal/adapters/cache"
	"github.com/garrettjsmith/localpresence/internal/adapters/database"
	"github.com/garrettjsmith/localpresence/internal/adapters/events"
	"github.com/garrettjsmith/localpresence/internal/adapters/providers/reviews"
	"github.com/garrettjsmith/localpresence/internal/adapters/search"
	"github.com/garrettjsmith/localpresence/internal/api/handlers"
	"github.com/garrettjsmith/localpresence/internal/api/routes"
	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/openai"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/redis"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/typesense"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/notifications"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/observability"
	"github.com/garrettjsmith/localpresence/pkg/config"
	"github.com/garrettjsmith/localpresence/pkg/secrets"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pull bootstrap secrets into the environment before reading config
	vaultCfg := secrets.LoadVaultConfigFromEnv("")
	if result, err := secrets.ApplyVaultSecrets(ctx, vaultCfg); err != nil {
		log.Printf("Warning: Vault bootstrap failed: %v", err)
	} else if result.Enabled {
		log.Printf("Vault bootstrap loaded %d secrets from %s", result.Loaded, result.Path)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	env := os.Getenv("ENV")
	if env == "" {
		env = "production"
	}
	observability.InitLogger(cfg.OTEL.ServiceName, env)

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - sync dedupe and the event stream degrade gracefully
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
		typesenseClient = nil
	} else {
		log.Println("Typesense client initialized successfully")
	}

	// Initialize adapters
	reviewAdapter := database.NewReviewAdapter(pgClient)
	sourceAdapter := database.NewReviewSourceAdapter(pgClient)
	integrationAdapter := database.NewIntegrationAdapter(pgClient)
	locationAdapter := database.NewLocationAdapter(pgClient)
	alertRuleAdapter := database.NewAlertRuleAdapter(pgClient)
	autopilotConfigAdapter := database.NewAutopilotConfigAdapter(pgClient)
	replyQueueAdapter := database.NewReplyQueueAdapter(pgClient)
	apiKeyAdapter := database.NewAPIKeyAdapter(pgClient)

	var searchIndex providers.ReviewSearchRepository
	if typesenseClient != nil {
		adapter := search.NewReviewIndexAdapter(typesenseClient)
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}
		searchIndex = adapter
	}

	// Initialize event bus for the dashboard stream
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	var emailSender providers.EmailSender
	sender, err := notifications.NewResendEmailSender(&cfg.Email)
	if err != nil {
		log.Printf("Warning: alert emails disabled: %v", err)
	} else {
		emailSender = sender
	}

	var replyGenerator providers.ReplyGenerator
	if cfg.OpenAI.APIKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set; autopilot drafting disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Printf("Warning: Failed to initialize OpenAI client: %v", err)
		} else {
			replyGenerator = openaiClient
		}
	}

	if cfg.Google.AccessToken == "" {
		log.Println("Warning: GOOGLE_REVIEWS_ACCESS_TOKEN is not set; using mock review platforms")
	}
	platformFactory := reviews.NewPlatformFactory(reviews.PlatformFactoryConfig{
		GoogleAccessToken: cfg.Google.AccessToken,
		GoogleAPIBaseURL:  cfg.Google.APIBaseURL,
		AllowMockFallback: cfg.Google.AccessToken == "",
	})

	// Initialize services
	alertService := services.NewAlertService(alertRuleAdapter, locationAdapter, emailSender)

	var autopilotService *services.AutopilotService
	if replyGenerator != nil {
		autopilotService = services.NewAutopilotService(
			autopilotConfigAdapter,
			locationAdapter,
			reviewAdapter,
			replyQueueAdapter,
			replyGenerator,
			cfg.Sync.AutopilotDraftCap,
		)
	}

	syncService := services.NewReviewSyncService(
		sourceAdapter,
		integrationAdapter,
		reviewAdapter,
		platformFactory,
		alertService,
		autopilotService,
		searchIndex,
		eventBus,
		services.SyncConfig{
			SourceBatchSize: cfg.Sync.SourceBatchSize,
			SyncPageSize:    cfg.Sync.SyncPageSize,
			WebhookPageSize: cfg.Sync.WebhookPageSize,
		},
	)

	replyService := services.NewReplyService(reviewAdapter, replyQueueAdapter, platformFactory, eventBus)

	// Initialize handlers
	var guard handlers.IdempotencyGuard
	if redisClient != nil {
		guard = cache.NewRedisIdempotencyGuard(redisClient)
	}
	syncHandler := handlers.NewSyncHandler(syncService, guard, metrics)
	reviewHandler := handlers.NewReviewHandler(replyService, metrics)

	sqlxDB := sqlx.NewDb(pgClient.DB(), "postgres")
	webhookHandler := handlers.NewGoogleWebhookHandler(sqlxDB, syncService)

	var eventsHandler *handlers.EventsHandler
	if eventBus != nil {
		eventsHandler = handlers.NewEventsHandler(eventBus)
	}

	// Set up router
	router := routes.NewRouter(
		syncHandler,
		reviewHandler,
		webhookHandler,
		eventsHandler,
		cfg.Server.CronSecret,
		apiKeyAdapter,
		metrics,
	)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write deadline: /api/events holds SSE connections open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Server stopped")
}
