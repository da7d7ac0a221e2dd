package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/garrettjsmith/localpresence/internal/adapters/database"
	"github.com/garrettjsmith/localpresence/internal/adapters/providers/reviews"
	"github.com/garrettjsmith/localpresence/internal/adapters/search"
	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/typesense"
	"github.com/garrettjsmith/localpresence/pkg/config"
)

func main() {
	var sourceList string
	var maxSources int

	flag.StringVar(&sourceList, "sources", "", "Comma-separated source IDs to backfill (default: all pending)")
	flag.IntVar(&maxSources, "max-sources", 0, "Cap on the number of pending sources to walk")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	// Setup repos
	reviewRepo := database.NewReviewAdapter(pgClient)
	sourceRepo := database.NewReviewSourceAdapter(pgClient)
	integrationRepo := database.NewIntegrationAdapter(pgClient)

	// A backfill replays history, so alerts and autopilot stay off; the
	// search index is still kept in step when Typesense is reachable.
	var searchIndex providers.ReviewSearchRepository
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Printf("Warning: Typesense unavailable, skipping indexing: %v", err)
	} else {
		adapter := search.NewReviewIndexAdapter(tsClient)
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}
		searchIndex = adapter
	}

	platformFactory := reviews.NewPlatformFactory(reviews.PlatformFactoryConfig{
		GoogleAccessToken: cfg.Google.AccessToken,
		GoogleAPIBaseURL:  cfg.Google.APIBaseURL,
		AllowMockFallback: cfg.Google.AccessToken == "",
	})

	svc := services.NewReviewSyncService(
		sourceRepo,
		integrationRepo,
		reviewRepo,
		platformFactory,
		nil,
		nil,
		searchIndex,
		nil,
		services.SyncConfig{
			SourceBatchSize: cfg.Sync.SourceBatchSize,
			SyncPageSize:    cfg.Sync.SyncPageSize,
			WebhookPageSize: cfg.Sync.WebhookPageSize,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sourceIDs []string
	if sourceList != "" {
		for _, id := range strings.Split(sourceList, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				sourceIDs = append(sourceIDs, trimmed)
			}
		}
	}

	start := time.Now()
	log.Printf("Starting backfill (sources=%d, max=%d)...", len(sourceIDs), maxSources)

	summary, err := svc.Backfill(ctx, sourceIDs, maxSources)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	log.Printf("Backfill complete in %s", time.Since(start))
	log.Printf("Sources walked: %d", len(summary.Sources))
	log.Printf("Reviews fetched: %d", summary.TotalFetched)
	log.Printf("Reviews new or changed: %d", summary.TotalNew)
	for _, source := range summary.Sources {
		if source.Error != "" {
			log.Printf("Source %s failed: %s", source.SourceID, source.Error)
		}
	}
}
