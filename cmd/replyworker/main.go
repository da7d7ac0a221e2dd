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
	"github.com/garrettjsmith/localpresence/internal/adapters/events"
	"github.com/garrettjsmith/localpresence/internal/adapters/providers/reviews"
	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/redis"
	"github.com/garrettjsmith/localpresence/pkg/config"
)

func main() {
	var intervalFlag string
	var once bool
	flag.StringVar(&intervalFlag, "interval", "", "poll interval for due queue items (e.g. 1m, 30s)")
	flag.BoolVar(&once, "once", false, "drain the due items once and exit")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REPLY_WORKER_INTERVAL"))
	}
	interval := time.Minute
	if intervalValue != "" {
		parsed, err := time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if parsed <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
		interval = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	var eventBus providers.EventBus
	if redisClient, err := redis.NewClient(&cfg.Redis); err != nil {
		log.Printf("Warning: Redis unavailable, reply events disabled: %v", err)
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	platformFactory := reviews.NewPlatformFactory(reviews.PlatformFactoryConfig{
		GoogleAccessToken: cfg.Google.AccessToken,
		GoogleAPIBaseURL:  cfg.Google.APIBaseURL,
		AllowMockFallback: cfg.Google.AccessToken == "",
	})

	svc := services.NewReplyQueueService(
		database.NewReplyQueueAdapter(pgClient),
		database.NewReviewAdapter(pgClient),
		platformFactory,
		eventBus,
		cfg.Sync.ReplyMaxAttempts,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		summary, err := svc.ProcessDue(ctx)
		if err != nil {
			log.Printf("Queue run failed: %v", err)
		} else if summary.Processed > 0 {
			log.Printf("Queue run: processed=%d sent=%d rescheduled=%d failed=%d",
				summary.Processed, summary.Sent, summary.Rescheduled, summary.Failed)
		}

		if once {
			return
		}

		select {
		case <-ctx.Done():
			log.Println("Reply worker shutting down")
			return
		case <-time.After(interval):
		}
	}
}
