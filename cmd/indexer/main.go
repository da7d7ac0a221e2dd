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
	"github.com/garrettjsmith/localpresence/internal/adapters/search"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/typesense"
	"github.com/garrettjsmith/localpresence/pkg/config"
)

const indexPageSize = 500

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	reviewRepo := database.NewReviewAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Println("Deleting reviews collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.ReviewsCollection).Delete(ctx); err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	index := search.NewReviewIndexAdapter(tsClient)
	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	indexed := 0
	for offset := 0; ; offset += indexPageSize {
		reviews, err := reviewRepo.List(ctx, repositories.ReviewFilter{
			Limit:  indexPageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			break
		}

		for _, review := range reviews {
			if review == nil {
				continue
			}
			if err := index.Index(ctx, review); err != nil {
				log.Printf("Warning: failed to index review %s: %v", review.ID, err)
				continue
			}
			indexed++
		}

		if len(reviews) < indexPageSize {
			break
		}
	}

	log.Printf("Indexed %d reviews", indexed)
	return nil
}
