package typesense

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/garrettjsmith/localpresence/pkg/config"
	"github.com/garrettjsmith/localpresence/pkg/retry"
)

const (
	ReviewsCollection = "reviews"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Printf("Typesense connection attempt %d failed: %v. Retrying in %v...", attempt, err, nextDelay)
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Println("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the reviews collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == ReviewsCollection {
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: ReviewsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "location_id", Type: "string", Facet: pointer.True()},
			{Name: "org_id", Type: "string", Facet: pointer.True()},
			{Name: "platform", Type: "string", Facet: pointer.True()},
			{Name: "reviewer_name", Type: "string"},
			{Name: "body", Type: "string"},
			{Name: "rating", Type: "int32", Optional: pointer.True(), Facet: pointer.True()},
			{Name: "sentiment", Type: "string", Optional: pointer.True(), Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "has_reply", Type: "bool"},
			{Name: "published_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("published_at"),
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Println("Created Typesense collection 'reviews'")
	return nil
}

// IndexReview indexes a review document
func (c *Client) IndexReview(ctx context.Context, document map[string]interface{}) error {
	_, err := c.client.Collection(ReviewsCollection).Documents().Upsert(ctx, document)
	return err
}
