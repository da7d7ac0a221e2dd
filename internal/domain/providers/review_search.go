package providers

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// ReviewSearchRepository indexes reviews for dashboard search.
type ReviewSearchRepository interface {
	InitSchema(ctx context.Context) error
	Index(ctx context.Context, review *entities.Review) error
}
