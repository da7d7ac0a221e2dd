package providers

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// ReviewEventsChannel is the bus channel dashboard consumers subscribe to.
const ReviewEventsChannel = "review-events"

// EventBus publishes review lifecycle events to interested consumers.
type EventBus interface {
	Publish(ctx context.Context, channel string, event *entities.ReviewEvent) error
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ReviewEvent, error)
	Close() error
}
