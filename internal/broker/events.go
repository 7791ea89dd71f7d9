package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing listing lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishListingPublished publishes a ListingPublished event
func (ep *EventPublisher) PublishListingPublished(ctx context.Context, event *models.ListingPublishedEvent) error {
	return ep.producer.PublishEvent(ctx, itemKey(event.InventoryItemID), event)
}

// PublishListingRemoved publishes a ListingRemoved event
func (ep *EventPublisher) PublishListingRemoved(ctx context.Context, event *models.ListingRemovedEvent) error {
	return ep.producer.PublishEvent(ctx, itemKey(event.InventoryItemID), event)
}

// PublishItemSold publishes an ItemSold event
func (ep *EventPublisher) PublishItemSold(ctx context.Context, event *models.ItemSoldEvent) error {
	return ep.producer.PublishEvent(ctx, itemKey(event.InventoryItemID), event)
}

// PublishCrosslistCompleted publishes a CrosslistCompleted event
func (ep *EventPublisher) PublishCrosslistCompleted(ctx context.Context, event *models.CrosslistCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, itemKey(event.InventoryItemID), event)
}

// itemKey partitions all events for one item onto the same key, keeping
// their relative order in the topic
func itemKey(inventoryItemID string) string {
	return fmt.Sprintf("item-%s", inventoryItemID)
}

// EventHandler routes incoming listing events to registered handlers
type EventHandler struct {
	onListingPublished func(context.Context, *models.ListingPublishedEvent) error
	onListingRemoved   func(context.Context, *models.ListingRemovedEvent) error
	onItemSold         func(context.Context, *models.ItemSoldEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnListingPublished registers a handler for ListingPublished events
func (eh *EventHandler) OnListingPublished(handler func(context.Context, *models.ListingPublishedEvent) error) {
	eh.onListingPublished = handler
}

// OnListingRemoved registers a handler for ListingRemoved events
func (eh *EventHandler) OnListingRemoved(handler func(context.Context, *models.ListingRemovedEvent) error) {
	eh.onListingRemoved = handler
}

// OnItemSold registers a handler for ItemSold events
func (eh *EventHandler) OnItemSold(handler func(context.Context, *models.ItemSoldEvent) error) {
	eh.onItemSold = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeListingPublished:
		if eh.onListingPublished != nil {
			var event models.ListingPublishedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ListingPublished event: %w", err)
			}
			return eh.onListingPublished(ctx, &event)
		}

	case models.EventTypeListingRemoved:
		if eh.onListingRemoved != nil {
			var event models.ListingRemovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ListingRemoved event: %w", err)
			}
			return eh.onListingRemoved(ctx, &event)
		}

	case models.EventTypeItemSold:
		if eh.onItemSold != nil {
			var event models.ItemSoldEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ItemSold event: %w", err)
			}
			return eh.onItemSold(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
