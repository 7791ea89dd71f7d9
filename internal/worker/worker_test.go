package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"
)

type fakeProcessedEventStore struct {
	seen map[string]string
}

func newFakeProcessedEventStore() *fakeProcessedEventStore {
	return &fakeProcessedEventStore{seen: map[string]string{}}
}

func (s *fakeProcessedEventStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *fakeProcessedEventStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	s.seen[eventID] = eventType
	return nil
}

func soldMessage(t *testing.T, eventID string) kafka.Message {
	t.Helper()
	event := models.ItemSoldEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeItemSold,
			Timestamp: time.Now(),
		},
		InventoryItemID:      "item-1",
		Marketplace:          "mercari",
		MarketplaceListingID: "mercari-777",
		AutoDelisted:         true,
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("item-item-1"), Value: value}
}

func TestAuditWorkerProcessesEventOnce(t *testing.T) {
	store := newFakeProcessedEventStore()
	w := NewAuditWorker(nil, store)

	ctx := context.Background()
	msg := soldMessage(t, "evt-1")

	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	assert.Equal(t, models.EventTypeItemSold, store.seen["evt-1"])

	// Redelivery of the same event id is absorbed without error.
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	assert.Len(t, store.seen, 1)
}

func TestAuditWorkerDistinctEvents(t *testing.T) {
	store := newFakeProcessedEventStore()
	w := NewAuditWorker(nil, store)

	ctx := context.Background()
	require.NoError(t, w.eventHandler.HandleMessage(ctx, soldMessage(t, "evt-1")))
	require.NoError(t, w.eventHandler.HandleMessage(ctx, soldMessage(t, "evt-2")))
	assert.Len(t, store.seen, 2)
}
