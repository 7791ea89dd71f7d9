package worker

import (
	"context"
	"log"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/broker"
	"github.com/kcb43/profitorbit.io-sub006/internal/models"
	"github.com/kcb43/profitorbit.io-sub006/internal/service"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"

	"go.uber.org/zap"
)

// CredentialSource supplies the per-marketplace credentials a sync run needs
type CredentialSource interface {
	GetCredentials(ctx context.Context) (map[string]*models.Credential, error)
}

// SyncWorker periodically synchronizes sold items from every connected
// marketplace
type SyncWorker struct {
	orchestrator *service.Orchestrator
	creds        CredentialSource
	interval     time.Duration
	logger       *zap.Logger
	stop         chan struct{}
}

// NewSyncWorker creates a new sold-item sync worker
func NewSyncWorker(orchestrator *service.Orchestrator, creds CredentialSource, interval time.Duration) *SyncWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncWorker{
		orchestrator: orchestrator,
		creds:        creds,
		interval:     interval,
		logger:       util.GetLogger(),
		stop:         make(chan struct{}),
	}
}

// Start runs the sync loop until the context is cancelled or Stop is called
func (w *SyncWorker) Start(ctx context.Context) error {
	log.Printf("Starting sold-item sync worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	creds, err := w.creds.GetCredentials(ctx)
	if err != nil {
		w.logger.Error("Failed to load credentials for sync", zap.Error(err))
		return
	}

	result := w.orchestrator.SyncSoldItems(ctx, creds)
	w.logger.Info("Sold-item sync completed",
		zap.Strings("marketplaces", result.Synced),
		zap.Int("sold", len(result.SoldItems)),
		zap.Int("errors", len(result.Errors)))
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	log.Println("Stopping sync worker...")
	close(w.stop)
	return nil
}

// ProcessedEventStore records which events the audit consumer already saw
type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// AuditWorker consumes listing lifecycle events and folds them into metrics,
// once per event id
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        ProcessedEventStore
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store ProcessedEventStore) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnListingPublished(w.handleListingPublished)
	eventHandler.OnListingRemoved(w.handleListingRemoved)
	eventHandler.OnItemSold(w.handleItemSold)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

func (w *AuditWorker) handleListingPublished(ctx context.Context, event *models.ListingPublishedEvent) error {
	return w.once(ctx, event.EventID, event.EventType, func() {
		w.logger.Info("Listing published",
			zap.String("item_id", event.InventoryItemID),
			zap.String("marketplace", event.Marketplace),
			zap.String("listing_id", event.MarketplaceListingID))
	})
}

func (w *AuditWorker) handleListingRemoved(ctx context.Context, event *models.ListingRemovedEvent) error {
	return w.once(ctx, event.EventID, event.EventType, func() {
		w.logger.Info("Listing removed",
			zap.String("item_id", event.InventoryItemID),
			zap.String("marketplace", event.Marketplace))
	})
}

func (w *AuditWorker) handleItemSold(ctx context.Context, event *models.ItemSoldEvent) error {
	return w.once(ctx, event.EventID, event.EventType, func() {
		w.logger.Info("Item sold",
			zap.String("item_id", event.InventoryItemID),
			zap.String("marketplace", event.Marketplace),
			zap.Bool("auto_delisted", event.AutoDelisted))
	})
}

// once runs fn unless the event was already processed, then records it
func (w *AuditWorker) once(ctx context.Context, eventID, eventType string, fn func()) error {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	fn()

	if err := w.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
