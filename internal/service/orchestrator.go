package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/models"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrAccountNotConnected is the recorded error for a marketplace whose
// credential is missing or expired
const ErrAccountNotConnected = "Account not connected or token expired"

// DefaultPriceMultiplier applied to an item's purchase price when the
// caller does not supply one
const DefaultPriceMultiplier = 1.5

// ListingRegistry is the persisted collection of marketplace-listing
// records, keyed by (inventory_item_id, marketplace)
type ListingRegistry interface {
	UpsertListing(ctx context.Context, listing *models.MarketplaceListing) error
	GetListingsByItem(ctx context.Context, inventoryItemID string) ([]models.MarketplaceListing, error)
	GetListingByMarketplaceListingID(ctx context.Context, marketplace, marketplaceListingID string) (*models.MarketplaceListing, error)
	RemoveListing(ctx context.Context, inventoryItemID, marketplace string) error
}

// ItemStore is the inventory item collaborator. The orchestrator mutates
// items only to flip status as a side effect of listing/delisting/selling.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*models.InventoryItem, error)
	UpdateItemStatus(ctx context.Context, id, status string) error
}

// EventSink publishes listing lifecycle events. Publish failures are logged
// and never fail the triggering operation.
type EventSink interface {
	PublishListingPublished(ctx context.Context, event *models.ListingPublishedEvent) error
	PublishListingRemoved(ctx context.Context, event *models.ListingRemovedEvent) error
	PublishItemSold(ctx context.Context, event *models.ItemSoldEvent) error
	PublishCrosslistCompleted(ctx context.Context, event *models.CrosslistCompletedEvent) error
}

// ListOptions tunes a list/crosslist/bulk dispatch
type ListOptions struct {
	PriceMultiplier   float64       `json:"price_multiplier,omitempty"`
	DelayBetweenItems time.Duration `json:"delay_between_items,omitempty"`
}

// ListOutcome is one successful per-marketplace listing result
type ListOutcome struct {
	Marketplace string `json:"marketplace"`
	ListingID   string `json:"listing_id"`
	ListingURL  string `json:"listing_url,omitempty"`
}

// MarketplaceError is one per-marketplace failure inside an aggregate result
type MarketplaceError struct {
	Marketplace string `json:"marketplace"`
	Error       string `json:"error"`
}

// CrosslistResult aggregates independent per-marketplace outcomes
type CrosslistResult struct {
	Success []ListOutcome      `json:"success"`
	Errors  []MarketplaceError `json:"errors"`
}

// DelistResult aggregates per-marketplace delist outcomes
type DelistResult struct {
	Success []string           `json:"success"`
	Errors  []MarketplaceError `json:"errors"`
}

// BulkItemResult is one item's outcome inside a bulk operation
type BulkItemResult struct {
	ItemID   string        `json:"item_id"`
	Outcomes []ListOutcome `json:"outcomes,omitempty"`
}

// BulkError is one item's captured failure inside a bulk operation
type BulkError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// BulkResult tracks a whole bulk run
type BulkResult struct {
	Total     int              `json:"total"`
	Processed int              `json:"processed"`
	Success   []BulkItemResult `json:"success"`
	Errors    []BulkError      `json:"errors"`
}

// SyncResult reports one sold-item synchronization run
type SyncResult struct {
	Synced    []string           `json:"synced"`
	SoldItems []string           `json:"sold_items"`
	Errors    []MarketplaceError `json:"errors"`
}

// Orchestrator is the crosslisting engine: single-item list/delist,
// multi-marketplace crosslist, bulk operations, and sold-item sync with
// cascading auto-delist. Per-target failures are always collected, never
// propagated, so one marketplace's failure cannot abort its siblings.
type Orchestrator struct {
	adapters    map[string]marketplace.Adapter
	registry    ListingRegistry
	items       ItemStore
	events      EventSink
	logger      *zap.Logger
	concurrency int
}

// NewOrchestrator creates a new crosslisting orchestrator. concurrency
// bounds bulk dispatch; values below 1 fall back to 1, which preserves
// strictly sequential per-item processing.
func NewOrchestrator(
	adapters map[string]marketplace.Adapter,
	registry ListingRegistry,
	items ItemStore,
	events EventSink,
	concurrency int,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		adapters:    adapters,
		registry:    registry,
		items:       items,
		events:      events,
		logger:      util.GetLogger(),
		concurrency: concurrency,
	}
}

// ListOnMarketplace lists one item on one marketplace. On adapter failure no
// registry record is written for the attempt; the failure is only visible in
// the returned error.
func (o *Orchestrator) ListOnMarketplace(ctx context.Context, itemID, mkt string, cred *models.Credential, opts ListOptions) (*ListOutcome, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.ListOnMarketplace")
	defer span.End()

	adapter, ok := o.adapters[mkt]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for marketplace %q", mkt)
	}
	if !cred.IsActive() {
		return nil, fmt.Errorf("%s", ErrAccountNotConnected)
	}

	item, err := o.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	payload := buildPayload(item, opts)

	start := time.Now()
	result, err := adapter.ListItem(ctx, payload, *cred)
	util.AdapterCallLatency.WithLabelValues(mkt, "list").Observe(time.Since(start).Seconds())
	if err != nil {
		util.ListingsFailedTotal.WithLabelValues(mkt, "adapter_error").Inc()
		return nil, err
	}

	now := time.Now()
	listing := &models.MarketplaceListing{
		InventoryItemID:       itemID,
		Marketplace:           mkt,
		MarketplaceListingID:  result.ListingID,
		MarketplaceListingURL: result.ListingURL,
		Status:                models.ListingStatusActive,
		ListedAt:              &now,
	}
	if err := o.registry.UpsertListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to record listing: %w", err)
	}

	if err := o.items.UpdateItemStatus(ctx, itemID, models.ItemStatusListed); err != nil {
		o.logger.Error("Failed to mark item listed",
			zap.String("item_id", itemID),
			zap.Error(err))
	}

	util.ListingsPublishedTotal.WithLabelValues(mkt).Inc()
	o.logger.Info("Item listed",
		zap.String("item_id", itemID),
		zap.String("marketplace", mkt),
		zap.String("listing_id", result.ListingID))

	o.publishListingPublished(ctx, listing)

	return &ListOutcome{
		Marketplace: mkt,
		ListingID:   result.ListingID,
		ListingURL:  result.ListingURL,
	}, nil
}

// Crosslist lists one item on several marketplaces sequentially. It never
// returns an error: every per-marketplace failure is recorded and processing
// continues with the remaining marketplaces.
func (o *Orchestrator) Crosslist(ctx context.Context, itemID string, marketplaces []string, creds map[string]*models.Credential, opts ListOptions) *CrosslistResult {
	ctx, span := util.StartSpan(ctx, "Orchestrator.Crosslist")
	defer span.End()

	util.CrosslistBatchesTotal.Inc()

	result := &CrosslistResult{
		Success: []ListOutcome{},
		Errors:  []MarketplaceError{},
	}

	for _, mkt := range marketplaces {
		cred := creds[mkt]
		if !cred.IsActive() {
			result.Errors = append(result.Errors, MarketplaceError{
				Marketplace: mkt,
				Error:       ErrAccountNotConnected,
			})
			continue
		}

		outcome, err := o.ListOnMarketplace(ctx, itemID, mkt, cred, opts)
		if err != nil {
			result.Errors = append(result.Errors, MarketplaceError{
				Marketplace: mkt,
				Error:       err.Error(),
			})
			continue
		}
		result.Success = append(result.Success, *outcome)
	}

	o.publishCrosslistCompleted(ctx, itemID, result)
	return result
}

// DelistFromMarketplace delists one registry record. On success the record
// is updated to removed with a delist timestamp.
func (o *Orchestrator) DelistFromMarketplace(ctx context.Context, listing *models.MarketplaceListing, cred *models.Credential) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.DelistFromMarketplace")
	defer span.End()

	adapter, ok := o.adapters[listing.Marketplace]
	if !ok {
		return fmt.Errorf("no adapter registered for marketplace %q", listing.Marketplace)
	}

	start := time.Now()
	err := adapter.DelistItem(ctx, listing.MarketplaceListingID, *cred)
	util.AdapterCallLatency.WithLabelValues(listing.Marketplace, "delist").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	now := time.Now()
	listing.Status = models.ListingStatusRemoved
	listing.DelistedAt = &now
	if err := o.registry.UpsertListing(ctx, listing); err != nil {
		return fmt.Errorf("failed to record delist: %w", err)
	}

	util.ListingsDelistedTotal.WithLabelValues(listing.Marketplace).Inc()
	o.logger.Info("Listing removed",
		zap.String("item_id", listing.InventoryItemID),
		zap.String("marketplace", listing.Marketplace))

	o.publishListingRemoved(ctx, listing)
	return nil
}

// DelistEverywhere delists all currently active listings for an item,
// aggregating per-marketplace outcomes. The item is marked available
// afterward regardless of individual delist failures.
func (o *Orchestrator) DelistEverywhere(ctx context.Context, itemID string, creds map[string]*models.Credential) (*DelistResult, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.DelistEverywhere")
	defer span.End()

	listings, err := o.registry.GetListingsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	result := &DelistResult{
		Success: []string{},
		Errors:  []MarketplaceError{},
	}

	for i := range listings {
		listing := &listings[i]
		if listing.Status != models.ListingStatusActive {
			continue
		}

		cred := creds[listing.Marketplace]
		if !cred.IsActive() {
			result.Errors = append(result.Errors, MarketplaceError{
				Marketplace: listing.Marketplace,
				Error:       ErrAccountNotConnected,
			})
			continue
		}

		if err := o.DelistFromMarketplace(ctx, listing, cred); err != nil {
			result.Errors = append(result.Errors, MarketplaceError{
				Marketplace: listing.Marketplace,
				Error:       err.Error(),
			})
			continue
		}
		result.Success = append(result.Success, listing.Marketplace)
	}

	// The item goes back to available even when some delists failed.
	if err := o.items.UpdateItemStatus(ctx, itemID, models.ItemStatusAvailable); err != nil {
		o.logger.Error("Failed to mark item available",
			zap.String("item_id", itemID),
			zap.Error(err))
	}

	return result, nil
}

// BulkListItems lists several items across the given marketplaces. Items are
// dispatched through a bounded queue (degree 1 by default, preserving
// sequential processing); one item's failure never stops the rest.
func (o *Orchestrator) BulkListItems(ctx context.Context, itemIDs, marketplaces []string, creds map[string]*models.Credential, opts ListOptions) *BulkResult {
	return o.runBulk(ctx, "list", itemIDs, opts, func(ctx context.Context, itemID string) (*BulkItemResult, error) {
		itemResult := &BulkItemResult{ItemID: itemID}
		for _, mkt := range marketplaces {
			cred := creds[mkt]
			if !cred.IsActive() {
				return nil, fmt.Errorf("%s: %s", mkt, ErrAccountNotConnected)
			}
			outcome, err := o.ListOnMarketplace(ctx, itemID, mkt, cred, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", mkt, err)
			}
			itemResult.Outcomes = append(itemResult.Outcomes, *outcome)
		}
		return itemResult, nil
	})
}

// BulkDelistItems delists several items everywhere they are active
func (o *Orchestrator) BulkDelistItems(ctx context.Context, itemIDs []string, creds map[string]*models.Credential, opts ListOptions) *BulkResult {
	return o.runBulk(ctx, "delist", itemIDs, opts, func(ctx context.Context, itemID string) (*BulkItemResult, error) {
		result, err := o.DelistEverywhere(ctx, itemID, creds)
		if err != nil {
			return nil, err
		}
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("%s: %s", result.Errors[0].Marketplace, result.Errors[0].Error)
		}
		return &BulkItemResult{ItemID: itemID}, nil
	})
}

// BulkRelistItems performs delist-then-list per item. The two phases are not
// atomic: when the list phase fails after a successful delist, the item ends
// up fully delisted without being relisted.
func (o *Orchestrator) BulkRelistItems(ctx context.Context, itemIDs, marketplaces []string, creds map[string]*models.Credential, opts ListOptions) *BulkResult {
	return o.runBulk(ctx, "relist", itemIDs, opts, func(ctx context.Context, itemID string) (*BulkItemResult, error) {
		if _, err := o.DelistEverywhere(ctx, itemID, creds); err != nil {
			return nil, fmt.Errorf("delist phase: %w", err)
		}

		itemResult := &BulkItemResult{ItemID: itemID}
		for _, mkt := range marketplaces {
			cred := creds[mkt]
			if !cred.IsActive() {
				return nil, fmt.Errorf("list phase: %s: %s", mkt, ErrAccountNotConnected)
			}
			outcome, err := o.ListOnMarketplace(ctx, itemID, mkt, cred, opts)
			if err != nil {
				return nil, fmt.Errorf("list phase: %s: %w", mkt, err)
			}
			itemResult.Outcomes = append(itemResult.Outcomes, *outcome)
		}
		return itemResult, nil
	})
}

// runBulk drives a bulk operation through a bounded work queue. The only
// backpressure between items is the optional fixed delay, realized as a
// rate limiter.
func (o *Orchestrator) runBulk(ctx context.Context, op string, itemIDs []string, opts ListOptions, fn func(ctx context.Context, itemID string) (*BulkItemResult, error)) *BulkResult {
	result := &BulkResult{
		Total:   len(itemIDs),
		Success: []BulkItemResult{},
		Errors:  []BulkError{},
	}

	var limiter *rate.Limiter
	if opts.DelayBetweenItems > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.DelayBetweenItems), 1)
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(o.concurrency)

	for _, itemID := range itemIDs {
		itemID := itemID
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					mu.Lock()
					result.Errors = append(result.Errors, BulkError{ItemID: itemID, Error: err.Error()})
					result.Processed++
					mu.Unlock()
					return nil
				}
			}

			itemResult, err := fn(ctx, itemID)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			util.BulkItemsProcessedTotal.WithLabelValues(op).Inc()
			if err != nil {
				result.Errors = append(result.Errors, BulkError{ItemID: itemID, Error: err.Error()})
				return nil
			}
			result.Success = append(result.Success, *itemResult)
			return nil
		})
	}

	_ = g.Wait()

	o.logger.Info("Bulk operation finished",
		zap.String("op", op),
		zap.Int("total", result.Total),
		zap.Int("succeeded", len(result.Success)),
		zap.Int("failed", len(result.Errors)))

	return result
}

// SyncSoldItems asks every marketplace with an active credential for sold
// listings, marks matched items sold, and cascades an auto-delist of sibling
// listings when the item opts in.
func (o *Orchestrator) SyncSoldItems(ctx context.Context, creds map[string]*models.Credential) *SyncResult {
	ctx, span := util.StartSpan(ctx, "Orchestrator.SyncSoldItems")
	defer span.End()

	util.SyncRunsTotal.Inc()

	result := &SyncResult{
		Synced:    []string{},
		SoldItems: []string{},
		Errors:    []MarketplaceError{},
	}

	marketplaces := make([]string, 0, len(creds))
	for mkt := range creds {
		marketplaces = append(marketplaces, mkt)
	}
	sort.Strings(marketplaces)

	for _, mkt := range marketplaces {
		cred := creds[mkt]
		if !cred.IsActive() {
			continue
		}
		adapter, ok := o.adapters[mkt]
		if !ok {
			continue
		}

		start := time.Now()
		sold, err := adapter.SyncSoldItems(ctx, *cred)
		util.AdapterCallLatency.WithLabelValues(mkt, "sync").Observe(time.Since(start).Seconds())
		if err != nil {
			result.Errors = append(result.Errors, MarketplaceError{
				Marketplace: mkt,
				Error:       err.Error(),
			})
			continue
		}
		result.Synced = append(result.Synced, mkt)

		for _, soldItem := range sold {
			itemID, err := o.handleSoldListing(ctx, mkt, soldItem.ListingID, creds)
			if err != nil {
				result.Errors = append(result.Errors, MarketplaceError{
					Marketplace: mkt,
					Error:       err.Error(),
				})
				continue
			}
			if itemID != "" {
				result.SoldItems = append(result.SoldItems, itemID)
			}
		}
	}

	return result
}

// handleSoldListing processes one sold-listing report. Returns the matched
// inventory item id, or "" when the listing is unknown to the registry.
func (o *Orchestrator) handleSoldListing(ctx context.Context, mkt, marketplaceListingID string, creds map[string]*models.Credential) (string, error) {
	listing, err := o.registry.GetListingByMarketplaceListingID(ctx, mkt, marketplaceListingID)
	if err != nil {
		return "", fmt.Errorf("failed to match sold listing: %w", err)
	}
	if listing == nil {
		o.logger.Warn("Sold listing not found in registry",
			zap.String("marketplace", mkt),
			zap.String("marketplace_listing_id", marketplaceListingID))
		return "", nil
	}

	listing.Status = models.ListingStatusSold
	if err := o.registry.UpsertListing(ctx, listing); err != nil {
		return "", fmt.Errorf("failed to mark listing sold: %w", err)
	}

	util.SoldItemsSyncedTotal.WithLabelValues(mkt).Inc()

	item, err := o.items.GetItem(ctx, listing.InventoryItemID)
	if err != nil {
		return "", fmt.Errorf("failed to load sold item: %w", err)
	}

	autoDelisted := false
	if item.AutoDelistOnSale {
		// Close out sibling active listings. DelistEverywhere flips the
		// item to available; the sold status below takes precedence.
		if _, err := o.DelistEverywhere(ctx, item.ID, creds); err != nil {
			o.logger.Error("Auto-delist cascade failed",
				zap.String("item_id", item.ID),
				zap.Error(err))
		} else {
			autoDelisted = true
		}
	}

	if err := o.items.UpdateItemStatus(ctx, item.ID, models.ItemStatusSold); err != nil {
		return "", fmt.Errorf("failed to mark item sold: %w", err)
	}

	o.logger.Info("Item sold",
		zap.String("item_id", item.ID),
		zap.String("marketplace", mkt),
		zap.Bool("auto_delisted", autoDelisted))

	o.publishItemSold(ctx, listing, autoDelisted)
	return item.ID, nil
}

// buildPayload transforms an inventory item into a marketplace payload.
// Price defaults to purchase_price x the configured multiplier; a missing
// condition falls back to "used".
func buildPayload(item *models.InventoryItem, opts ListOptions) marketplace.ListingPayload {
	multiplier := opts.PriceMultiplier
	if multiplier <= 0 {
		multiplier = DefaultPriceMultiplier
	}

	condition := item.Condition
	if condition == "" {
		condition = "used"
	}

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	return marketplace.ListingPayload{
		Title:       item.Title,
		Description: item.Description,
		Price:       item.PurchasePrice * multiplier,
		Condition:   condition,
		Brand:       item.Brand,
		Category:    item.Category,
		Images:      item.Images,
		Quantity:    quantity,
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (o *Orchestrator) publishListingPublished(ctx context.Context, listing *models.MarketplaceListing) {
	if o.events == nil {
		return
	}
	event := &models.ListingPublishedEvent{
		BaseEvent:            newBaseEvent(models.EventTypeListingPublished),
		InventoryItemID:      listing.InventoryItemID,
		Marketplace:          listing.Marketplace,
		MarketplaceListingID: listing.MarketplaceListingID,
		ListingURL:           listing.MarketplaceListingURL,
	}
	if err := o.events.PublishListingPublished(ctx, event); err != nil {
		o.logger.Error("Failed to publish ListingPublished event", zap.Error(err))
	}
}

func (o *Orchestrator) publishListingRemoved(ctx context.Context, listing *models.MarketplaceListing) {
	if o.events == nil {
		return
	}
	event := &models.ListingRemovedEvent{
		BaseEvent:            newBaseEvent(models.EventTypeListingRemoved),
		InventoryItemID:      listing.InventoryItemID,
		Marketplace:          listing.Marketplace,
		MarketplaceListingID: listing.MarketplaceListingID,
	}
	if err := o.events.PublishListingRemoved(ctx, event); err != nil {
		o.logger.Error("Failed to publish ListingRemoved event", zap.Error(err))
	}
}

func (o *Orchestrator) publishItemSold(ctx context.Context, listing *models.MarketplaceListing, autoDelisted bool) {
	if o.events == nil {
		return
	}
	event := &models.ItemSoldEvent{
		BaseEvent:            newBaseEvent(models.EventTypeItemSold),
		InventoryItemID:      listing.InventoryItemID,
		Marketplace:          listing.Marketplace,
		MarketplaceListingID: listing.MarketplaceListingID,
		AutoDelisted:         autoDelisted,
	}
	if err := o.events.PublishItemSold(ctx, event); err != nil {
		o.logger.Error("Failed to publish ItemSold event", zap.Error(err))
	}
}

func (o *Orchestrator) publishCrosslistCompleted(ctx context.Context, itemID string, result *CrosslistResult) {
	if o.events == nil {
		return
	}
	succeeded := make([]string, 0, len(result.Success))
	for _, outcome := range result.Success {
		succeeded = append(succeeded, outcome.Marketplace)
	}
	failed := make([]string, 0, len(result.Errors))
	for _, mktErr := range result.Errors {
		failed = append(failed, mktErr.Marketplace)
	}

	event := &models.CrosslistCompletedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeCrosslistCompleted),
		InventoryItemID: itemID,
		Succeeded:       succeeded,
		Failed:          failed,
	}
	if err := o.events.PublishCrosslistCompleted(ctx, event); err != nil {
		o.logger.Error("Failed to publish CrosslistCompleted event", zap.Error(err))
	}
}
