package models

import "time"

// Event types
const (
	EventTypeListingPublished   = "LISTING_PUBLISHED"
	EventTypeListingRemoved     = "LISTING_REMOVED"
	EventTypeItemSold           = "ITEM_SOLD"
	EventTypeCrosslistCompleted = "CROSSLIST_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingPublishedEvent published when an item goes live on one marketplace
type ListingPublishedEvent struct {
	BaseEvent
	InventoryItemID      string `json:"inventory_item_id"`
	Marketplace          string `json:"marketplace"`
	MarketplaceListingID string `json:"marketplace_listing_id"`
	ListingURL           string `json:"listing_url,omitempty"`
}

// ListingRemovedEvent published when a listing is delisted
type ListingRemovedEvent struct {
	BaseEvent
	InventoryItemID      string `json:"inventory_item_id"`
	Marketplace          string `json:"marketplace"`
	MarketplaceListingID string `json:"marketplace_listing_id"`
}

// ItemSoldEvent published when a sold-item sync matches a registry record
type ItemSoldEvent struct {
	BaseEvent
	InventoryItemID      string `json:"inventory_item_id"`
	Marketplace          string `json:"marketplace"`
	MarketplaceListingID string `json:"marketplace_listing_id"`
	AutoDelisted         bool   `json:"auto_delisted"`
}

// CrosslistCompletedEvent published after a multi-marketplace crosslist run
type CrosslistCompletedEvent struct {
	BaseEvent
	InventoryItemID string   `json:"inventory_item_id"`
	Succeeded       []string `json:"succeeded"`
	Failed          []string `json:"failed"`
}
