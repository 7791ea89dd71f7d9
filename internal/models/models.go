package models

import (
	"time"

	"github.com/lib/pq"
)

// InventoryItem represents one physical item in the reseller's inventory
type InventoryItem struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description,omitempty"`
	Price            float64        `db:"price" json:"price"`
	PurchasePrice    float64        `db:"purchase_price" json:"purchase_price"`
	Condition        string         `db:"condition" json:"condition"`
	Brand            string         `db:"brand" json:"brand,omitempty"`
	Category         string         `db:"category" json:"category,omitempty"`
	Images           pq.StringArray `db:"images" json:"images"`
	Quantity         int            `db:"quantity" json:"quantity"`
	AutoDelistOnSale bool           `db:"auto_delist_on_sale" json:"auto_delist_on_sale"`
	Status           string         `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// MarketplaceListing is one listing registry record. At most one exists per
// (inventory_item_id, marketplace); every write goes through the registry
// upsert, which preserves created_at and advances updated_at.
type MarketplaceListing struct {
	ID                    string     `db:"id" json:"id"`
	InventoryItemID       string     `db:"inventory_item_id" json:"inventory_item_id"`
	Marketplace           string     `db:"marketplace" json:"marketplace"`
	MarketplaceListingID  string     `db:"marketplace_listing_id" json:"marketplace_listing_id"`
	MarketplaceListingURL string     `db:"marketplace_listing_url" json:"marketplace_listing_url,omitempty"`
	Status                string     `db:"status" json:"status"`
	ListedAt              *time.Time `db:"listed_at" json:"listed_at,omitempty"`
	DelistedAt            *time.Time `db:"delisted_at" json:"delisted_at,omitempty"`
	Metadata              []byte     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Credential holds the per-marketplace token tuple
type Credential struct {
	Marketplace  string    `db:"marketplace" json:"marketplace"`
	AccessToken  string    `db:"access_token" json:"access_token"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}

// IsActive reports whether the credential is usable for marketplace API calls
func (c *Credential) IsActive() bool {
	return c != nil && time.Now().Before(c.ExpiresAt)
}

// Inventory item statuses
const (
	ItemStatusAvailable = "available"
	ItemStatusListed    = "listed"
	ItemStatusSold      = "sold"
)

// Marketplace listing statuses
const (
	ListingStatusNotListed = "not_listed"
	ListingStatusActive    = "active"
	ListingStatusSold      = "sold"
	ListingStatusRemoved   = "removed"
	ListingStatusError     = "error"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
