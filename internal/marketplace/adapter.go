package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"
)

// ListingPayload is the normalized payload handed to an adapter for listing
type ListingPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Condition   string   `json:"condition"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	Images      []string `json:"images,omitempty"`
	Quantity    int      `json:"quantity"`
}

// ListResult is what a marketplace returns for a successful listing
type ListResult struct {
	ListingID  string         `json:"listing_id"`
	ListingURL string         `json:"listing_url,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// SoldItem is one sold-listing report from a marketplace
type SoldItem struct {
	ListingID string    `json:"listing_id"`
	SoldAt    time.Time `json:"sold_at"`
	Price     float64   `json:"price,omitempty"`
}

// Adapter abstracts one marketplace's native API. Any call may fail with an
// *AdapterError; callers treat that as recoverable and local to the one
// marketplace.
type Adapter interface {
	ListItem(ctx context.Context, payload ListingPayload, creds models.Credential) (*ListResult, error)
	DelistItem(ctx context.Context, listingID string, creds models.Credential) error
	SyncSoldItems(ctx context.Context, creds models.Credential) ([]SoldItem, error)
}

// AdapterError wraps a failed adapter call with its marketplace and operation
type AdapterError struct {
	Marketplace string
	Op          string
	Err         error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Marketplace, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
