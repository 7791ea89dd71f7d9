package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"

	"github.com/google/uuid"
)

// UpsertListing writes a listing registry record by its composite key
// (inventory_item_id, marketplace). An existing record keeps its id and
// created_at; updated_at advances on every write. No transactional
// guarantee: callers must not issue concurrent writes for the same key.
func (s *Store) UpsertListing(ctx context.Context, listing *models.MarketplaceListing) error {
	var existing models.MarketplaceListing
	err := s.db.GetContext(ctx, &existing,
		"SELECT * FROM marketplace_listings WHERE inventory_item_id = $1 AND marketplace = $2",
		listing.InventoryItemID, listing.Marketplace)

	if err == sql.ErrNoRows {
		if listing.ID == "" {
			listing.ID = uuid.New().String()
		}
		now := time.Now()
		listing.CreatedAt = now
		listing.UpdatedAt = now

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO marketplace_listings
				(id, inventory_item_id, marketplace, marketplace_listing_id,
				 marketplace_listing_url, status, listed_at, delisted_at, metadata,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			listing.ID, listing.InventoryItemID, listing.Marketplace,
			listing.MarketplaceListingID, listing.MarketplaceListingURL,
			listing.Status, listing.ListedAt, listing.DelistedAt, listing.Metadata,
			listing.CreatedAt, listing.UpdatedAt)
		return err
	}
	if err != nil {
		return err
	}

	listing.ID = existing.ID
	listing.CreatedAt = existing.CreatedAt
	listing.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE marketplace_listings
		SET marketplace_listing_id = $1, marketplace_listing_url = $2, status = $3,
		    listed_at = $4, delisted_at = $5, metadata = $6, updated_at = $7
		WHERE id = $8`,
		listing.MarketplaceListingID, listing.MarketplaceListingURL, listing.Status,
		listing.ListedAt, listing.DelistedAt, listing.Metadata, listing.UpdatedAt,
		listing.ID)
	return err
}

// GetListingsByItem retrieves all registry records for an item, any status
func (s *Store) GetListingsByItem(ctx context.Context, inventoryItemID string) ([]models.MarketplaceListing, error) {
	var listings []models.MarketplaceListing
	err := s.db.SelectContext(ctx, &listings,
		"SELECT * FROM marketplace_listings WHERE inventory_item_id = $1 ORDER BY marketplace",
		inventoryItemID)
	return listings, err
}

// GetListingByMarketplaceListingID looks up a registry record by the
// marketplace's own listing identifier
func (s *Store) GetListingByMarketplaceListingID(ctx context.Context, marketplace, marketplaceListingID string) (*models.MarketplaceListing, error) {
	var listing models.MarketplaceListing
	err := s.db.GetContext(ctx, &listing,
		"SELECT * FROM marketplace_listings WHERE marketplace = $1 AND marketplace_listing_id = $2",
		marketplace, marketplaceListingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// RemoveListing deletes the one matching registry record, if present
func (s *Store) RemoveListing(ctx context.Context, inventoryItemID, marketplace string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM marketplace_listings WHERE inventory_item_id = $1 AND marketplace = $2",
		inventoryItemID, marketplace)
	return err
}
