package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/models"
)

// fakeRegistry implements ListingRegistry in memory with the same composite
// key upsert semantics as the Postgres store
type fakeRegistry struct {
	records map[string]*models.MarketplaceListing
	upserts int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: map[string]*models.MarketplaceListing{}}
}

func regKey(itemID, mkt string) string {
	return itemID + "|" + mkt
}

func (r *fakeRegistry) UpsertListing(_ context.Context, listing *models.MarketplaceListing) error {
	r.upserts++
	key := regKey(listing.InventoryItemID, listing.Marketplace)

	if existing, ok := r.records[key]; ok {
		listing.ID = existing.ID
		listing.CreatedAt = existing.CreatedAt
		now := time.Now()
		if !now.After(existing.UpdatedAt) {
			now = existing.UpdatedAt.Add(time.Nanosecond)
		}
		listing.UpdatedAt = now
	} else {
		if listing.ID == "" {
			listing.ID = fmt.Sprintf("listing-%d", len(r.records)+1)
		}
		now := time.Now()
		listing.CreatedAt = now
		listing.UpdatedAt = now
	}

	stored := *listing
	r.records[key] = &stored
	return nil
}

func (r *fakeRegistry) GetListingsByItem(_ context.Context, itemID string) ([]models.MarketplaceListing, error) {
	var listings []models.MarketplaceListing
	for _, rec := range r.records {
		if rec.InventoryItemID == itemID {
			listings = append(listings, *rec)
		}
	}
	return listings, nil
}

func (r *fakeRegistry) GetListingByMarketplaceListingID(_ context.Context, mkt, marketplaceListingID string) (*models.MarketplaceListing, error) {
	for _, rec := range r.records {
		if rec.Marketplace == mkt && rec.MarketplaceListingID == marketplaceListingID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistry) RemoveListing(_ context.Context, itemID, mkt string) error {
	delete(r.records, regKey(itemID, mkt))
	return nil
}

func (r *fakeRegistry) get(itemID, mkt string) *models.MarketplaceListing {
	return r.records[regKey(itemID, mkt)]
}

// fakeItemStore implements ItemStore in memory
type fakeItemStore struct {
	items map[string]*models.InventoryItem
}

func newFakeItemStore(items ...*models.InventoryItem) *fakeItemStore {
	s := &fakeItemStore{items: map[string]*models.InventoryItem{}}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *fakeItemStore) GetItem(_ context.Context, id string) (*models.InventoryItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("inventory item not found: %s", id)
	}
	copied := *item
	return &copied, nil
}

func (s *fakeItemStore) UpdateItemStatus(_ context.Context, id, status string) error {
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("inventory item not found: %s", id)
	}
	item.Status = status
	return nil
}

// fakeAdapter implements marketplace.Adapter with overridable behavior
type fakeAdapter struct {
	name     string
	listFn   func(payload marketplace.ListingPayload) (*marketplace.ListResult, error)
	delistFn func(listingID string) error
	syncFn   func() ([]marketplace.SoldItem, error)

	listed   []marketplace.ListingPayload
	delisted []string
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name}
}

func (a *fakeAdapter) ListItem(_ context.Context, payload marketplace.ListingPayload, _ models.Credential) (*marketplace.ListResult, error) {
	if a.listFn != nil {
		result, err := a.listFn(payload)
		if err != nil {
			return nil, err
		}
		a.listed = append(a.listed, payload)
		return result, nil
	}
	a.listed = append(a.listed, payload)
	return &marketplace.ListResult{
		ListingID:  fmt.Sprintf("%s-%d", a.name, len(a.listed)),
		ListingURL: fmt.Sprintf("https://%s.example.com/listing/%d", a.name, len(a.listed)),
	}, nil
}

func (a *fakeAdapter) DelistItem(_ context.Context, listingID string, _ models.Credential) error {
	if a.delistFn != nil {
		if err := a.delistFn(listingID); err != nil {
			return err
		}
	}
	a.delisted = append(a.delisted, listingID)
	return nil
}

func (a *fakeAdapter) SyncSoldItems(_ context.Context, _ models.Credential) ([]marketplace.SoldItem, error) {
	if a.syncFn != nil {
		return a.syncFn()
	}
	return nil, nil
}

func activeCred(mkt string) *models.Credential {
	return &models.Credential{
		Marketplace: mkt,
		AccessToken: "token-" + mkt,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func expiredCred(mkt string) *models.Credential {
	return &models.Credential{
		Marketplace: mkt,
		AccessToken: "token-" + mkt,
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
}

func availableItem(id string) *models.InventoryItem {
	return &models.InventoryItem{
		ID:            id,
		Title:         "Vintage denim jacket " + id,
		Description:   "Lightly worn",
		Price:         45,
		PurchasePrice: 20,
		Condition:     "good",
		Brand:         "Levi's",
		Category:      "jackets",
		Quantity:      1,
		Status:        models.ItemStatusAvailable,
	}
}
