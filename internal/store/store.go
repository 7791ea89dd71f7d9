package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetItem retrieves an inventory item by ID
func (s *Store) GetItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM inventory_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory item not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItems retrieves all inventory items
func (s *Store) GetItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM inventory_items ORDER BY created_at DESC")
	return items, err
}

// UpdateItemStatus updates an inventory item's status
func (s *Store) UpdateItemStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE inventory_items SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}

// GetCredential retrieves the stored credential for a marketplace
func (s *Store) GetCredential(ctx context.Context, marketplace string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.GetContext(ctx, &cred,
		"SELECT * FROM marketplace_credentials WHERE marketplace = $1", marketplace)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetCredentials retrieves all stored credentials keyed by marketplace
func (s *Store) GetCredentials(ctx context.Context) (map[string]*models.Credential, error) {
	var creds []models.Credential
	if err := s.db.SelectContext(ctx, &creds, "SELECT * FROM marketplace_credentials"); err != nil {
		return nil, err
	}

	credMap := make(map[string]*models.Credential, len(creds))
	for i := range creds {
		credMap[creds[i].Marketplace] = &creds[i]
	}
	return credMap, nil
}

// UpsertCredential stores or replaces the credential for a marketplace
func (s *Store) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO marketplace_credentials (marketplace, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (marketplace) DO UPDATE
		SET access_token = $2, refresh_token = $3, expires_at = $4`,
		cred.Marketplace, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
