package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/service"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SaveSession stores a smart-listing session as JSON with a TTL. Sessions
// are ephemeral; expiry doubles as abandoned-flow cleanup.
func (c *Client) SaveSession(ctx context.Context, session *service.SmartListingSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err()
}

// LoadSession retrieves a session by id. Returns nil when the session does
// not exist or has expired.
func (c *Client) LoadSession(ctx context.Context, sessionID string) (*service.SmartListingSession, error) {
	data, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session service.SmartListingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// CacheCredentialActive marks a marketplace credential as active until it
// expires, so connection checks skip the database on the hot path
func (c *Client) CacheCredentialActive(ctx context.Context, mkt string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, credentialKey(mkt), "1", ttl).Err()
}

// IsCredentialActiveCached checks the cached activity flag for a marketplace
func (c *Client) IsCredentialActiveCached(ctx context.Context, mkt string) (bool, error) {
	result, err := c.rdb.Exists(ctx, credentialKey(mkt)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// InvalidateCredential drops the cached activity flag for a marketplace
func (c *Client) InvalidateCredential(ctx context.Context, mkt string) error {
	return c.rdb.Del(ctx, credentialKey(mkt)).Err()
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func credentialKey(mkt string) string {
	return fmt.Sprintf("creds:%s", mkt)
}
