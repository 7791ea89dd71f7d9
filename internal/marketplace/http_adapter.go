package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"
)

// HTTPAdapter talks to a marketplace gateway exposing a JSON API:
//
//	POST   {base}/api/listings            -> {"listing_id": ..., "listing_url": ...}
//	DELETE {base}/api/listings/{id}       -> 204
//	GET    {base}/api/listings/sold       -> {"sold": [{"listing_id": ..., "sold_at": ...}]}
//
// Marketplace-specific field schemas stay behind the gateway; this adapter
// only moves the normalized payload.
type HTTPAdapter struct {
	marketplace string
	baseURL     string
	client      *http.Client
}

// NewHTTPAdapter creates an adapter for one marketplace gateway
func NewHTTPAdapter(marketplace, baseURL string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPAdapter{
		marketplace: marketplace,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: timeout},
	}
}

// ListItem publishes a listing on the marketplace
func (a *HTTPAdapter) ListItem(ctx context.Context, payload ListingPayload, creds models.Credential) (*ListResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "list", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/listings", bytes.NewReader(body))
	if err != nil {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "list", Err: err}
	}
	a.setHeaders(req, creds)

	var result ListResult
	if err := a.do(req, &result); err != nil {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "list", Err: err}
	}
	if result.ListingID == "" {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "list", Err: fmt.Errorf("response missing listing_id")}
	}
	return &result, nil
}

// DelistItem removes a listing from the marketplace
func (a *HTTPAdapter) DelistItem(ctx context.Context, listingID string, creds models.Credential) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/api/listings/"+listingID, nil)
	if err != nil {
		return &AdapterError{Marketplace: a.marketplace, Op: "delist", Err: err}
	}
	a.setHeaders(req, creds)

	if err := a.do(req, nil); err != nil {
		return &AdapterError{Marketplace: a.marketplace, Op: "delist", Err: err}
	}
	return nil
}

// SyncSoldItems fetches listings the marketplace reports as sold
func (a *HTTPAdapter) SyncSoldItems(ctx context.Context, creds models.Credential) ([]SoldItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/listings/sold", nil)
	if err != nil {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "sync", Err: err}
	}
	a.setHeaders(req, creds)

	var envelope struct {
		Sold []SoldItem `json:"sold"`
	}
	if err := a.do(req, &envelope); err != nil {
		return nil, &AdapterError{Marketplace: a.marketplace, Op: "sync", Err: err}
	}
	return envelope.Sold, nil
}

func (a *HTTPAdapter) setHeaders(req *http.Request, creds models.Credential) {
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (a *HTTPAdapter) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
