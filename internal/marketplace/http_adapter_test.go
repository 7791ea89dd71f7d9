package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcb43/profitorbit.io-sub006/internal/models"
)

func testCred() models.Credential {
	return models.Credential{
		Marketplace: "ebay",
		AccessToken: "test-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestHTTPAdapterListItem(t *testing.T) {
	var gotPayload ListingPayload
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/listings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"listing_id":  "ebay-42",
			"listing_url": "https://ebay.example.com/itm/42",
		})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter("ebay", server.URL, time.Second)
	result, err := adapter.ListItem(context.Background(), ListingPayload{
		Title:     "Vintage denim jacket",
		Price:     30,
		Condition: "good",
		Quantity:  1,
	}, testCred())
	require.NoError(t, err)

	assert.Equal(t, "ebay-42", result.ListingID)
	assert.Equal(t, "https://ebay.example.com/itm/42", result.ListingURL)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "Vintage denim jacket", gotPayload.Title)
}

func TestHTTPAdapterListItemErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "shipping profile missing", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	adapter := NewHTTPAdapter("ebay", server.URL, time.Second)
	_, err := adapter.ListItem(context.Background(), ListingPayload{Title: "x"}, testCred())
	require.Error(t, err)

	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "ebay", adapterErr.Marketplace)
	assert.Equal(t, "list", adapterErr.Op)
	assert.Contains(t, err.Error(), "unexpected status 422")
}

func TestHTTPAdapterListItemMissingListingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	adapter := NewHTTPAdapter("ebay", server.URL, time.Second)
	_, err := adapter.ListItem(context.Background(), ListingPayload{Title: "x"}, testCred())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing listing_id")
}

func TestHTTPAdapterDelistItem(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	adapter := NewHTTPAdapter("mercari", server.URL, time.Second)
	err := adapter.DelistItem(context.Background(), "mercari-7", testCred())
	require.NoError(t, err)
	assert.Equal(t, "/api/listings/mercari-7", gotPath)
}

func TestHTTPAdapterSyncSoldItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/listings/sold", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sold": [{"listing_id": "posh-9", "price": 25.5}]}`))
	}))
	defer server.Close()

	adapter := NewHTTPAdapter("poshmark", server.URL, time.Second)
	sold, err := adapter.SyncSoldItems(context.Background(), testCred())
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, "posh-9", sold[0].ListingID)
	assert.Equal(t, 25.5, sold[0].Price)
}

func TestCatalog(t *testing.T) {
	assert.Equal(t, []string{"ebay", "facebook", "mercari", "poshmark"}, Names())
	assert.True(t, Supported("ebay"))
	assert.False(t, Supported("etsy"))

	assert.Contains(t, RequiredFields("poshmark"), "size")
	assert.NotContains(t, RequiredFields("facebook"), "shipping_profile")
	// unknown marketplaces still get the universal minimum
	assert.Equal(t, []string{"title", "price", "condition"}, RequiredFields("etsy"))

	assert.True(t, CategoryLike("category"))
	assert.True(t, CategoryLike("facebook_category"))
	assert.False(t, CategoryLike("brand"))
}
