package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/pkg/errors"
)

func TestHTTPCatalog_GetItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items/item-1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":{"id":"item-1","sellerId":"seller-1","title":"Mythic account","price":"1000.00","status":"active"}}`))
		case "/items/item-2":
			w.Write([]byte(`{"id":"item-2","sellerId":"seller-2","price":12.5,"status":"sold"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, time.Second)
	ctx := context.Background()

	item, err := c.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "seller-1", item.SellerID)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(1000)))
	assert.True(t, item.IsAvailable())

	item, err = c.GetItem(ctx, "item-2")
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, item.IsAvailable())

	_, err = c.GetItem(ctx, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestHTTPCatalog_UpstreamFailureTripsBreaker(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, time.Second)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := c.GetItem(ctx, "item-1")
		assert.True(t, errors.Is(err, errors.CodeUpstreamUnavailable))
	}
	// the breaker opened after MaxNumOfFailingRequests+1 failures
	assert.Equal(t, MaxNumOfFailingRequests+1, calls)
}
