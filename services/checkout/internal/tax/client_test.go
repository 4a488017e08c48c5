package tax

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/pkg/breaker"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Calculate(t *testing.T) {
	t.Parallel()

	var got taxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/taxes", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tax":{"amount_to_collect":12.34}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", time.Second, nil)
	q := taxableQuote()
	q.ShippingAddress = &models.Address{AddressFields: models.AddressFields{
		Street: "1 Main", City: "Springfield", State: "IL", Zip: "62701", Country: "US",
	}}

	res, err := c.Calculate(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.AmountToCollect.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, "62701", got.ToZip)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(20)))
	require.Len(t, got.LineItems, 1)
}

func TestClient_Calculate_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second, nil)

	_, err := c.Calculate(context.Background(), taxableQuote())
	require.ErrorIs(t, err, ErrNoShippingAddress)

	q := taxableQuote()
	q.ShippingAddress = &models.Address{}
	for i := 0; i < 5; i++ {
		_, err = c.Calculate(context.Background(), q)
		require.Error(t, err)
		assert.False(t, breaker.IsOpen(err))
	}

	_, err = c.Calculate(context.Background(), q)
	assert.True(t, breaker.IsOpen(err))
}
