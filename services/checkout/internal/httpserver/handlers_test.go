package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/middleware/identity"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/payment"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/Skotchmaster/storefront/services/checkout/internal/service"
	"github.com/Skotchmaster/storefront/services/checkout/internal/tax"
	"github.com/Skotchmaster/storefront/services/checkout/internal/testdb"
	"github.com/Skotchmaster/storefront/services/checkout/internal/transport"
)

var secret = []byte("test-secret")

type flatTax struct{}

func (flatTax) Calculate(context.Context, *models.Quote) (*tax.Result, error) {
	return &tax.Result{AmountToCollect: decimal.RequireFromString("1.50")}, nil
}

type testEnv struct {
	e       *echo.Echo
	repo    *repo.GormRepo
	decline atomic.Bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{e: echo.New(), repo: &repo.GormRepo{DB: testdb.New(t)}}

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if env.decline.Load() {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(payment.Result{Message: "insufficient funds"})
			return
		}
		_ = json.NewEncoder(w).Encode(payment.Result{IsSuccess: true, TransactionID: "tx-http"})
	}))
	t.Cleanup(gw.Close)

	adapter := &tax.Adapter{Service: flatTax{}}
	ident := identity.New(secret)
	Register(env.e, &Deps{
		CartHandler: &CartHTTP{
			Svc:      &service.CartService{Repo: env.repo, Tax: adapter, Coupons: &service.CouponLookup{Repo: env.repo}},
			Merge:    &service.MergeService{Repo: env.repo, Tax: adapter, Events: events.Nop{}},
			Identity: ident,
		},
		CheckoutHandler: &CheckoutHTTP{Svc: &service.CheckoutService{
			Repo:    env.repo,
			Gateway: payment.NewClient(gw.URL, "key", 2*time.Second, nil),
			Events:  events.Nop{},
		}},
		Identity: ident,
		Ready:    func(context.Context) error { return nil },
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) product(t *testing.T, sku string) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Product " + sku, SKU: sku, Price: decimal.RequireFromString("10.00"), Available: true}
	require.NoError(t, env.repo.DB.Create(p).Error)
	return p
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	res := rec.Result()
	defer res.Body.Close()
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func accessCookie(t *testing.T, customerID uuid.UUID) *http.Cookie {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokens.AccessClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	return &http.Cookie{Name: identity.AccessCookie, Value: s}
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) transport.CartResponse {
	t.Helper()
	var resp transport.CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func address(name string) *models.AddressFields {
	return &models.AddressFields{FirstName: name, Street: "1 Main St", City: "Springfield", Zip: "62701", Country: "US"}
}

// guestCart fills a guest cart up to the point where it can be checked out.
func (env *testEnv) guestCart(t *testing.T) *http.Cookie {
	t.Helper()
	p := env.product(t, "SKU-"+uuid.NewString())

	rec := env.do(t, http.MethodPost, "/cart/items", transport.AddItemRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := cookieNamed(t, rec, identity.CartCookie)
	require.NotNil(t, cart)

	rec = env.do(t, http.MethodPut, "/cart/addresses", transport.SetAddressesRequest{
		Shipping: &transport.AddressRequest{Address: address("Ship")},
		Billing:  &transport.AddressRequest{Address: address("Bill")},
	}, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/cart/email", transport.SetEmailRequest{Email: ptr("guest@example.com")}, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return cart
}

func ptr[T any](v T) *T {
	return &v
}

func TestCartHTTP_GuestCheckoutFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cart := env.guestCart(t)

	rec := env.do(t, http.MethodGet, "/cart", nil, cart)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Subtotal.Equal(decimal.RequireFromString("20")))
	assert.True(t, resp.Tax.Equal(decimal.RequireFromString("1.50")))
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("21.50")))
	require.NotNil(t, resp.ShippingAddress)
	assert.Equal(t, "Ship", resp.ShippingAddress.FirstName)

	rec = env.do(t, http.MethodPost, "/checkout", transport.CheckoutRequest{
		PaymentMethodNonce: "nonce",
		PaymentDescriptor:  "visa-1111",
	}, cart)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.NotNil(t, order.TransactionID)
	assert.Equal(t, "tx-http", *order.TransactionID)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("21.50")))

	rec = env.do(t, http.MethodGet, "/cart", nil, cart)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartHTTP_UpdateAndRemoveItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cart := env.guestCart(t)
	itemID := decodeCart(t, env.do(t, http.MethodGet, "/cart", nil, cart)).Items[0].ID

	rec := env.do(t, http.MethodPatch, "/cart/items/"+itemID.String(), transport.UpdateItemRequest{Quantity: 5}, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decodeCart(t, rec).Items[0].Quantity)

	rec = env.do(t, http.MethodDelete, "/cart/items/"+itemID.String(), nil, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeCart(t, rec)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.Tax.IsZero())

	rec = env.do(t, http.MethodDelete, "/cart/items/"+itemID.String(), nil, cart)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/cart/items/not-a-uuid", transport.UpdateItemRequest{Quantity: 1}, cart)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHTTP_ErrorMapping(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.product(t, "ERR")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"zero quantity", http.MethodPost, "/cart/items", transport.AddItemRequest{ProductID: p.ID, Quantity: 0}, http.StatusUnprocessableEntity},
		{"missing product id", http.MethodPost, "/cart/items", transport.AddItemRequest{Quantity: 1}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/cart/items", transport.AddItemRequest{ProductID: uuid.New(), Quantity: 1}, http.StatusNotFound},
		{"unknown coupon", http.MethodPut, "/cart/coupon", transport.SetCouponRequest{Code: ptr("NOPE")}, http.StatusNotFound},
		{"bad email", http.MethodPut, "/cart/email", transport.SetEmailRequest{Email: ptr("not-an-email")}, http.StatusUnprocessableEntity},
		{"no cart yet", http.MethodGet, "/cart", nil, http.StatusNotFound},
		{"merge needs login", http.MethodPost, "/cart/merge", nil, http.StatusUnauthorized},
		{"orders need login", http.MethodGet, "/orders/" + uuid.NewString(), nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCartHTTP_AddressViolationsListed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/cart/addresses", transport.SetAddressesRequest{
		Shipping: &transport.AddressRequest{Address: &models.AddressFields{Street: "1 Main St", Zip: "1", Country: "US"}},
		Billing:  &transport.AddressRequest{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{
		"shipping: city is required",
		"billing: address id or address required",
	}, resp.Violations)
}

func TestCheckoutHTTP_DeclineIsGeneric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cart := env.guestCart(t)
	env.decline.Store(true)

	rec := env.do(t, http.MethodPost, "/checkout", transport.CheckoutRequest{
		PaymentMethodNonce: "nonce",
		PaymentDescriptor:  "visa-1111",
	}, cart)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.NotContains(t, rec.Body.String(), "insufficient funds")

	rec = env.do(t, http.MethodGet, "/cart", nil, cart)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartHTTP_MergeOnLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cart := env.guestCart(t)
	customerID := uuid.New()
	login := accessCookie(t, customerID)

	rec := env.do(t, http.MethodPost, "/cart/merge", nil, login, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	merged := decodeCart(t, rec)
	require.Len(t, merged.Items, 1)

	cleared := cookieNamed(t, rec, identity.CartCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	rec = env.do(t, http.MethodGet, "/cart", nil, login)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, merged.ID, decodeCart(t, rec).ID)

	rec = env.do(t, http.MethodPost, "/cart/merge", nil, login)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, merged.ID, decodeCart(t, rec).ID)

	rec = env.do(t, http.MethodPost, "/cart/merge", nil, accessCookie(t, uuid.New()))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckoutHTTP_GetOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cart := env.guestCart(t)
	customerID := uuid.New()
	login := accessCookie(t, customerID)

	rec := env.do(t, http.MethodPost, "/cart/merge", nil, login, cart)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/checkout", transport.CheckoutRequest{
		PaymentMethodNonce: "nonce",
		PaymentDescriptor:  "visa-1111",
	}, login)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	assert.Equal(t, customerID, placed.CustomerID)

	rec = env.do(t, http.MethodGet, "/orders/"+placed.ID.String(), nil, login)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/"+placed.ID.String(), nil, accessCookie(t, uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_Health(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", nil).Code)

	e := echo.New()
	Register(e, &Deps{
		CartHandler:     &CartHTTP{},
		CheckoutHandler: &CheckoutHTTP{},
		Identity:        identity.New(secret),
		Ready:           func(context.Context) error { return errors.New("db down") },
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
