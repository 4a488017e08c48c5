package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/payment"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/Skotchmaster/storefront/services/checkout/internal/tax"
	"github.com/Skotchmaster/storefront/services/checkout/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeTax struct {
	amount decimal.Decimal
	err    error
	calls  int
}

func (f *fakeTax) Calculate(context.Context, *models.Quote) (*tax.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tax.Result{AmountToCollect: f.amount}, nil
}

type fakeGateway struct {
	result  *payment.Result
	err     error
	charged []*models.Order
	nonces  []string
	voided  []string
}

func (f *fakeGateway) CreatePaymentTransaction(_ context.Context, order *models.Order, nonce string) (*payment.Result, error) {
	f.charged = append(f.charged, order)
	f.nonces = append(f.nonces, nonce)
	return f.result, f.err
}

func (f *fakeGateway) VoidTransaction(_ context.Context, id string) error {
	f.voided = append(f.voided, id)
	return nil
}

type published struct {
	topic string
	key   string
	event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: key, event: event.(map[string]any)})
	return nil
}

type testEnv struct {
	repo     *repo.GormRepo
	tax      *fakeTax
	gateway  *fakeGateway
	events   *recordingPublisher
	cart     *CartService
	merge    *MergeService
	checkout *CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	r := &repo.GormRepo{DB: testdb.New(t)}
	taxSvc := &fakeTax{amount: decimal.RequireFromString("12.34")}
	adapter := &tax.Adapter{Service: taxSvc}
	gateway := &fakeGateway{result: &payment.Result{IsSuccess: true, TransactionID: "tx-1"}}
	pub := &recordingPublisher{}

	return &testEnv{
		repo:    r,
		tax:     taxSvc,
		gateway: gateway,
		events:  pub,
		cart: &CartService{
			Repo:    r,
			Tax:     adapter,
			Coupons: &CouponLookup{Repo: r},
		},
		merge:    &MergeService{Repo: r, Tax: adapter, Events: pub},
		checkout: &CheckoutService{Repo: r, Gateway: gateway, Events: pub},
	}
}

func (e *testEnv) product(t *testing.T, sku, price string) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Product " + sku, SKU: sku, Price: decimal.RequireFromString(price), Available: true}
	require.NoError(t, e.repo.DB.Create(p).Error)
	return p
}

func (e *testEnv) coupon(t *testing.T, code, value string, fixed bool) *models.Coupon {
	t.Helper()
	c := &models.Coupon{Code: code, DiscountValue: decimal.RequireFromString(value), IsDiscountFixed: fixed}
	require.NoError(t, e.repo.DB.Create(c).Error)
	return c
}

func (e *testEnv) openQuoteCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.repo.DB.Model(&models.Quote{}).Where("is_open = ?", true).Count(&n).Error)
	return n
}

func (e *testEnv) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.repo.DB.Model(&models.Order{}).Count(&n).Error)
	return n
}

// readyGuestCart builds a guest cart that can be checked out.
func (e *testEnv) readyGuestCart(t *testing.T, token string) *models.Quote {
	t.Helper()
	ctx := context.Background()
	id := Guest(token)
	p := e.product(t, "SKU-"+token, "10.00")

	_, err := e.cart.AddItem(ctx, id, p.ID, 2)
	require.NoError(t, err)
	_, err = e.cart.SetAddresses(ctx, id, AddressInput{
		Shipping: &AddressChoice{Address: testAddress("Ship")},
		Billing:  &AddressChoice{Address: testAddress("Bill")},
	})
	require.NoError(t, err)
	email := token + "@example.com"
	q, err := e.cart.SetEmail(ctx, id, &email)
	require.NoError(t, err)
	return q
}

func testAddress(name string) *models.AddressFields {
	return &models.AddressFields{
		FirstName: name,
		LastName:  "Tester",
		Street:    "1 Main St",
		City:      "Springfield",
		State:     "IL",
		Zip:       "62701",
		Country:   "US",
	}
}

func ptr[T any](v T) *T {
	return &v
}
