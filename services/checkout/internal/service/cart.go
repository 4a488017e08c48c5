package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/pricing"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/Skotchmaster/storefront/services/checkout/internal/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxCalculator sets a quote's tax from its in-memory state. It never fails;
// the caller persists the result.
type TaxCalculator interface {
	Recompute(ctx context.Context, q *models.Quote)
}

type CartService struct {
	Repo    *repo.GormRepo
	Tax     TaxCalculator
	Coupons *CouponLookup
}

// AddressChoice selects one side of the cart's addresses: a saved address by
// id, or a new one. ID wins when both are set.
type AddressChoice struct {
	ID      *uuid.UUID
	Address *models.AddressFields
}

type AddressInput struct {
	Shipping *AddressChoice
	Billing  *AddressChoice
}

func (s *CartService) GetCart(ctx context.Context, id Identity) (*models.Quote, error) {
	return findOpenQuote(ctx, s.Repo, id)
}

func (s *CartService) AddItem(ctx context.Context, id Identity, productID uuid.UUID, quantity int) (*models.Quote, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be greater than zero")
	}
	if err := id.validate(); err != nil {
		return nil, err
	}

	product, err := s.Repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, mapStoreErr(err, "find product")
	}
	if !product.Available {
		return nil, invalid(fmt.Sprintf("product %s is not available", product.SKU))
	}

	q, err := findOrCreateQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}

	var persist func(tx *repo.GormRepo) error
	if item := q.ItemByProduct(productID); item != nil {
		item.Quantity += quantity
		itemID, total := item.ID, item.Quantity
		persist = func(tx *repo.GormRepo) error {
			return tx.UpdateQuoteItemQuantity(ctx, itemID, total)
		}
	} else {
		q.Items = append(q.Items, models.QuoteItem{
			ID:          uuid.New(),
			QuoteID:     q.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Quantity:    quantity,
			UnitPrice:   product.Price,
		})
		created := &q.Items[len(q.Items)-1]
		persist = func(tx *repo.GormRepo) error {
			return tx.CreateQuoteItem(ctx, created)
		}
	}

	if err := s.apply(ctx, q, true, persist); err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateItem sets an item's quantity. A quantity of zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, id Identity, itemID uuid.UUID, quantity int) (*models.Quote, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id, itemID)
	}

	q, err := findOpenQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}
	item := q.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}

	item.Quantity = quantity
	err = s.apply(ctx, q, true, func(tx *repo.GormRepo) error {
		return tx.UpdateQuoteItemQuantity(ctx, itemID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *CartService) RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) (*models.Quote, error) {
	q, err := findOpenQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}
	if q.ItemByID(itemID) == nil {
		return nil, fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}

	q.RemoveItem(itemID)
	err = s.apply(ctx, q, true, func(tx *repo.GormRepo) error {
		return tx.DeleteQuoteItem(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *CartService) SetAddresses(ctx context.Context, id Identity, in AddressInput) (*models.Quote, error) {
	if in.Shipping == nil && in.Billing == nil {
		return nil, invalid("shipping or billing address required")
	}
	var violations []string
	violations = append(violations, validateChoice("shipping", in.Shipping)...)
	violations = append(violations, validateChoice("billing", in.Billing)...)
	if len(violations) > 0 {
		return nil, invalid(violations...)
	}

	q, err := findOrCreateQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}

	shipping, err := s.resolveAddress(ctx, id, q, in.Shipping)
	if err != nil {
		return nil, err
	}
	billing, err := s.resolveAddress(ctx, id, q, in.Billing)
	if err != nil {
		return nil, err
	}

	var fresh []*models.Address
	shippingChanged := false
	if shipping != nil {
		if shipping.ID == uuid.Nil {
			fresh = append(fresh, shipping)
		}
		prepareAddress(id, shipping)
		shippingChanged = q.ShippingAddressID == nil || *q.ShippingAddressID != shipping.ID
		q.ShippingAddressID = &shipping.ID
		q.ShippingAddress = shipping
	}
	if billing != nil {
		if billing.ID == uuid.Nil {
			fresh = append(fresh, billing)
		}
		prepareAddress(id, billing)
		q.BillingAddressID = &billing.ID
		q.BillingAddress = billing
	}

	err = s.apply(ctx, q, shippingChanged, func(tx *repo.GormRepo) error {
		for _, addr := range fresh {
			if err := tx.CreateAddress(ctx, addr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// SetEmail sets the guest contact email. nil or blank clears it.
func (s *CartService) SetEmail(ctx context.Context, id Identity, email *string) (*models.Quote, error) {
	var value *string
	if email != nil && strings.TrimSpace(*email) != "" {
		v := strings.TrimSpace(*email)
		if !validEmail(v) {
			return nil, invalid("email is not a valid address")
		}
		value = &v
	}

	q, err := findOrCreateQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}
	q.Email = value
	if err := s.apply(ctx, q, false, nil); err != nil {
		return nil, err
	}
	return q, nil
}

// SetCoupon attaches the coupon named by code. nil or blank removes the coupon.
func (s *CartService) SetCoupon(ctx context.Context, id Identity, code *string) (*models.Quote, error) {
	var coupon *models.Coupon
	if code != nil && strings.TrimSpace(*code) != "" {
		c, err := s.Coupons.Find(ctx, *code)
		if err != nil {
			return nil, err
		}
		coupon = c
	}

	q, err := findOrCreateQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}

	q.Coupon = coupon
	q.CouponID = nil
	if coupon != nil {
		q.CouponID = &coupon.ID
	}
	if err := s.apply(ctx, q, true, nil); err != nil {
		return nil, err
	}
	return q, nil
}

// apply persists a quote that has already been mutated in memory. Discount and,
// when retax is set, tax are derived first, so the tax service is called
// outside the transaction and its result is written by the same versioned
// header update as the mutation. On error nothing has been stored.
func (s *CartService) apply(ctx context.Context, q *models.Quote, retax bool, persist func(tx *repo.GormRepo) error) error {
	refreshTotals(q)
	if retax && s.Tax != nil {
		s.Tax.Recompute(ctx, q)
	}

	err := s.Repo.WithTx(ctx, func(tx *repo.GormRepo) error {
		if persist != nil {
			if err := persist(tx); err != nil {
				return err
			}
		}
		return tx.UpdateQuote(ctx, q)
	})
	return mapStoreErr(err, "save cart")
}

// refreshTotals recomputes the discount and zeroes tax for quotes that can
// no longer be taxed.
func refreshTotals(q *models.Quote) {
	q.Discount = pricing.ComputeDiscount(q.Coupon, q.Subtotal())
	if !tax.Eligible(q) {
		q.Tax = decimal.Zero
	}
}

func (s *CartService) resolveAddress(ctx context.Context, id Identity, q *models.Quote, choice *AddressChoice) (*models.Address, error) {
	if choice == nil {
		return nil, nil
	}
	if choice.ID == nil {
		return &models.Address{AddressFields: *choice.Address}, nil
	}

	addr, err := s.Repo.FindAddressByID(ctx, *choice.ID)
	if err != nil {
		return nil, mapStoreErr(err, "find address")
	}
	if !addressVisible(id, q, addr) {
		return nil, fmt.Errorf("address %s: %w", addr.ID, ErrNotFound)
	}
	return addr, nil
}

// prepareAddress gives a new inline address its id up front and attaches it to
// the authenticated customer.
func prepareAddress(id Identity, addr *models.Address) {
	if addr.ID != uuid.Nil {
		return
	}
	addr.ID = uuid.New()
	if id.IsCustomer() {
		cid := *id.CustomerID
		addr.CustomerID = &cid
	}
}

// addressVisible reports whether a saved address may be used on q: it must be
// the customer's own, or already attached to this quote.
func addressVisible(id Identity, q *models.Quote, addr *models.Address) bool {
	if id.IsCustomer() && addr.CustomerID != nil && *addr.CustomerID == *id.CustomerID {
		return true
	}
	if q.ShippingAddressID != nil && *q.ShippingAddressID == addr.ID {
		return true
	}
	return q.BillingAddressID != nil && *q.BillingAddressID == addr.ID
}

func validateChoice(side string, choice *AddressChoice) []string {
	if choice == nil || choice.ID != nil {
		return nil
	}
	if choice.Address == nil {
		return []string{side + ": address id or address required"}
	}
	return validateAddress(side, choice.Address)
}

func validateAddress(side string, a *models.AddressFields) []string {
	var out []string
	required := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"zip", a.Zip},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, side+": "+f.name+" is required")
		}
	}
	return out
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	return err == nil && addr.Address == v
}
