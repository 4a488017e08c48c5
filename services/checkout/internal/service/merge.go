package service

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/Skotchmaster/storefront/services/checkout/internal/tax"
	"github.com/google/uuid"
)

const (
	mergeNone       = "none"
	mergeKept       = "customer_only"
	mergeReassigned = "reassigned"
	mergeCombined   = "merged"
)

// MergeService folds a guest cart into the customer's cart on login.
type MergeService struct {
	Repo    *repo.GormRepo
	Tax     TaxCalculator
	Events  events.Publisher
	Metrics *metrics.CheckoutMetrics
}

// ResolveIdentity is called once per guest to customer transition. It returns
// the customer's resulting open quote, or nil when neither side has one.
func (s *MergeService) ResolveIdentity(ctx context.Context, guestToken string, customerID uuid.UUID) (*models.Quote, error) {
	if customerID == uuid.Nil {
		return nil, invalid("customer id required")
	}
	l := logging.FromContext(ctx).With("svc", "cart.merge", "customer_id", customerID)

	var guest *models.Quote
	if guestToken != "" {
		q, err := s.Repo.FindOpenQuoteByGuest(ctx, guestToken)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, mapStoreErr(err, "find guest cart")
		}
		guest = q
	}
	customer, err := s.Repo.FindOpenQuoteByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, mapStoreErr(err, "find customer cart")
	}

	switch {
	case guest == nil && customer == nil:
		s.Metrics.Merge(mergeNone)
		return nil, nil
	case guest == nil:
		s.Metrics.Merge(mergeKept)
		return customer, nil
	case customer == nil:
		if err := s.reassign(ctx, guest, customerID); err != nil {
			return nil, err
		}
		s.Metrics.Merge(mergeReassigned)
		l.Info("guest_cart_reassigned", "quote_id", guest.ID)
		return guest, nil
	}

	moved := len(guest.Items)
	if err := s.combine(ctx, guest, customer); err != nil {
		return nil, err
	}

	s.Metrics.Merge(mergeCombined)
	l.Info("guest_cart_merged", "quote_id", customer.ID, "guest_quote_id", guest.ID, "items", moved)
	publish(ctx, s.Events, events.TopicCarts, customerID.String(), map[string]any{
		"type":            "cart_merged",
		"customerID":      customerID,
		"quoteID":         customer.ID,
		"guestQuoteID":    guest.ID,
		"mergedItems":     moved,
		"itemsAfterMerge": len(customer.Items),
		"at":              time.Now().UTC(),
	})
	return customer, nil
}

// reassign hands the whole guest quote to the customer, together with any
// unowned addresses it references.
func (s *MergeService) reassign(ctx context.Context, guest *models.Quote, customerID uuid.UUID) error {
	err := s.Repo.WithTx(ctx, func(tx *repo.GormRepo) error {
		guest.CustomerID = &customerID
		guest.GuestToken = nil
		if err := tx.UpdateQuote(ctx, guest); err != nil {
			return err
		}
		return tx.AssignAddressesToCustomer(ctx, customerID, quoteAddressIDs(guest)...)
	})
	return mapStoreErr(err, "reassign guest cart")
}

// combine adds guest quantities onto matching customer items, copies the rest
// and deletes the guest quote. Customer email, addresses and coupon are kept.
// Totals and tax are settled in memory before the single transaction that
// stores the merge.
func (s *MergeService) combine(ctx context.Context, guest, customer *models.Quote) error {
	var updated []uuid.UUID
	created := len(customer.Items)
	for _, gi := range guest.Items {
		if ci := customer.ItemByProduct(gi.ProductID); ci != nil {
			ci.Quantity += gi.Quantity
			updated = append(updated, ci.ID)
			continue
		}
		customer.Items = append(customer.Items, models.QuoteItem{
			ID:          uuid.New(),
			QuoteID:     customer.ID,
			ProductID:   gi.ProductID,
			ProductName: gi.ProductName,
			SKU:         gi.SKU,
			Quantity:    gi.Quantity,
			UnitPrice:   gi.UnitPrice,
		})
	}

	refreshTotals(customer)
	if s.Tax != nil && tax.Eligible(customer) {
		s.Tax.Recompute(ctx, customer)
	}

	err := s.Repo.WithTx(ctx, func(tx *repo.GormRepo) error {
		for _, id := range updated {
			if err := tx.UpdateQuoteItemQuantity(ctx, id, customer.ItemByID(id).Quantity); err != nil {
				return err
			}
		}
		for i := created; i < len(customer.Items); i++ {
			if err := tx.CreateQuoteItem(ctx, &customer.Items[i]); err != nil {
				return err
			}
		}
		if err := tx.DeleteQuote(ctx, guest); err != nil {
			return err
		}
		return tx.UpdateQuote(ctx, customer)
	})
	return mapStoreErr(err, "merge carts")
}

func quoteAddressIDs(q *models.Quote) []uuid.UUID {
	var ids []uuid.UUID
	if q.ShippingAddressID != nil {
		ids = append(ids, *q.ShippingAddressID)
	}
	if q.BillingAddressID != nil {
		ids = append(ids, *q.BillingAddressID)
	}
	return ids
}
