package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/payment"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/google/uuid"
)

// PaymentNonce is the client-side tokenized payment method.
type PaymentNonce struct {
	Value      string
	Descriptor string
}

type CheckoutService struct {
	Repo    *repo.GormRepo
	Gateway payment.Gateway
	Events  events.Publisher
	Metrics *metrics.CheckoutMetrics
}

// Checkout turns the identity's open quote into a pending order. The charge
// happens before the commit; if the commit then fails the charge is voided.
func (s *CheckoutService) Checkout(ctx context.Context, id Identity, nonce PaymentNonce) (*models.Order, error) {
	order, err := s.checkout(ctx, id, nonce)
	s.Metrics.Checkout(checkoutOutcome(order, err))
	return order, err
}

func (s *CheckoutService) checkout(ctx context.Context, id Identity, nonce PaymentNonce) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout")

	q, err := findOpenQuote(ctx, s.Repo, id)
	if err != nil {
		return nil, err
	}
	l = l.With("quote_id", q.ID)

	order := snapshotOrder(q)
	if violations := validateCheckout(id, q, order, nonce); len(violations) > 0 {
		return nil, invalid(violations...)
	}

	if order.Total.IsPositive() {
		order.PaymentMethod = models.PaymentMethodCard
		order.PaymentDescriptor = strings.TrimSpace(nonce.Descriptor)

		res, err := s.Gateway.CreatePaymentTransaction(ctx, order, nonce.Value)
		if err != nil {
			l.Error("payment_failed", "order_id", order.ID, "error", err)
			return nil, fmt.Errorf("charge order: %w", ErrPaymentFailed)
		}
		if res == nil || !res.IsSuccess {
			reason := ""
			if res != nil {
				reason = res.Message
			}
			l.Warn("payment_declined", "order_id", order.ID, "reason", reason)
			return nil, fmt.Errorf("charge order: %w", ErrPaymentFailed)
		}
		txID := res.TransactionID
		order.TransactionID = &txID
	} else {
		order.PaymentMethod = models.PaymentMethodFree
	}

	err = s.Repo.WithTx(ctx, func(tx *repo.GormRepo) error {
		if err := s.attachCustomer(ctx, tx, id, q, order); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.CloseQuote(ctx, q)
	})
	if err != nil {
		if order.TransactionID != nil {
			s.void(ctx, *order.TransactionID)
		}
		l.Error("place_order_failed", "order_id", order.ID, "error", err)
		return nil, mapStoreErr(err, "place order")
	}

	l.Info("order_placed", "order_id", order.ID, "total", order.Total.String(), "payment_method", order.PaymentMethod)
	publish(ctx, s.Events, events.TopicOrders, order.CustomerID.String(), map[string]any{
		"type":       "order_placed",
		"orderID":    order.ID,
		"customerID": order.CustomerID,
		"quoteID":    order.QuoteID,
		"total":      order.Total.String(),
		"items":      len(order.Items),
		"at":         order.CreatedAt,
	})
	return order, nil
}

// GetOrder returns an order owned by the calling customer.
func (s *CheckoutService) GetOrder(ctx context.Context, id Identity, orderID uuid.UUID) (*models.Order, error) {
	if !id.IsCustomer() {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	order, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapStoreErr(err, "find order")
	}
	if order.CustomerID != *id.CustomerID {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// attachCustomer sets the order owner. Guests become customers keyed by their
// email, and their cart addresses move to that customer.
func (s *CheckoutService) attachCustomer(ctx context.Context, tx *repo.GormRepo, id Identity, q *models.Quote, order *models.Order) error {
	if id.IsCustomer() {
		order.CustomerID = *id.CustomerID
		if order.Email != "" {
			return nil
		}
		c, err := tx.FindCustomerByID(ctx, order.CustomerID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		order.Email = c.Email
		return nil
	}

	c, err := tx.FindOrCreateCustomerByEmail(ctx, order.Email)
	if err != nil {
		return err
	}
	order.CustomerID = c.ID
	return tx.AssignAddressesToCustomer(ctx, c.ID, quoteAddressIDs(q)...)
}

func (s *CheckoutService) void(ctx context.Context, transactionID string) {
	l := logging.FromContext(ctx)
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Gateway.VoidTransaction(voidCtx, transactionID); err != nil {
		l.Error("payment_void_failed", "transaction_id", transactionID, "error", err)
		return
	}
	l.Warn("payment_voided", "transaction_id", transactionID)
}

func snapshotOrder(q *models.Quote) *models.Order {
	order := &models.Order{
		ID:       uuid.New(),
		QuoteID:  q.ID,
		CouponID: q.CouponID,
		Subtotal: q.Subtotal(),
		Discount: q.Discount,
		Tax:      q.Tax,
		Total:    q.Total(),
		Status:   models.OrderStatusPending,
	}
	if q.Email != nil {
		order.Email = *q.Email
	}
	if q.ShippingAddress != nil {
		order.ShippingAddress = q.ShippingAddress.AddressFields
	}
	if q.BillingAddress != nil {
		order.BillingAddress = q.BillingAddress.AddressFields
	}
	for _, it := range q.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
		})
	}
	return order
}

func validateCheckout(id Identity, q *models.Quote, order *models.Order, nonce PaymentNonce) []string {
	var v []string
	if len(q.Items) == 0 {
		v = append(v, "must have at least one item")
	}
	if q.ShippingAddress == nil {
		v = append(v, "shipping address required")
	}
	if q.BillingAddress == nil {
		v = append(v, "billing address required")
	}
	if !id.IsCustomer() && order.Email == "" {
		v = append(v, "email required for guest orders")
	}
	if order.Total.IsPositive() {
		if strings.TrimSpace(nonce.Value) == "" {
			v = append(v, "payment nonce value required")
		}
		if strings.TrimSpace(nonce.Descriptor) == "" {
			v = append(v, "payment nonce descriptor required")
		}
	}
	return v
}

func checkoutOutcome(order *models.Order, err error) string {
	switch {
	case err == nil && order.PaymentMethod == models.PaymentMethodFree:
		return "placed_free"
	case err == nil:
		return "placed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
