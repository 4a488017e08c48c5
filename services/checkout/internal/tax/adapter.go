package tax

import (
	"context"

	"github.com/Skotchmaster/storefront/pkg/breaker"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/shopspring/decimal"
)

// Result is the tax service answer for one quote.
type Result struct {
	AmountToCollect decimal.Decimal `json:"amount_to_collect"`
}

type Service interface {
	Calculate(ctx context.Context, q *models.Quote) (*Result, error)
}

// Adapter keeps Quote.Tax in sync with the external tax service. Tax service
// failures degrade to zero tax and are never returned. Callers persist the
// result together with the mutation that triggered it.
type Adapter struct {
	Service Service
	Metrics *metrics.CheckoutMetrics
}

// Recompute sets q.Tax for the quote as it is in memory.
func (a *Adapter) Recompute(ctx context.Context, q *models.Quote) {
	q.Tax = a.amount(ctx, q)
}

func (a *Adapter) amount(ctx context.Context, q *models.Quote) decimal.Decimal {
	if !Eligible(q) {
		return decimal.Zero
	}

	l := logging.FromContext(ctx).With("svc", "tax.adapter")

	res, err := a.Service.Calculate(ctx, q)
	if err != nil {
		reason := "error"
		if breaker.IsOpen(err) {
			reason = "circuit_open"
		}
		a.Metrics.TaxFallback(reason)
		l.Warn("tax_calculation_failed", "quote_id", q.ID, "reason", reason, "error", err)
		return decimal.Zero
	}
	if res == nil || res.AmountToCollect.IsNegative() {
		a.Metrics.TaxFallback("unusable_amount")
		l.Warn("tax_calculation_unusable", "quote_id", q.ID)
		return decimal.Zero
	}
	return res.AmountToCollect.Round(2)
}

// Eligible reports whether a quote has enough data to be taxed.
func Eligible(q *models.Quote) bool {
	if len(q.Items) == 0 || q.ShippingAddressID == nil {
		return false
	}
	return !q.Subtotal().IsZero()
}
