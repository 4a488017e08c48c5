package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) quoteQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("ShippingAddress").
		Preload("BillingAddress").
		Preload("Coupon")
}

func (r *GormRepo) FindOpenQuoteByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Quote, error) {
	var q models.Quote
	err := r.quoteQuery(ctx).Where("customer_id = ? AND is_open = ?", customerID, true).First(&q).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (r *GormRepo) FindOpenQuoteByGuest(ctx context.Context, token string) (*models.Quote, error) {
	var q models.Quote
	err := r.quoteQuery(ctx).Where("guest_token = ? AND is_open = ?", token, true).First(&q).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (r *GormRepo) FindQuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var q models.Quote
	if err := r.quoteQuery(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

// CreateQuote inserts an empty open quote. A second open quote for the same
// identity is rejected by the partial unique indexes and reported as ErrDuplicate.
func (r *GormRepo) CreateQuote(ctx context.Context, q *models.Quote) error {
	q.IsOpen = true
	q.Version = 1
	err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(q).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// UpdateQuote writes the quote header with a version check. On success
// q.Version is advanced to the stored value.
func (r *GormRepo) UpdateQuote(ctx context.Context, q *models.Quote) error {
	return r.versioned(ctx, q, map[string]any{
		"customer_id":         q.CustomerID,
		"guest_token":         q.GuestToken,
		"email":               q.Email,
		"shipping_address_id": q.ShippingAddressID,
		"billing_address_id":  q.BillingAddressID,
		"coupon_id":           q.CouponID,
		"discount":            q.Discount,
		"tax":                 q.Tax,
	})
}

func (r *GormRepo) CloseQuote(ctx context.Context, q *models.Quote) error {
	if err := r.versioned(ctx, q, map[string]any{"is_open": false}); err != nil {
		return err
	}
	q.IsOpen = false
	return nil
}

// DeleteQuote removes the quote and its items. The quote row is deleted with a
// version check so a concurrent writer is detected.
func (r *GormRepo) DeleteQuote(ctx context.Context, q *models.Quote) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("quote_id = ?", q.ID).Delete(&models.QuoteItem{}).Error; err != nil {
		return fmt.Errorf("delete quote items: %w", err)
	}
	res := db.Where("id = ? AND version = ? AND is_open = ?", q.ID, q.Version, true).Delete(&models.Quote{})
	if res.Error != nil {
		return fmt.Errorf("delete quote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.lostUpdate(ctx, q.ID)
	}
	return nil
}

func (r *GormRepo) versioned(ctx context.Context, q *models.Quote, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = r.DB.NowFunc()

	res := r.DB.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ? AND version = ? AND is_open = ?", q.ID, q.Version, true).
		Updates(fields)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		// another open quote already owns the identity being written
		return ErrConflict
	}
	if res.Error != nil {
		return fmt.Errorf("update quote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.lostUpdate(ctx, q.ID)
	}
	q.Version++
	return nil
}

// lostUpdate tells a vanished or closed quote apart from a stale version.
func (r *GormRepo) lostUpdate(ctx context.Context, id uuid.UUID) error {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ? AND is_open = ?", id, true).
		Count(&n).Error; err != nil {
		return fmt.Errorf("check quote: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// CreateQuoteItem inserts a line. A line for the same product written by a
// concurrent request is reported as ErrConflict.
func (r *GormRepo) CreateQuoteItem(ctx context.Context, item *models.QuoteItem) error {
	err := r.DB.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

func (r *GormRepo) UpdateQuoteItemQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	res := r.DB.WithContext(ctx).Model(&models.QuoteItem{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) DeleteQuoteItem(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.QuoteItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
