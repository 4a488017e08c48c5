package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOrder inserts the order header and then its items.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if err := db.Create(&order.Items).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
	}
	return nil
}

func (r *GormRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_name, id") }).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *GormRepo) CountOrdersByQuote(ctx context.Context, quoteID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("quote_id = ?", quoteID).Count(&n).Error
	return n, err
}
