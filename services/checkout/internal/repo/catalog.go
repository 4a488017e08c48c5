package repo

import (
	"context"
	"strings"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/google/uuid"
)

func (r *GormRepo) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindCouponByCode matches codes case-insensitively; codes are stored upper-case.
func (r *GormRepo) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.DB.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
