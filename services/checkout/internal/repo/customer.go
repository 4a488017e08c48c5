package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindOrCreateCustomerByEmail returns the customer owning email, creating one
// when none exists. Emails are compared lower-cased.
func (r *GormRepo) FindOrCreateCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	c := models.Customer{Email: email}
	if err := r.DB.WithContext(ctx).Where("email = ?", email).FirstOrCreate(&c).Error; err != nil {
		return nil, fmt.Errorf("find or create customer: %w", err)
	}
	return &c, nil
}

func (r *GormRepo) FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var a models.Address
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormRepo) CreateAddress(ctx context.Context, a *models.Address) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

// AssignAddressesToCustomer attaches guest addresses (no owner yet) to customerID.
// Addresses already owned by someone are left alone.
func (r *GormRepo) AssignAddressesToCustomer(ctx context.Context, customerID uuid.UUID, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&models.Address{}).
		Where("id IN ? AND customer_id IS NULL", ids).
		Update("customer_id", customerID).Error
}
