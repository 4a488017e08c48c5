package transport

import (
	"time"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// AddressRequest picks a saved address by id or carries a new one.
type AddressRequest struct {
	ID      *uuid.UUID            `json:"id,omitempty"`
	Address *models.AddressFields `json:"address,omitempty"`
}

type SetAddressesRequest struct {
	Shipping *AddressRequest `json:"shipping,omitempty"`
	Billing  *AddressRequest `json:"billing,omitempty"`
}

type SetEmailRequest struct {
	Email *string `json:"email"`
}

type SetCouponRequest struct {
	Code *string `json:"code"`
}

type CheckoutRequest struct {
	PaymentMethodNonce string `json:"payment_method_nonce"`
	PaymentDescriptor  string `json:"payment_descriptor"`
}

type CartItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type AddressResponse struct {
	ID uuid.UUID `json:"id"`
	models.AddressFields
}

type CartResponse struct {
	ID              uuid.UUID          `json:"id"`
	Items           []CartItemResponse `json:"items"`
	Email           *string            `json:"email,omitempty"`
	ShippingAddress *AddressResponse   `json:"shipping_address,omitempty"`
	BillingAddress  *AddressResponse   `json:"billing_address,omitempty"`
	CouponCode      string             `json:"coupon_code,omitempty"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Discount        decimal.Decimal    `json:"discount"`
	Tax             decimal.Decimal    `json:"tax"`
	Total           decimal.Decimal    `json:"total"`
	Version         int64              `json:"version"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type ErrorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func NewCartResponse(q *models.Quote) CartResponse {
	resp := CartResponse{
		ID:        q.ID,
		Items:     make([]CartItemResponse, 0, len(q.Items)),
		Email:     q.Email,
		Subtotal:  q.Subtotal(),
		Discount:  q.Discount,
		Tax:       q.Tax,
		Total:     q.Total(),
		Version:   q.Version,
		UpdatedAt: q.UpdatedAt,
	}
	for _, it := range q.Items {
		resp.Items = append(resp.Items, CartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
		})
	}
	if q.ShippingAddress != nil {
		resp.ShippingAddress = &AddressResponse{ID: q.ShippingAddress.ID, AddressFields: q.ShippingAddress.AddressFields}
	}
	if q.BillingAddress != nil {
		resp.BillingAddress = &AddressResponse{ID: q.BillingAddress.ID, AddressFields: q.BillingAddress.AddressFields}
	}
	if q.Coupon != nil {
		resp.CouponCode = q.Coupon.Code
	}
	return resp
}
