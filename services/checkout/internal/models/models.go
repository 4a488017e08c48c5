package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

const (
	PaymentMethodFree = "free_order"
	PaymentMethodCard = "credit_card"
)

// Product is the read-only catalog view the cart needs.
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"         json:"id"`
	Name      string          `gorm:"not null"                     json:"name"`
	SKU       string          `gorm:"uniqueIndex;not null"         json:"sku"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"price"`
	Available bool            `gorm:"not null"                     json:"available"`
}

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Email     string    `gorm:"uniqueIndex;not null"  json:"email"`
	CreatedAt time.Time `                             json:"created_at"`
}

type AddressFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type Address struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	CustomerID    *uuid.UUID `gorm:"type:uuid;index"       json:"customer_id,omitempty"`
	AddressFields `gorm:"embedded"`
	CreatedAt     time.Time `json:"created_at"`
}

type Coupon struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"                  json:"id"`
	Code            string          `gorm:"uniqueIndex;not null"                  json:"code"`
	DiscountValue   decimal.Decimal `gorm:"type:numeric(12,2);not null"           json:"discount_value"`
	IsDiscountFixed bool            `gorm:"not null"                              json:"is_discount_fixed"`
}

// Quote is the mutable cart. Exactly one open quote exists per customer id or
// guest token; once IsOpen is false the row is never written again.
type Quote struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"                   json:"id"`
	IsOpen            bool            `gorm:"not null;index"                         json:"is_open"`
	CustomerID        *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_quotes_open_customer,where:is_open"  json:"customer_id,omitempty"`
	GuestToken        *string         `gorm:"uniqueIndex:idx_quotes_open_guest,where:is_open"               json:"-"`
	Email             *string         `                                              json:"email,omitempty"`
	ShippingAddressID *uuid.UUID      `gorm:"type:uuid"                              json:"shipping_address_id,omitempty"`
	BillingAddressID  *uuid.UUID      `gorm:"type:uuid"                              json:"billing_address_id,omitempty"`
	CouponID          *uuid.UUID      `gorm:"type:uuid"                              json:"coupon_id,omitempty"`
	Discount          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"  json:"discount"`
	Tax               decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"  json:"tax"`
	Version           int64           `gorm:"not null"                               json:"version"`
	CreatedAt         time.Time       `                                              json:"created_at"`
	UpdatedAt         time.Time       `                                              json:"updated_at"`

	Items           []QuoteItem `gorm:"foreignKey:QuoteID"            json:"items"`
	ShippingAddress *Address    `gorm:"foreignKey:ShippingAddressID"  json:"shipping_address,omitempty"`
	BillingAddress  *Address    `gorm:"foreignKey:BillingAddressID"   json:"billing_address,omitempty"`
	Coupon          *Coupon     `gorm:"foreignKey:CouponID"           json:"coupon,omitempty"`
}

type QuoteItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"               json:"id"`
	QuoteID     uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_quote_items_product;not null"  json:"quote_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_quote_items_product;not null"        json:"product_id"`
	ProductName string          `gorm:"not null"                           json:"product_name"`
	SKU         string          `gorm:"not null"                           json:"sku"`
	Quantity    int             `gorm:"not null;check:quantity > 0"        json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"unit_price"`
	CreatedAt   time.Time       `                                          json:"created_at"`
}

type Order struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"                                json:"id"`
	CustomerID        uuid.UUID       `gorm:"type:uuid;index;not null"                            json:"customer_id"`
	QuoteID           uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"                      json:"quote_id"`
	CouponID          *uuid.UUID      `gorm:"type:uuid"                                           json:"coupon_id,omitempty"`
	Email             string          `                                                           json:"email"`
	Subtotal          decimal.Decimal `gorm:"type:numeric(12,2);not null"                         json:"subtotal"`
	Discount          decimal.Decimal `gorm:"type:numeric(12,2);not null"                         json:"discount"`
	Tax               decimal.Decimal `gorm:"type:numeric(12,2);not null"                         json:"tax"`
	Total             decimal.Decimal `gorm:"type:numeric(12,2);not null"                         json:"total"`
	ShippingAddress   AddressFields   `gorm:"embedded;embeddedPrefix:shipping_"                   json:"shipping_address"`
	BillingAddress    AddressFields   `gorm:"embedded;embeddedPrefix:billing_"                    json:"billing_address"`
	Status            OrderStatus     `gorm:"type:varchar(32);not null"                           json:"status"`
	PaymentMethod     string          `gorm:"not null"                                            json:"payment_method"`
	PaymentDescriptor string          `                                                           json:"payment_descriptor,omitempty"`
	TransactionID     *string         `                                                           json:"transaction_id,omitempty"`
	CreatedAt         time.Time       `                                                           json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"         json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"     json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"           json:"product_id"`
	ProductName string          `gorm:"not null"                     json:"product_name"`
	SKU         string          `gorm:"not null"                     json:"sku"`
	Quantity    int             `gorm:"not null"                     json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"line_total"`
}

// All lists every table owned by the checkout service, in dependency order.
func All() []any {
	return []any{
		&Product{}, &Customer{}, &Address{}, &Coupon{},
		&Quote{}, &QuoteItem{}, &Order{}, &OrderItem{},
	}
}

func (i QuoteItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (q *Quote) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range q.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (q *Quote) Total() decimal.Decimal {
	return q.Subtotal().Sub(q.Discount).Add(q.Tax)
}

func (q *Quote) ItemByProduct(productID uuid.UUID) *QuoteItem {
	for i := range q.Items {
		if q.Items[i].ProductID == productID {
			return &q.Items[i]
		}
	}
	return nil
}

func (q *Quote) ItemByID(id uuid.UUID) *QuoteItem {
	for i := range q.Items {
		if q.Items[i].ID == id {
			return &q.Items[i]
		}
	}
	return nil
}

func (q *Quote) RemoveItem(id uuid.UUID) {
	for i := range q.Items {
		if q.Items[i].ID == id {
			q.Items = append(q.Items[:i], q.Items[i+1:]...)
			return
		}
	}
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (i *QuoteItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (Quote) TableName() string {
	return "quotes"
}

func (QuoteItem) TableName() string {
	return "quote_items"
}
