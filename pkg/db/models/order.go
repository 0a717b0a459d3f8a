package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Order is the persisted snapshot of a checkout at submission time.
type Order struct {
	ID             string            `gorm:"column:id;primaryKey"`
	SessionKey     string            `gorm:"column:session_key;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;not null"`
	PaymentKind    enums.PaymentKind `gorm:"column:payment_kind;not null"`
	CardLast4      *string           `gorm:"column:card_last4"`
	DiscountCode   *string           `gorm:"column:discount_code"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingFee    decimal.Decimal   `gorm:"column:shipping_fee;type:numeric(12,2);not null"`
	Tax            decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	Discount       decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	ShipFullName   string            `gorm:"column:ship_full_name;not null"`
	ShipPhone      string            `gorm:"column:ship_phone;not null"`
	ShipAddress    string            `gorm:"column:ship_address;not null"`
	ShipCity       string            `gorm:"column:ship_city;not null"`
	ShipPostalCode string            `gorm:"column:ship_postal_code;not null"`
	ExternalRef    *string           `gorm:"column:external_ref"`
	FailureReason  *string           `gorm:"column:failure_reason"`
	LineItems      []OrderLineItem   `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
