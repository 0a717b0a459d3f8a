package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineItem captures the snapshot of each cart line within an order.
type OrderLineItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     string          `gorm:"column:order_id;not null;index"`
	LineID      string          `gorm:"column:line_id;not null"`
	ProductID   string          `gorm:"column:product_id;not null"`
	VariantID   *string         `gorm:"column:variant_id"`
	Name        string          `gorm:"column:name;not null"`
	Image       *string         `gorm:"column:image"`
	VendorLabel *string         `gorm:"column:vendor_label"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position    int             `gorm:"column:position;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
