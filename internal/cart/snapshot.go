package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/checkout"
)

// Snapshot is the serializable form of a cart. Card CVVs are never included.
type Snapshot struct {
	Items            []LineItem                 `json:"items"`
	DiscountCode     string                     `json:"discountCode,omitempty"`
	DiscountAmount   decimal.Decimal            `json:"discountAmount"`
	ShippingAddress  *checkout.ShippingAddress  `json:"shippingAddress,omitempty"`
	PaymentSelection *checkout.PaymentSelection `json:"paymentSelection,omitempty"`
}

// State is the full per-session blob: the cart plus the wizard position.
type State struct {
	Cart         Snapshot  `json:"cart"`
	CheckoutStep int       `json:"checkoutStep"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot captures the cart for persistence.
func (c *Cart) Snapshot() Snapshot {
	snap := Snapshot{
		Items:          c.Items(),
		DiscountCode:   c.discountCode,
		DiscountAmount: c.discountAmount,
	}
	if c.shipping != nil {
		addr := *c.shipping
		snap.ShippingAddress = &addr
	}
	if c.payment != nil {
		sel := c.payment.WithoutSecrets()
		snap.PaymentSelection = &sel
	}
	return snap
}

// Restore replaces the cart contents with snap. Lines with a non-positive
// quantity are dropped and the discount amount is recomputed rather than trusted.
func (c *Cart) Restore(snap Snapshot) {
	c.items = make([]LineItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		if item.Quantity < 1 {
			continue
		}
		if item.ID == "" {
			item.ID = LineID(item.ProductID, item.VariantID)
		}
		c.items = append(c.items, item)
	}
	c.discountCode = snap.DiscountCode
	c.shipping = nil
	if snap.ShippingAddress != nil {
		addr := *snap.ShippingAddress
		c.shipping = &addr
	}
	c.payment = nil
	if snap.PaymentSelection != nil {
		sel := *snap.PaymentSelection
		c.payment = &sel
	}
	c.recomputeDiscount()
}
