package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// DiscountPolicy maps a coupon code and subtotal to a discount amount.
type DiscountPolicy interface {
	Compute(code string, subtotal decimal.Decimal) decimal.Decimal
}

// Pricing carries the fee and tax constants applied on top of the subtotal.
type Pricing struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
	// ClampTotal floors the total at zero when the discount exceeds subtotal and fees.
	ClampTotal bool
}

// DefaultPricing is a flat fee of 50, a 15% tax and no clamping.
func DefaultPricing() Pricing {
	return Pricing{
		ShippingFee: decimal.NewFromInt(50),
		TaxRate:     decimal.New(15, -2),
	}
}

// PricingFromConfig reads the pricing constants from the checkout config.
func PricingFromConfig(cfg config.CheckoutConfig) Pricing {
	return Pricing{
		ShippingFee: cfg.ShippingFeeAmount(),
		TaxRate:     cfg.TaxRateValue(),
		ClampTotal:  cfg.ClampTotal,
	}
}

// Totals is the price breakdown of a cart.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// Cart is the per-session aggregate of line items, discount and the
// shipping/payment records captured by the checkout steps.
type Cart struct {
	pricing   Pricing
	discounts DiscountPolicy

	items          []LineItem
	discountCode   string
	discountAmount decimal.Decimal
	shipping       *checkout.ShippingAddress
	payment        *checkout.PaymentSelection
}

// New returns an empty cart.
func New(pricing Pricing, discounts DiscountPolicy) *Cart {
	return &Cart{pricing: pricing, discounts: discounts}
}

// AddItem merges quantity into the line sharing the product/variant identity,
// or appends a new line. There is no upper bound at this layer.
func (c *Cart) AddItem(input ItemInput, quantity int) (LineItem, error) {
	if strings.TrimSpace(input.ProductID) == "" {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.UnitPrice.IsNegative() {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}

	id := LineID(input.ProductID, input.VariantID)
	if idx := c.indexOf(id); idx >= 0 {
		c.items[idx].Quantity += quantity
		c.recomputeDiscount()
		return c.items[idx], nil
	}

	item := LineItem{
		ID:          id,
		ProductID:   strings.TrimSpace(input.ProductID),
		VariantID:   strings.TrimSpace(input.VariantID),
		Name:        input.Name,
		UnitPrice:   input.UnitPrice,
		Quantity:    quantity,
		Image:       input.Image,
		VendorLabel: input.VendorLabel,
	}
	c.items = append(c.items, item)
	c.recomputeDiscount()
	return item, nil
}

// UpdateQuantity sets an absolute quantity. A quantity of zero or less removes the line.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	if quantity <= 0 {
		c.RemoveItem(id)
		return nil
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").WithDetails(map[string]string{"itemId": id})
	}
	c.items[idx].Quantity = quantity
	c.recomputeDiscount()
	return nil
}

// RemoveItem deletes a line; unknown ids are ignored.
func (c *Cart) RemoveItem(id string) {
	idx := c.indexOf(id)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.recomputeDiscount()
}

// Clear empties the items and drops the discount. Shipping and payment are kept.
func (c *Cart) Clear() {
	c.items = nil
	c.discountCode = ""
	c.discountAmount = decimal.Zero
}

// Item returns the line with the given id.
func (c *Cart) Item(id string) (LineItem, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return LineItem{}, false
	}
	return c.items[idx], true
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// ItemCount sums the quantities of all lines.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// Subtotal sums unitPrice × quantity over every line.
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// ApplyDiscount stores code and the amount the policy yields for the current subtotal.
// The code is kept exactly as given; an unrecognized code is stored with a
// zero amount.
func (c *Cart) ApplyDiscount(code string) decimal.Decimal {
	c.discountCode = code
	c.recomputeDiscount()
	return c.discountAmount
}

func (c *Cart) DiscountCode() string {
	return c.discountCode
}

func (c *Cart) DiscountAmount() decimal.Decimal {
	return c.discountAmount
}

// Tax is subtotal × tax rate.
func (c *Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(c.pricing.TaxRate)
}

// Total is subtotal + shipping + tax - discount. The shipping fee applies to
// empty carts too. Unless ClampTotal is set the result may be negative.
func (c *Cart) Total() decimal.Decimal {
	total := c.Subtotal().Add(c.pricing.ShippingFee).Add(c.Tax()).Sub(c.discountAmount)
	if c.pricing.ClampTotal && total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Totals returns the full price breakdown.
func (c *Cart) Totals() Totals {
	return Totals{
		Subtotal:  c.Subtotal(),
		Shipping:  c.pricing.ShippingFee,
		Tax:       c.Tax(),
		Discount:  c.discountAmount,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}

func (c *Cart) ShippingAddress() (checkout.ShippingAddress, bool) {
	if c.shipping == nil {
		return checkout.ShippingAddress{}, false
	}
	return *c.shipping, true
}

// SetShippingAddress overwrites any previously captured address.
func (c *Cart) SetShippingAddress(addr checkout.ShippingAddress) {
	c.shipping = &addr
}

func (c *Cart) ClearShippingAddress() {
	c.shipping = nil
}

func (c *Cart) PaymentSelection() (checkout.PaymentSelection, bool) {
	if c.payment == nil {
		return checkout.PaymentSelection{}, false
	}
	return *c.payment, true
}

// SetPaymentSelection overwrites any previously chosen payment.
func (c *Cart) SetPaymentSelection(sel checkout.PaymentSelection) {
	c.payment = &sel
}

func (c *Cart) ClearPaymentSelection() {
	c.payment = nil
}

func (c *Cart) indexOf(id string) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) recomputeDiscount() {
	if c.discountCode == "" || c.discounts == nil {
		c.discountAmount = decimal.Zero
		return
	}
	c.discountAmount = c.discounts.Compute(c.discountCode, c.Subtotal())
}
