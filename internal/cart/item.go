package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVariant stands in for a missing variant in line identities.
const DefaultVariant = "default"

// LineItem is one product (optionally a variant) and its quantity.
type LineItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	VariantID   string          `json:"variantId,omitempty"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image,omitempty"`
	VendorLabel string          `json:"vendorLabel,omitempty"`
}

// LineTotal is unitPrice × quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ItemInput describes a product being added to the cart.
type ItemInput struct {
	ProductID   string
	VariantID   string
	Name        string
	UnitPrice   decimal.Decimal
	Image       string
	VendorLabel string
}

// LineID builds the merge identity of a product/variant pair.
func LineID(productID, variantID string) string {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		variantID = DefaultVariant
	}
	return strings.TrimSpace(productID) + ":" + variantID
}
