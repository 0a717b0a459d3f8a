package payloads

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// OrderPlacedEvent is emitted once an order is confirmed.
type OrderPlacedEvent struct {
	OrderID     string            `json:"order_id"`
	SessionKey  string            `json:"session_key"`
	PaymentKind enums.PaymentKind `json:"payment_kind"`
	ItemCount   int               `json:"item_count"`
	Total       decimal.Decimal   `json:"total"`
	ExternalRef string            `json:"external_ref,omitempty"`
}

// OrderRolledBackEvent is emitted when a reserved order is compensated.
type OrderRolledBackEvent struct {
	OrderID    string `json:"order_id"`
	SessionKey string `json:"session_key"`
	Reason     string `json:"reason"`
}
