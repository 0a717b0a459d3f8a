package orders

import (
	"math/big"

	"github.com/google/uuid"
)

const orderIDPrefix = "ORD-"

// NewOrderID renders a time-ordered UUIDv7 as ORD-<decimal digits>.
func NewOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return orderIDPrefix + new(big.Int).SetBytes(id[:]).String(), nil
}
