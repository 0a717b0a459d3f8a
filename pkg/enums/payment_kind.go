package enums

// PaymentKind identifies how the shopper intends to settle the order.
type PaymentKind string

const (
	PaymentKindCard           PaymentKind = "card"
	PaymentKindWalletRedirect PaymentKind = "wallet_redirect"
	PaymentKindCashOnDelivery PaymentKind = "cash_on_delivery"
)

var paymentKinds = []PaymentKind{PaymentKindCard, PaymentKindWalletRedirect, PaymentKindCashOnDelivery}

func (p PaymentKind) String() string { return string(p) }

func (p PaymentKind) IsValid() bool { return known(paymentKinds, p) }

// RequiresCardDetails reports whether the kind carries card fields.
func (p PaymentKind) RequiresCardDetails() bool {
	return p == PaymentKindCard
}
