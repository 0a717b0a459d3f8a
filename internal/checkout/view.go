package checkout

import (
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// View is the cart and wizard state returned to the storefront.
type View struct {
	Items           []cart.LineItem                `json:"items"`
	DiscountCode    string                         `json:"discountCode,omitempty"`
	Totals          cart.Totals                    `json:"totals"`
	Step            Step                           `json:"step"`
	StepName        string                         `json:"stepName"`
	ShippingAddress *checkoutrules.ShippingAddress `json:"shippingAddress,omitempty"`
	Payment         *PaymentView                   `json:"payment,omitempty"`
}

// PaymentView exposes the payment kind and, for cards, only the last four digits.
type PaymentView struct {
	Kind       enums.PaymentKind `json:"kind"`
	MaskedCard string            `json:"maskedCard,omitempty"`
	HolderName string            `json:"holderName,omitempty"`
}

func buildView(session *cart.Session) *View {
	step := clamp(Step(session.CheckoutStep))
	view := &View{
		Items:        session.Cart.Items(),
		DiscountCode: session.Cart.DiscountCode(),
		Totals:       session.Cart.Totals(),
		Step:         step,
		StepName:     step.String(),
	}
	if addr, ok := session.Cart.ShippingAddress(); ok {
		view.ShippingAddress = &addr
	}
	if sel, ok := session.Cart.PaymentSelection(); ok {
		view.Payment = buildPaymentView(sel)
	}
	return view
}

func buildPaymentView(sel checkoutrules.PaymentSelection) *PaymentView {
	pv := &PaymentView{Kind: sel.Kind}
	if sel.Card != nil {
		pv.MaskedCard = checkoutrules.MaskCardNumber(sel.Card.Number)
		pv.HolderName = sel.Card.HolderName
	}
	return pv
}
