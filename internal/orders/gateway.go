package orders

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/apiclient"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ConfirmRequest is the reserved order handed to the gateway.
type ConfirmRequest struct {
	SessionKey string
	Order      *models.Order
}

// Confirmation is the gateway's acceptance of an order.
type Confirmation struct {
	ExternalRef string
}

// Gateway confirms reserved orders with whatever system of record owns them.
type Gateway interface {
	Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error)
}

// LocalGateway accepts every order without contacting anything.
type LocalGateway struct{}

func (LocalGateway) Confirm(ctx context.Context, _ ConfirmRequest) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	return Confirmation{}, nil
}

type apiDoer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// APIGateway creates the order through the external API's orders endpoint.
type APIGateway struct {
	client apiDoer
}

func NewAPIGateway(client apiDoer) *APIGateway {
	return &APIGateway{client: client}
}

type apiOrderLine struct {
	ProductID string          `json:"productId"`
	VariantID *string         `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type apiOrderRequest struct {
	OrderID     string            `json:"orderId"`
	PaymentKind enums.PaymentKind `json:"paymentKind"`
	Total       decimal.Decimal   `json:"total"`
	Items       []apiOrderLine    `json:"items"`
	Shipping    map[string]string `json:"shippingAddress"`
}

type apiOrderResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

func (g *APIGateway) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	order := req.Order
	body := apiOrderRequest{
		OrderID:     order.ID,
		PaymentKind: order.PaymentKind,
		Total:       order.Total,
		Items:       make([]apiOrderLine, 0, len(order.LineItems)),
		Shipping: map[string]string{
			"fullName":   order.ShipFullName,
			"phone":      order.ShipPhone,
			"address":    order.ShipAddress,
			"city":       order.ShipCity,
			"postalCode": order.ShipPostalCode,
		},
	}
	for _, line := range order.LineItems {
		body.Items = append(body.Items, apiOrderLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	var out apiOrderResponse
	err := g.client.Do(ctx, apiclient.Request{
		Method:     http.MethodPost,
		Path:       "/orders",
		SessionKey: req.SessionKey,
		Body:       body,
	}, &out)
	if err != nil {
		return Confirmation{}, err
	}
	ref := out.Reference
	if ref == "" {
		ref = out.ID
	}
	return Confirmation{ExternalRef: ref}, nil
}
