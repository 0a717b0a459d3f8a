package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// PlaceOrderResult is returned once an order is confirmed.
type PlaceOrderResult struct {
	OrderID string            `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
	Total   decimal.Decimal   `json:"total"`
}

// OrderPage is one page of a session's order history.
type OrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// OrderDTO is the read model of a stored order.
type OrderDTO struct {
	ID           string            `json:"id"`
	Status       enums.OrderStatus `json:"status"`
	PaymentKind  enums.PaymentKind `json:"paymentKind"`
	CardLast4    *string           `json:"cardLast4,omitempty"`
	DiscountCode *string           `json:"discountCode,omitempty"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	ShippingFee  decimal.Decimal   `json:"shippingFee"`
	Tax          decimal.Decimal   `json:"tax"`
	Discount     decimal.Decimal   `json:"discount"`
	Total        decimal.Decimal   `json:"total"`
	Shipping     ShippingDTO       `json:"shippingAddress"`
	Items        []LineItemDTO     `json:"items"`
	ExternalRef  *string           `json:"externalRef,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type ShippingDTO struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

type LineItemDTO struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	VariantID   *string         `json:"variantId,omitempty"`
	Name        string          `json:"name"`
	Image       *string         `json:"image,omitempty"`
	VendorLabel *string         `json:"vendorLabel,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

func mapOrder(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:           order.ID,
		Status:       order.Status,
		PaymentKind:  order.PaymentKind,
		CardLast4:    order.CardLast4,
		DiscountCode: order.DiscountCode,
		Subtotal:     order.Subtotal,
		ShippingFee:  order.ShippingFee,
		Tax:          order.Tax,
		Discount:     order.Discount,
		Total:        order.Total,
		Shipping: ShippingDTO{
			FullName:   order.ShipFullName,
			Phone:      order.ShipPhone,
			Address:    order.ShipAddress,
			City:       order.ShipCity,
			PostalCode: order.ShipPostalCode,
		},
		Items:       make([]LineItemDTO, 0, len(order.LineItems)),
		ExternalRef: order.ExternalRef,
		CreatedAt:   order.CreatedAt,
	}
	for _, line := range order.LineItems {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:          line.LineID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Name:        line.Name,
			Image:       line.Image,
			VendorLabel: line.VendorLabel,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal,
		})
	}
	return dto
}
