package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Field rules for these bodies live in pkg/checkout so the wizard reports
// the same details regardless of caller.
type shippingRequest struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

type paymentRequest struct {
	Kind string       `json:"kind"`
	Card *cardRequest `json:"card,omitempty"`
}

type cardRequest struct {
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holderName"`
}

func (p shippingRequest) toAddress() checkoutrules.ShippingAddress {
	return checkoutrules.ShippingAddress{
		FullName:   p.FullName,
		Phone:      p.Phone,
		Address:    p.Address,
		City:       p.City,
		PostalCode: p.PostalCode,
	}
}

func (p paymentRequest) toSelection() checkoutrules.PaymentSelection {
	sel := checkoutrules.PaymentSelection{Kind: enums.PaymentKind(p.Kind)}
	if p.Card != nil {
		sel.Card = &checkoutrules.CardDetails{
			Number:     p.Card.Number,
			Expiry:     p.Card.Expiry,
			CVV:        p.Card.CVV,
			HolderName: p.Card.HolderName,
		}
	}
	return sel
}

type wizardAction func(svc checkout.Service, r *http.Request, sessionKey string) (*checkout.View, error)

func wizardHandler(svc checkout.Service, logg *logger.Logger, action wizardAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := action(svc, r, middleware.SessionKeyFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CheckoutNext(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return wizardHandler(svc, logg, func(svc checkout.Service, r *http.Request, key string) (*checkout.View, error) {
		return svc.Next(r.Context(), key)
	})
}

func CheckoutBack(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return wizardHandler(svc, logg, func(svc checkout.Service, r *http.Request, key string) (*checkout.View, error) {
		return svc.Back(r.Context(), key)
	})
}

// CheckoutReview returns the review summary; it is only available on the last step.
func CheckoutReview(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return wizardHandler(svc, logg, func(svc checkout.Service, r *http.Request, key string) (*checkout.View, error) {
		return svc.Review(r.Context(), key)
	})
}

func CheckoutSubmitShipping(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return wizardHandler(svc, logg, func(svc checkout.Service, r *http.Request, key string) (*checkout.View, error) {
		var payload shippingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SubmitShipping(r.Context(), key, payload.toAddress())
	})
}

func CheckoutSubmitPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return wizardHandler(svc, logg, func(svc checkout.Service, r *http.Request, key string) (*checkout.View, error) {
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SubmitPayment(r.Context(), key, payload.toSelection())
	})
}
