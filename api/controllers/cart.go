package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	maxNameLength  = 200
	maxLabelLength = 120
)

type addItemRequest struct {
	Item     itemPayload `json:"item" validate:"required"`
	Quantity *int        `json:"quantity,omitempty"`
}

type itemPayload struct {
	ProductID   string          `json:"productId" validate:"required"`
	VariantID   string          `json:"variantId"`
	Name        string          `json:"name" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Image       string          `json:"image"`
	VendorLabel string          `json:"vendorLabel"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type discountRequest struct {
	Code string `json:"code"`
}

func (p itemPayload) toInput() cart.ItemInput {
	return cart.ItemInput{
		ProductID:   strings.TrimSpace(p.ProductID),
		VariantID:   strings.TrimSpace(p.VariantID),
		Name:        validators.SanitizeString(p.Name, maxNameLength),
		UnitPrice:   p.UnitPrice,
		Image:       strings.TrimSpace(p.Image),
		VendorLabel: validators.SanitizeString(p.VendorLabel, maxLabelLength),
	}
}

// CartGet returns the session cart with totals and wizard step.
func CartGet(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetCart(r.Context(), middleware.SessionKeyFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds quantity (default 1) of a product, merging with an existing line.
func CartAddItem(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty := 1
		if payload.Quantity != nil {
			qty = *payload.Quantity
		}

		view, err := svc.AddItem(r.Context(), middleware.SessionKeyFromContext(r.Context()), checkout.AddItemInput{
			Item:     payload.Item.toInput(),
			Quantity: qty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// CartUpdateItem sets the quantity of a line. Zero or less removes it.
func CartUpdateItem(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateItem(r.Context(), middleware.SessionKeyFromContext(r.Context()), itemID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), middleware.SessionKeyFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.ClearCart(r.Context(), middleware.SessionKeyFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartApplyDiscount stores the code. Unknown codes are accepted with a zero amount.
func CartApplyDiscount(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ApplyDiscount(r.Context(), middleware.SessionKeyFromContext(r.Context()), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func itemIDParam(r *http.Request) (string, error) {
	itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))
	if itemID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "item id is required").WithDetails(map[string]string{"itemId": "is required"})
	}
	return itemID, nil
}
