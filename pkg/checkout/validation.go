package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// ShippingAddress is the delivery record captured by the shipping step.
type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"required,min=2"`
	Phone      string `json:"phone" validate:"required,min=10"`
	Address    string `json:"address" validate:"required,min=10"`
	City       string `json:"city" validate:"required,min=2"`
	PostalCode string `json:"postalCode" validate:"required,min=5"`
}

// CardDetails holds the fields collected for card payments.
type CardDetails struct {
	Number     string `json:"number" validate:"required,min=16"`
	Expiry     string `json:"expiry" validate:"required,min=5"`
	CVV        string `json:"cvv" validate:"required,min=3"`
	HolderName string `json:"holderName" validate:"required,min=2"`
}

// PaymentSelection is the tagged payment record; Card is set only for card payments.
type PaymentSelection struct {
	Kind enums.PaymentKind `json:"kind"`
	Card *CardDetails      `json:"card,omitempty"`
}

func (a ShippingAddress) normalized() ShippingAddress {
	return ShippingAddress{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

// ValidateShippingAddress trims every field and checks the minimum lengths.
// Failures carry one message per offending field.
func ValidateShippingAddress(addr ShippingAddress) (ShippingAddress, error) {
	clean := addr.normalized()
	if err := validate.Struct(clean); err != nil {
		return ShippingAddress{}, fieldErrors("invalid shipping address", "", err)
	}
	return clean, nil
}

// ValidatePaymentSelection checks the kind and, for cards, the card fields.
// Wallet redirect and cash on delivery carry no fields, so any card data is dropped.
func ValidatePaymentSelection(sel PaymentSelection) (PaymentSelection, error) {
	if !sel.Kind.IsValid() {
		return PaymentSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment selection").WithDetails(map[string]string{
			"kind": "must be one of card, wallet_redirect, cash_on_delivery",
		})
	}
	if !sel.Kind.RequiresCardDetails() {
		return PaymentSelection{Kind: sel.Kind}, nil
	}
	if sel.Card == nil {
		return PaymentSelection{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment selection").WithDetails(map[string]string{
			"card": "is required",
		})
	}
	card := CardDetails{
		Number:     compactDigits(sel.Card.Number),
		Expiry:     strings.TrimSpace(sel.Card.Expiry),
		CVV:        strings.TrimSpace(sel.Card.CVV),
		HolderName: strings.TrimSpace(sel.Card.HolderName),
	}
	if err := validate.Struct(card); err != nil {
		return PaymentSelection{}, fieldErrors("invalid payment selection", "card.", err)
	}
	return PaymentSelection{Kind: sel.Kind, Card: &card}, nil
}

// WithoutSecrets returns a copy that is safe to persist; the CVV is only needed for validation.
func (p PaymentSelection) WithoutSecrets() PaymentSelection {
	if p.Card == nil {
		return p
	}
	card := *p.Card
	card.CVV = ""
	return PaymentSelection{Kind: p.Kind, Card: &card}
}

// CardLast4 returns the last four characters of the card number, if any.
func (p PaymentSelection) CardLast4() string {
	if p.Card == nil {
		return ""
	}
	number := compactDigits(p.Card.Number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

// MaskCardNumber hides everything but the last four digits.
func MaskCardNumber(number string) string {
	number = compactDigits(number)
	if number == "" {
		return ""
	}
	if len(number) <= 4 {
		return number
	}
	return "**** **** **** " + number[len(number)-4:]
}

func compactDigits(value string) string {
	return strings.Join(strings.Fields(value), "")
}

func fieldErrors(message, prefix string, err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		details[prefix+fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	}
	return "is invalid"
}
