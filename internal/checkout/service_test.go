package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/discount"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const session = "sess-1"

func newTestService(t *testing.T) Service {
	t.Helper()
	engine := discount.NewEngine(nil)
	store, err := cart.NewStore(cart.NewMemoryPersistence(), cart.DefaultPricing(), engine, nil)
	require.NoError(t, err)
	svc, err := NewService(store, engine, 10, nil, nil)
	require.NoError(t, err)
	return svc
}

func itemA() AddItemInput {
	return AddItemInput{
		Item:     cart.ItemInput{ProductID: "A", Name: "Lamp", UnitPrice: decimal.NewFromInt(100)},
		Quantity: 1,
	}
}

func goodAddress() checkoutrules.ShippingAddress {
	return checkoutrules.ShippingAddress{
		FullName:   "Ada Lovelace",
		Phone:      "0123456789",
		Address:    "12 Analytical Engine Rd",
		City:       "London",
		PostalCode: "10001",
	}
}

func goodCard() checkoutrules.PaymentSelection {
	return checkoutrules.PaymentSelection{
		Kind: enums.PaymentKindCard,
		Card: &checkoutrules.CardDetails{Number: "4111111111114242", Expiry: "12/29", CVV: "123", HolderName: "Ada Lovelace"},
	}
}

func walkToReview(t *testing.T, svc Service) *View {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)
	_, err = svc.Next(ctx, session)
	require.NoError(t, err)
	_, err = svc.SubmitShipping(ctx, session, goodAddress())
	require.NoError(t, err)
	view, err := svc.SubmitPayment(ctx, session, goodCard())
	require.NoError(t, err)
	return view
}

func TestAddItemMergesAndReportsTotals(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)
	in := itemA()
	in.Quantity = 2
	view, err := svc.AddItem(ctx, session, in)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)

	view, err = svc.ApplyDiscount(ctx, session, "SAVE10")
	require.NoError(t, err)
	assert.True(t, view.Totals.Discount.Equal(decimal.NewFromInt(30)))
	assert.True(t, view.Totals.Total.Equal(decimal.NewFromInt(365)))
	assert.Equal(t, StepCart, view.Step)
}

func TestAddItemEnforcesLineCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	in := itemA()
	in.Quantity = 8
	_, err := svc.AddItem(ctx, session, in)
	require.NoError(t, err)

	in.Quantity = 3
	_, err = svc.AddItem(ctx, session, in)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"quantity": "must be at most 10 per line"}, typed.Details())

	view, err := svc.GetCart(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 8, view.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, session, "A:default", 11)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemToZeroRemovesAndResetsStep(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)
	_, err = svc.Next(ctx, session)
	require.NoError(t, err)

	view, err := svc.UpdateItem(ctx, session, "A:default", 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, StepCart, view.Step)
}

func TestItemMutationKeepsStepWhenCartNotEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	walkToReview(t, svc)

	in := itemA()
	in.Item.ProductID = "B"
	view, err := svc.AddItem(ctx, session, in)
	require.NoError(t, err)
	assert.Equal(t, StepReview, view.Step)
}

func TestNextFromEmptyCartIsBlocked(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Next(context.Background(), session)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestNextRequiresShippingBeforePayment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)
	view, err := svc.Next(ctx, session)
	require.NoError(t, err)
	require.Equal(t, StepShipping, view.Step)

	_, err = svc.Next(ctx, session)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, "shippingAddress", typed.Details().(map[string]string)["missing"])

	view, err = svc.GetCart(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StepShipping, view.Step)
}

func TestSubmitShippingValidationBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)
	_, err = svc.Next(ctx, session)
	require.NoError(t, err)

	bad := goodAddress()
	bad.Phone = "123"
	_, err = svc.SubmitShipping(ctx, session, bad)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "must be at least 10 characters", typed.Details().(map[string]string)["phone"])

	view, err := svc.GetCart(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StepShipping, view.Step)
	assert.Nil(t, view.ShippingAddress)
}

func TestSubmitShippingRequiresShippingStep(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.AddItem(ctx, session, itemA())
	require.NoError(t, err)

	_, err = svc.SubmitShipping(ctx, session, goodAddress())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestWalletAndCashAdvanceWithoutFields(t *testing.T) {
	for _, kind := range []enums.PaymentKind{enums.PaymentKindWalletRedirect, enums.PaymentKindCashOnDelivery} {
		ctx := context.Background()
		svc := newTestService(t)
		_, err := svc.AddItem(ctx, session, itemA())
		require.NoError(t, err)
		_, err = svc.Next(ctx, session)
		require.NoError(t, err)
		_, err = svc.SubmitShipping(ctx, session, goodAddress())
		require.NoError(t, err)

		view, err := svc.SubmitPayment(ctx, session, checkoutrules.PaymentSelection{Kind: kind})
		require.NoError(t, err)
		assert.Equal(t, StepReview, view.Step)
		require.NotNil(t, view.Payment)
		assert.Equal(t, kind, view.Payment.Kind)
		assert.Empty(t, view.Payment.MaskedCard)
	}
}

func TestReviewMasksCard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	walkToReview(t, svc)

	view, err := svc.Review(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, view.Payment)
	assert.Equal(t, "**** **** **** 4242", view.Payment.MaskedCard)
	require.NotNil(t, view.ShippingAddress)
	assert.Equal(t, "London", view.ShippingAddress.City)
	assert.True(t, view.Totals.Total.Equal(decimal.NewFromInt(165)))
}

func TestReviewRequiresReviewStep(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Review(context.Background(), session)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestBackFromReviewReturnsToPayment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	walkToReview(t, svc)

	view, err := svc.Back(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StepPayment, view.Step)

	view, err = svc.Next(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StepReview, view.Step)

	view, err = svc.Next(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, StepReview, view.Step)
}

func TestClearCartKeepsShipping(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	walkToReview(t, svc)

	view, err := svc.ClearCart(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, StepCart, view.Step)
	assert.NotNil(t, view.ShippingAddress)
	assert.True(t, view.Totals.Total.Equal(decimal.NewFromInt(50)))
}
