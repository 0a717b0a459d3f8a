package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/discount"
	"github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func newTestCart() *Cart {
	return New(DefaultPricing(), discount.NewEngine(nil))
}

func product(id string, price int64) ItemInput {
	return ItemInput{ProductID: id, Name: "Product " + id, UnitPrice: decimal.NewFromInt(price), VendorLabel: "Acme"}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestAddItemMergesSameIdentity(t *testing.T) {
	c := newTestCart()
	for _, qty := range []int{1, 2, 4} {
		_, err := c.AddItem(product("A", 100), qty)
		require.NoError(t, err)
	}
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
	assert.Equal(t, "A:default", items[0].ID)
}

func TestAddItemVariantsAreDistinctLines(t *testing.T) {
	c := newTestCart()
	red := product("A", 100)
	red.VariantID = "red"
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	_, err = c.AddItem(red, 1)
	require.NoError(t, err)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A:default", items[0].ID)
	assert.Equal(t, "A:red", items[1].ID)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.True(t, c.IsEmpty())
}

func TestUpdateQuantityNonPositiveRemoves(t *testing.T) {
	for _, qty := range []int{0, -1, -5} {
		c := newTestCart()
		_, err := c.AddItem(product("A", 100), 2)
		require.NoError(t, err)
		_, err = c.AddItem(product("B", 10), 1)
		require.NoError(t, err)

		removed := newTestCart()
		removed.Restore(c.Snapshot())
		removed.RemoveItem("A:default")

		require.NoError(t, c.UpdateQuantity("A:default", qty))
		assert.Equal(t, removed.Items(), c.Items(), "qty %d", qty)
	}
}

func TestUpdateQuantityIsAbsolute(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 3)
	require.NoError(t, err)
	require.NoError(t, c.UpdateQuantity("A:default", 2))
	item, ok := c.Item("A:default")
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)

	err = c.UpdateQuantity("missing:default", 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	c.RemoveItem("A:default")
	c.RemoveItem("A:default")
	c.RemoveItem("nope")
	assert.True(t, c.IsEmpty())
}

func TestSubtotalIgnoresOrder(t *testing.T) {
	forward := newTestCart()
	reverse := newTestCart()
	inputs := []struct {
		item ItemInput
		qty  int
	}{
		{product("A", 100), 2},
		{ItemInput{ProductID: "B", UnitPrice: dec("19.99")}, 3},
		{product("C", 5), 1},
	}
	for _, in := range inputs {
		_, err := forward.AddItem(in.item, in.qty)
		require.NoError(t, err)
	}
	for i := len(inputs) - 1; i >= 0; i-- {
		_, err := reverse.AddItem(inputs[i].item, inputs[i].qty)
		require.NoError(t, err)
	}
	assert.True(t, forward.Subtotal().Equal(reverse.Subtotal()))
	assert.True(t, forward.Subtotal().Equal(dec("264.97")))
}

func TestTotalForThousandSubtotal(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 1000), 1)
	require.NoError(t, err)

	totals := c.Totals()
	assert.True(t, totals.Subtotal.Equal(dec("1000")))
	assert.True(t, totals.Tax.Equal(dec("150")))
	assert.True(t, totals.Total.Equal(dec("1200")), "total=%s", totals.Total)
}

func TestMergeDiscountAndTotalScenario(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	_, err = c.AddItem(product("A", 100), 2)
	require.NoError(t, err)

	require.Len(t, c.Items(), 1)
	assert.Equal(t, 3, c.Items()[0].Quantity)
	assert.True(t, c.Subtotal().Equal(dec("300")))

	amount := c.ApplyDiscount(discount.CodeSave10)
	assert.True(t, amount.Equal(dec("30")))
	assert.True(t, c.Total().Equal(dec("365")), "total=%s", c.Total())
}

func TestEmptyCartStillChargesShipping(t *testing.T) {
	c := newTestCart()
	assert.True(t, c.Subtotal().IsZero())
	assert.True(t, c.Total().Equal(dec("50")))
}

func TestDiscountFollowsSubtotal(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	c.ApplyDiscount(discount.CodeSave10)
	assert.True(t, c.DiscountAmount().Equal(dec("10")))

	_, err = c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	assert.True(t, c.DiscountAmount().Equal(dec("20")))

	c.RemoveItem("A:default")
	assert.True(t, c.DiscountAmount().IsZero())
	assert.Equal(t, discount.CodeSave10, c.DiscountCode())
}

func TestUnknownDiscountCodeYieldsZero(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	assert.True(t, c.ApplyDiscount("save10").IsZero())
	assert.True(t, c.ApplyDiscount("").IsZero())
}

func TestDiscountCodeMatchesExactly(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 1000), 1)
	require.NoError(t, err)
	for _, code := range []string{" SAVE10", "SAVE10 ", " SAVE10 "} {
		assert.True(t, c.ApplyDiscount(code).IsZero(), "code %q", code)
		assert.Equal(t, code, c.DiscountCode())
	}
	assert.True(t, c.ApplyDiscount(discount.CodeSave10).Equal(dec("100")))
}

type flatDiscount struct{ amount decimal.Decimal }

func (f flatDiscount) Compute(code string, _ decimal.Decimal) decimal.Decimal {
	if code == "" {
		return decimal.Zero
	}
	return f.amount
}

func TestTotalClampPolicy(t *testing.T) {
	unclamped := New(DefaultPricing(), flatDiscount{amount: dec("500")})
	_, err := unclamped.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	unclamped.ApplyDiscount("BIG")
	assert.True(t, unclamped.Total().Equal(dec("-335")), "total=%s", unclamped.Total())

	pricing := DefaultPricing()
	pricing.ClampTotal = true
	clamped := New(pricing, flatDiscount{amount: dec("500")})
	_, err = clamped.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	clamped.ApplyDiscount("BIG")
	assert.True(t, clamped.Total().IsZero())
}

func TestClearKeepsShippingAndPayment(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 1)
	require.NoError(t, err)
	c.ApplyDiscount(discount.CodeSave10)
	c.SetShippingAddress(checkout.ShippingAddress{FullName: "Ada"})
	c.SetPaymentSelection(checkout.PaymentSelection{Kind: enums.PaymentKindCashOnDelivery})

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.DiscountCode())
	assert.True(t, c.DiscountAmount().IsZero())
	_, ok := c.ShippingAddress()
	assert.True(t, ok)
	_, ok = c.PaymentSelection()
	assert.True(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c := newTestCart()
	_, err := c.AddItem(product("A", 100), 2)
	require.NoError(t, err)
	c.ApplyDiscount(discount.CodeSave10)
	c.SetPaymentSelection(checkout.PaymentSelection{
		Kind: enums.PaymentKindCard,
		Card: &checkout.CardDetails{Number: "4111111111111111", Expiry: "12/29", CVV: "123", HolderName: "Ada"},
	})

	snap := c.Snapshot()
	require.NotNil(t, snap.PaymentSelection)
	assert.Empty(t, snap.PaymentSelection.Card.CVV)

	snap.DiscountAmount = dec("9999")
	restored := newTestCart()
	restored.Restore(snap)
	assert.Equal(t, c.Items(), restored.Items())
	assert.True(t, restored.DiscountAmount().Equal(dec("20")))
	sel, ok := restored.PaymentSelection()
	require.True(t, ok)
	assert.Equal(t, "1111", sel.CardLast4())
}
