package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/discount"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

const sessionKey = "sess-1"

var orderIDPattern = regexp.MustCompile(`^ORD-\d+$`)

type harness struct {
	conn   *gorm.DB
	carts  *cart.Store
	outbox *outbox.Repository
	svc    *service
}

func newHarness(t *testing.T, policy Policy, gateway Gateway) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Up(context.Background(), sqlDB, migrate.Dialect(config.DBDriverSQLite)))

	engine := discount.NewEngine(nil)
	carts, err := cart.NewStore(cart.NewMemoryPersistence(), cart.DefaultPricing(), engine, nil)
	require.NoError(t, err)

	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewService(carts, NewRepository(conn), db.NewFromGorm(conn), outbox.NewService(outboxRepo, nil), gateway, policy, nil, nil)
	require.NoError(t, err)
	return &harness{conn: conn, carts: carts, outbox: outboxRepo, svc: svc.(*service)}
}

func (h *harness) readyCart(t *testing.T) {
	t.Helper()
	err := h.carts.Update(context.Background(), sessionKey, func(s *cart.Session) error {
		if _, err := s.Cart.AddItem(cart.ItemInput{ProductID: "A", Name: "Lamp", UnitPrice: decimal.NewFromInt(100)}, 3); err != nil {
			return err
		}
		s.Cart.ApplyDiscount(discount.CodeSave10)
		s.Cart.SetShippingAddress(checkoutrules.ShippingAddress{
			FullName: "Ada Lovelace", Phone: "0123456789", Address: "12 Analytical Engine Rd", City: "London", PostalCode: "10001",
		})
		s.Cart.SetPaymentSelection(checkoutrules.PaymentSelection{
			Kind: enums.PaymentKindCard,
			Card: &checkoutrules.CardDetails{Number: "4111111111114242", Expiry: "12/29", CVV: "123", HolderName: "Ada"},
		})
		s.CheckoutStep = reviewStep
		return nil
	})
	require.NoError(t, err)
}

func (h *harness) session(t *testing.T) *cart.Session {
	t.Helper()
	var out *cart.Session
	require.NoError(t, h.carts.View(context.Background(), sessionKey, func(s *cart.Session) error {
		out = s
		return nil
	}))
	return out
}

func defaultPolicy() Policy {
	return Policy{ClearShipping: true, ClearPayment: true}
}

func TestPlaceOrderConfirmsAndResetsCart(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	h.readyCart(t)

	result, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{UserID: "user-1"})
	require.NoError(t, err)
	assert.Regexp(t, orderIDPattern, result.OrderID)
	assert.Equal(t, enums.OrderStatusPending, result.Status)
	assert.True(t, result.Total.Equal(decimal.NewFromInt(365)))

	s := h.session(t)
	assert.True(t, s.Cart.IsEmpty())
	assert.True(t, s.Cart.DiscountAmount().IsZero())
	assert.Empty(t, s.Cart.DiscountCode())
	assert.Equal(t, 1, s.CheckoutStep)
	_, hasAddr := s.Cart.ShippingAddress()
	_, hasPayment := s.Cart.PaymentSelection()
	assert.False(t, hasAddr)
	assert.False(t, hasPayment)

	order, err := h.svc.GetOrder(context.Background(), sessionKey, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	require.NotNil(t, order.CardLast4)
	assert.Equal(t, "4242", *order.CardLast4)

	events, err := h.outbox.ListByAggregate(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPlaced, events[0].EventType)
}

func TestPlaceOrderKeepsShippingAndPaymentWhenConfigured(t *testing.T) {
	h := newHarness(t, Policy{}, nil)
	h.readyCart(t)

	_, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.NoError(t, err)

	s := h.session(t)
	assert.True(t, s.Cart.IsEmpty())
	_, hasAddr := s.Cart.ShippingAddress()
	_, hasPayment := s.Cart.PaymentSelection()
	assert.True(t, hasAddr)
	assert.True(t, hasPayment)
}

func TestPlaceOrderCanceledRollsBackAndKeepsCart(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	h.readyCart(t)

	ctx, cancel := context.WithCancel(context.Background())
	h.svc.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	var reservedID string
	h.svc.newID = func() (string, error) {
		id, err := NewOrderID()
		reservedID = id
		return id, err
	}

	_, err := h.svc.PlaceOrder(ctx, sessionKey, Actor{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCanceled))

	s := h.session(t)
	assert.Equal(t, 3, s.Cart.ItemCount())
	assert.Equal(t, reviewStep, s.CheckoutStep)
	assert.True(t, s.Cart.DiscountAmount().Equal(decimal.NewFromInt(30)))

	order, err := h.svc.GetOrder(context.Background(), sessionKey, reservedID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRolledBack, order.Status)

	events, err := h.outbox.ListByAggregate(context.Background(), reservedID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderRolledBack, events[0].EventType)
}

type failingGateway struct{ err error }

func (f failingGateway) Confirm(context.Context, ConfirmRequest) (Confirmation, error) {
	return Confirmation{}, f.err
}

func TestPlaceOrderGatewayFailureRollsBack(t *testing.T) {
	h := newHarness(t, defaultPolicy(), failingGateway{err: errors.New("upstream down")})
	h.readyCart(t)

	_, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	s := h.session(t)
	assert.Equal(t, 3, s.Cart.ItemCount())

	page, err := h.svc.ListOrders(context.Background(), sessionKey, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, enums.OrderStatusRolledBack, page.Orders[0].Status)
}

type gatewayFunc func(context.Context, ConfirmRequest) (Confirmation, error)

func (f gatewayFunc) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	return f(ctx, req)
}

func TestPlaceOrderKeepsAcceptedOrderWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	h := newHarness(t, defaultPolicy(), gatewayFunc(func(context.Context, ConfirmRequest) (Confirmation, error) {
		calls++
		cancel()
		return Confirmation{ExternalRef: "EXT-1"}, nil
	}))
	h.readyCart(t)

	result, err := h.svc.PlaceOrder(ctx, sessionKey, Actor{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	order, err := h.svc.GetOrder(context.Background(), sessionKey, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.ExternalRef)
	assert.Equal(t, "EXT-1", *order.ExternalRef)

	events, err := h.outbox.ListByAggregate(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPlaced, events[0].EventType)

	s := h.session(t)
	assert.True(t, s.Cart.IsEmpty())
	assert.Equal(t, 1, s.CheckoutStep)
}

func TestPlaceOrderNeverRollsBackAcceptedOrder(t *testing.T) {
	var h *harness
	h = newHarness(t, defaultPolicy(), gatewayFunc(func(context.Context, ConfirmRequest) (Confirmation, error) {
		err := h.conn.Callback().Update().Before("gorm:update").Register("test:fail_updates", func(tx *gorm.DB) {
			_ = tx.AddError(errors.New("disk full"))
		})
		return Confirmation{ExternalRef: "EXT-2"}, err
	}))
	h.readyCart(t)

	result, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.NoError(t, err)
	require.NoError(t, h.conn.Callback().Update().Remove("test:fail_updates"))

	order, err := h.svc.GetOrder(context.Background(), sessionKey, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReserved, order.Status)

	events, err := h.outbox.ListByAggregate(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, h.session(t).Cart.IsEmpty())
}

func TestPlaceOrderPropagatesTypedGatewayErrors(t *testing.T) {
	unauthorized := pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired").WithDetails(map[string]string{"redirect": "/login"})
	h := newHarness(t, defaultPolicy(), failingGateway{err: unauthorized})
	h.readyCart(t)

	_, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestPlaceOrderRequiresReviewStep(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	require.NoError(t, h.carts.Update(context.Background(), sessionKey, func(s *cart.Session) error {
		_, err := s.Cart.AddItem(cart.ItemInput{ProductID: "A", UnitPrice: decimal.NewFromInt(1)}, 1)
		s.CheckoutStep = 3
		return err
	}))

	_, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	page, err := h.svc.ListOrders(context.Background(), sessionKey, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Empty(t, page.NextCursor)
}

func TestListOrdersPagesNewestFirst(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var placed []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		h.svc.now = func() time.Time { return at }
		h.readyCart(t)
		result, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
		require.NoError(t, err)
		placed = append(placed, result.OrderID)
	}

	first, err := h.svc.ListOrders(context.Background(), sessionKey, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, placed[2], first.Orders[0].ID)
	assert.Equal(t, placed[1], first.Orders[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.ListOrders(context.Background(), sessionKey, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, placed[0], second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = h.svc.ListOrders(context.Background(), sessionKey, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestPlaceOrderRetriesCollidingID(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	ids := []string{"ORD-100001", "ORD-100001", "ORD-100002"}
	h.svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	h.readyCart(t)
	first, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "ORD-100001", first.OrderID)

	h.readyCart(t)
	second, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "ORD-100002", second.OrderID)

	order, err := h.svc.GetOrder(context.Background(), sessionKey, second.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Empty(t, ids)
}

func TestGetOrderIsScopedToSession(t *testing.T) {
	h := newHarness(t, defaultPolicy(), nil)
	h.readyCart(t)
	result, err := h.svc.PlaceOrder(context.Background(), sessionKey, Actor{})
	require.NoError(t, err)

	_, err = h.svc.GetOrder(context.Background(), "someone-else", result.OrderID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestNewOrderIDIsUniqueDigits(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		id, err := NewOrderID()
		require.NoError(t, err)
		require.Regexp(t, orderIDPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestSleepContextHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), 0))
}
