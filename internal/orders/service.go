package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

const (
	reviewStep = 4
	// maxIDAttempts bounds how often a colliding order id is regenerated.
	maxIDAttempts = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartStore interface {
	Update(ctx context.Context, key string, fn func(*cart.Session) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Policy holds the order completion switches.
type Policy struct {
	ClearShipping bool
	ClearPayment  bool
	SubmitLatency time.Duration
}

// PolicyFromConfig reads the completion switches from the checkout config.
func PolicyFromConfig(cfg config.CheckoutConfig) Policy {
	return Policy{
		ClearShipping: cfg.ClearShippingOnOrder,
		ClearPayment:  cfg.ClearPaymentOnOrder,
		SubmitLatency: cfg.SubmitLatency,
	}
}

// Actor identifies who placed the order.
type Actor struct {
	UserID string
}

// Service places and reads back orders.
type Service interface {
	PlaceOrder(ctx context.Context, sessionKey string, actor Actor) (*PlaceOrderResult, error)
	GetOrder(ctx context.Context, sessionKey, orderID string) (*OrderDTO, error)
	ListOrders(ctx context.Context, sessionKey string, params pagination.Params) (*OrderPage, error)
}

type service struct {
	carts   cartStore
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	gateway Gateway
	policy  Policy
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger

	now   func() time.Time
	newID func() (string, error)
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService builds the order service. A nil gateway confirms orders locally.
func NewService(
	carts cartStore,
	repo Repository,
	tx txRunner,
	emitter outboxEmitter,
	gateway Gateway,
	policy Policy,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if gateway == nil {
		gateway = LocalGateway{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		carts:   carts,
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		gateway: gateway,
		policy:  policy,
		metrics: m,
		logg:    logg,
		now:     time.Now,
		newID:   NewOrderID,
		sleep:   sleepContext,
	}, nil
}

// PlaceOrder reserves the order, waits out the submit latency, confirms it
// with the gateway and only then resets the cart. Cancellation or a gateway
// failure before confirmation rolls the reservation back and leaves the cart
// as it was. Once the gateway accepts, a failed local write is logged for
// reconciliation and the order is still reported as placed.
func (s *service) PlaceOrder(ctx context.Context, sessionKey string, actor Actor) (*PlaceOrderResult, error) {
	started := s.now()
	var result *PlaceOrderResult

	err := s.carts.Update(ctx, sessionKey, func(session *cart.Session) error {
		addr, sel, err := readyForOrder(session)
		if err != nil {
			return err
		}
		order, err := s.buildOrder(session, addr, sel)
		if err != nil {
			return err
		}
		if err := s.reserve(ctx, order); err != nil {
			if ctx.Err() != nil {
				return pkgerrors.Wrap(pkgerrors.CodeCanceled, ctx.Err(), "order submission canceled")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve order")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"session_id": session.Key, "order_id": order.ID})
		s.logg.Info(logCtx, "order.reserved")

		if err := s.sleep(ctx, s.policy.SubmitLatency); err != nil {
			s.rollback(ctx, order, actor, "canceled")
			return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "order submission canceled")
		}

		confirmation, err := s.gateway.Confirm(ctx, ConfirmRequest{SessionKey: session.Key, Order: order})
		if err != nil {
			s.rollback(ctx, order, actor, err.Error())
			return gatewayError(ctx, err)
		}

		// Past this point the gateway owns the order; it is never rolled back.
		accepted := context.WithoutCancel(ctx)
		if err := s.confirm(accepted, order, confirmation, actor); err != nil {
			s.logg.Error(s.logg.WithFields(logCtx, map[string]any{"external_ref": confirmation.ExternalRef}), "order.confirm_unrecorded", err)
		} else {
			s.logg.Info(logCtx, "order.placed")
		}

		session.Cart.Clear()
		if s.policy.ClearShipping {
			session.Cart.ClearShippingAddress()
		}
		if s.policy.ClearPayment {
			session.Cart.ClearPaymentSelection()
		}
		session.CheckoutStep = 1
		result = &PlaceOrderResult{OrderID: order.ID, Status: enums.OrderStatusPending, Total: order.Total}
		return nil
	})

	elapsed := s.now().Sub(started)
	switch {
	case err == nil:
		s.metrics.ObserveOrder(metrics.OutcomePlaced, elapsed)
		return result, nil
	case result != nil && errors.Is(err, cart.ErrPersist):
		// The order is confirmed; a stale cart is preferable to reporting a failure.
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{"session_id": sessionKey, "order_id": result.OrderID}), "order.cart_reset_failed", err)
		s.metrics.ObserveOrder(metrics.OutcomePlaced, elapsed)
		return result, nil
	case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		s.metrics.ObserveOrder(metrics.OutcomeRejected, elapsed)
	default:
		s.metrics.ObserveOrder(metrics.OutcomeRolledBack, elapsed)
	}
	return nil, err
}

func (s *service) GetOrder(ctx context.Context, sessionKey, orderID string) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, sessionKey, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := mapOrder(*order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, sessionKey string, params pagination.Params) (*OrderPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListBySession(ctx, sessionKey, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &OrderPage{Orders: make([]OrderDTO, 0, len(rows))}
	if len(rows) > limit {
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Orders = append(page.Orders, mapOrder(row))
	}
	return page, nil
}

func readyForOrder(session *cart.Session) (checkoutrules.ShippingAddress, checkoutrules.PaymentSelection, error) {
	if session.CheckoutStep != reviewStep {
		return checkoutrules.ShippingAddress{}, checkoutrules.PaymentSelection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not on the review step")
	}
	if session.Cart.IsEmpty() {
		return checkoutrules.ShippingAddress{}, checkoutrules.PaymentSelection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	addr, ok := session.Cart.ShippingAddress()
	if !ok {
		return checkoutrules.ShippingAddress{}, checkoutrules.PaymentSelection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping address missing")
	}
	sel, ok := session.Cart.PaymentSelection()
	if !ok {
		return checkoutrules.ShippingAddress{}, checkoutrules.PaymentSelection{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment selection missing")
	}
	return addr, sel, nil
}

func (s *service) buildOrder(session *cart.Session, addr checkoutrules.ShippingAddress, sel checkoutrules.PaymentSelection) (*models.Order, error) {
	orderID, err := s.newID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
	}
	totals := session.Cart.Totals()
	order := &models.Order{
		ID:             orderID,
		SessionKey:     session.Key,
		Status:         enums.OrderStatusReserved,
		CreatedAt:      s.now().UTC(),
		PaymentKind:    sel.Kind,
		Subtotal:       totals.Subtotal.Round(2),
		ShippingFee:    totals.Shipping.Round(2),
		Tax:            totals.Tax.Round(2),
		Discount:       totals.Discount.Round(2),
		Total:          totals.Total.Round(2),
		ShipFullName:   addr.FullName,
		ShipPhone:      addr.Phone,
		ShipAddress:    addr.Address,
		ShipCity:       addr.City,
		ShipPostalCode: addr.PostalCode,
	}
	if last4 := sel.CardLast4(); last4 != "" {
		order.CardLast4 = &last4
	}
	if code := session.Cart.DiscountCode(); code != "" {
		order.DiscountCode = &code
	}
	for i, item := range session.Cart.Items() {
		lineID, err := uuid.NewV7()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate line id")
		}
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			ID:          lineID,
			OrderID:     orderID,
			LineID:      item.ID,
			ProductID:   item.ProductID,
			VariantID:   optional(item.VariantID),
			Name:        item.Name,
			Image:       optional(item.Image),
			VendorLabel: optional(item.VendorLabel),
			UnitPrice:   item.UnitPrice.Round(2),
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal().Round(2),
			Position:    i,
		})
	}
	return order, nil
}

// reserve inserts the order, drawing a fresh id when the random one collides.
func (s *service) reserve(ctx context.Context, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		err := s.repo.CreateOrder(ctx, order)
		if err == nil || attempt == maxIDAttempts || !db.IsUniqueViolation(err, "") {
			return err
		}
		orderID, idErr := s.newID()
		if idErr != nil {
			return idErr
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "retry_id": orderID}), "order.id_collision")
		order.ID = orderID
		for i := range order.LineItems {
			order.LineItems[i].OrderID = orderID
		}
	}
}

func (s *service) confirm(ctx context.Context, order *models.Order, confirmation Confirmation, actor Actor) error {
	updates := map[string]any{}
	if confirmation.ExternalRef != "" {
		updates["external_ref"] = confirmation.ExternalRef
		order.ExternalRef = &confirmation.ExternalRef
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusReserved, enums.OrderStatusPending, updates); err != nil {
			return err
		}
		order.Status = enums.OrderStatusPending
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{SessionKey: order.SessionKey, UserID: actor.UserID},
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				SessionKey:  order.SessionKey,
				PaymentKind: order.PaymentKind,
				ItemCount:   itemCount(order),
				Total:       order.Total,
				ExternalRef: confirmation.ExternalRef,
			},
		})
	})
}

// rollback compensates a reservation. It runs detached from ctx so a
// canceled request still releases the order.
func (s *service) rollback(ctx context.Context, order *models.Order, actor Actor, reason string) {
	detached := context.WithoutCancel(ctx)
	err := s.tx.WithTx(detached, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).TransitionStatus(detached, order.ID, enums.OrderStatusReserved, enums.OrderStatusRolledBack, map[string]any{
			"failure_reason": reason,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(detached, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRolledBack,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{SessionKey: order.SessionKey, UserID: actor.UserID},
			Data: payloads.OrderRolledBackEvent{
				OrderID:    order.ID,
				SessionKey: order.SessionKey,
				Reason:     reason,
			},
		})
	})
	logCtx := s.logg.WithFields(detached, map[string]any{"order_id": order.ID, "reason": reason})
	if err != nil {
		s.logg.Error(logCtx, "order.rollback_failed", err)
		return
	}
	s.logg.Warn(logCtx, "order.rolled_back")
}

func gatewayError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "order submission canceled")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order gateway failed")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func itemCount(order *models.Order) int {
	count := 0
	for _, line := range order.LineItems {
		count += line.Quantity
	}
	return count
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
