package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutrules "github.com/angelmondragon/storefront-checkout/pkg/checkout"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type cartStore interface {
	View(ctx context.Context, key string, fn func(*cart.Session) error) error
	Update(ctx context.Context, key string, fn func(*cart.Session) error) error
}

type codeRecognizer interface {
	Recognizes(code string) bool
}

// AddItemInput is a product and the quantity to merge into the cart.
type AddItemInput struct {
	Item     cart.ItemInput
	Quantity int
}

// Service drives the cart and the checkout wizard of one session at a time.
type Service interface {
	GetCart(ctx context.Context, sessionKey string) (*View, error)
	AddItem(ctx context.Context, sessionKey string, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, sessionKey, itemID string, quantity int) (*View, error)
	RemoveItem(ctx context.Context, sessionKey, itemID string) (*View, error)
	ClearCart(ctx context.Context, sessionKey string) (*View, error)
	ApplyDiscount(ctx context.Context, sessionKey, code string) (*View, error)
	Next(ctx context.Context, sessionKey string) (*View, error)
	Back(ctx context.Context, sessionKey string) (*View, error)
	SubmitShipping(ctx context.Context, sessionKey string, addr checkoutrules.ShippingAddress) (*View, error)
	SubmitPayment(ctx context.Context, sessionKey string, sel checkoutrules.PaymentSelection) (*View, error)
	Review(ctx context.Context, sessionKey string) (*View, error)
}

type service struct {
	carts      cartStore
	codes      codeRecognizer
	maxLineQty int
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
}

// NewService builds the checkout service. maxLineQty caps the quantity of a
// single line on add and update; zero disables the cap.
func NewService(carts cartStore, codes codeRecognizer, maxLineQty int, m *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if codes == nil {
		return nil, fmt.Errorf("discount code recognizer required")
	}
	if maxLineQty < 0 {
		return nil, fmt.Errorf("max line quantity must be non-negative")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		carts:      carts,
		codes:      codes,
		maxLineQty: maxLineQty,
		metrics:    m,
		logg:       logg,
	}, nil
}

func (s *service) GetCart(ctx context.Context, sessionKey string) (*View, error) {
	var view *View
	err := s.carts.View(ctx, sessionKey, func(session *cart.Session) error {
		view = buildView(session)
		return nil
	})
	return view, err
}

func (s *service) AddItem(ctx context.Context, sessionKey string, input AddItemInput) (*View, error) {
	return s.mutate(ctx, sessionKey, "add", func(session *cart.Session) error {
		id := cart.LineID(input.Item.ProductID, input.Item.VariantID)
		existing := 0
		if item, ok := session.Cart.Item(id); ok {
			existing = item.Quantity
		}
		if err := s.checkLineCap(existing + input.Quantity); err != nil {
			return err
		}
		_, err := session.Cart.AddItem(input.Item, input.Quantity)
		return err
	})
}

func (s *service) UpdateItem(ctx context.Context, sessionKey, itemID string, quantity int) (*View, error) {
	return s.mutate(ctx, sessionKey, "update", func(session *cart.Session) error {
		if quantity > 0 {
			if err := s.checkLineCap(quantity); err != nil {
				return err
			}
		}
		return session.Cart.UpdateQuantity(itemID, quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, sessionKey, itemID string) (*View, error) {
	return s.mutate(ctx, sessionKey, "remove", func(session *cart.Session) error {
		session.Cart.RemoveItem(itemID)
		return nil
	})
}

func (s *service) ClearCart(ctx context.Context, sessionKey string) (*View, error) {
	return s.mutate(ctx, sessionKey, "clear", func(session *cart.Session) error {
		session.Cart.Clear()
		return nil
	})
}

func (s *service) ApplyDiscount(ctx context.Context, sessionKey, code string) (*View, error) {
	return s.mutate(ctx, sessionKey, "discount", func(session *cart.Session) error {
		amount := session.Cart.ApplyDiscount(code)
		recognized := s.codes.Recognizes(session.Cart.DiscountCode())
		s.metrics.IncDiscount(recognized)
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"session_id":      session.Key,
			"discount_code":   session.Cart.DiscountCode(),
			"discount_amount": amount.String(),
			"recognized":      recognized,
		}), "cart.discount_applied")
		return nil
	})
}

// Next advances the wizard once the current step's data is present in the cart.
func (s *service) Next(ctx context.Context, sessionKey string) (*View, error) {
	return s.transition(ctx, sessionKey, func(session *cart.Session, w *Wizard) error {
		if err := requireStepData(session, w.Current()); err != nil {
			return err
		}
		w.Next()
		return nil
	})
}

func (s *service) Back(ctx context.Context, sessionKey string) (*View, error) {
	return s.transition(ctx, sessionKey, func(_ *cart.Session, w *Wizard) error {
		w.Back()
		return nil
	})
}

// SubmitShipping validates and stores the address, then advances to payment.
// Invalid input leaves the cart and the step untouched.
func (s *service) SubmitShipping(ctx context.Context, sessionKey string, addr checkoutrules.ShippingAddress) (*View, error) {
	return s.transition(ctx, sessionKey, func(session *cart.Session, w *Wizard) error {
		if err := requireStep(w.Current(), StepShipping); err != nil {
			return err
		}
		clean, err := checkoutrules.ValidateShippingAddress(addr)
		if err != nil {
			return err
		}
		session.Cart.SetShippingAddress(clean)
		w.Next()
		return nil
	})
}

// SubmitPayment validates and stores the payment selection, then advances to review.
func (s *service) SubmitPayment(ctx context.Context, sessionKey string, sel checkoutrules.PaymentSelection) (*View, error) {
	return s.transition(ctx, sessionKey, func(session *cart.Session, w *Wizard) error {
		if err := requireStep(w.Current(), StepPayment); err != nil {
			return err
		}
		if _, ok := session.Cart.ShippingAddress(); !ok {
			return missingData(StepShipping, "shippingAddress")
		}
		clean, err := checkoutrules.ValidatePaymentSelection(sel)
		if err != nil {
			return err
		}
		session.Cart.SetPaymentSelection(clean)
		w.Next()
		return nil
	})
}

// Review returns the summary shown before the order is confirmed.
func (s *service) Review(ctx context.Context, sessionKey string) (*View, error) {
	var view *View
	err := s.carts.View(ctx, sessionKey, func(session *cart.Session) error {
		if err := requireStep(Step(session.CheckoutStep), StepReview); err != nil {
			return err
		}
		view = buildView(session)
		return nil
	})
	return view, err
}

func (s *service) mutate(ctx context.Context, sessionKey, op string, fn func(*cart.Session) error) (*View, error) {
	var view *View
	err := s.carts.Update(ctx, sessionKey, func(session *cart.Session) error {
		if err := fn(session); err != nil {
			return err
		}
		if session.Cart.IsEmpty() {
			session.CheckoutStep = int(StepCart)
		}
		view = buildView(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncCartMutation(op)
	return view, nil
}

func (s *service) transition(ctx context.Context, sessionKey string, fn func(*cart.Session, *Wizard) error) (*View, error) {
	var (
		view    *View
		from    Step
		entered Step
	)
	err := s.carts.Update(ctx, sessionKey, func(session *cart.Session) error {
		w := NewWizard(Step(session.CheckoutStep))
		from = w.Current()
		if err := fn(session, w); err != nil {
			return err
		}
		entered = w.Current()
		session.CheckoutStep = int(entered)
		view = buildView(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entered != from {
		s.metrics.IncStepEntered(entered.String())
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"session_id": sessionKey,
			"from_step":  from.String(),
			"to_step":    entered.String(),
		}), "checkout.step_changed")
	}
	return view, nil
}

func (s *service) checkLineCap(quantity int) error {
	if s.maxLineQty == 0 || quantity <= s.maxLineQty {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "line quantity exceeds limit").WithDetails(map[string]string{
		"quantity": fmt.Sprintf("must be at most %d per line", s.maxLineQty),
	})
}

func requireStepData(session *cart.Session, current Step) error {
	switch current {
	case StepCart:
		if session.Cart.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty").WithDetails(map[string]string{
				"step": StepCart.String(),
			})
		}
	case StepShipping:
		if _, ok := session.Cart.ShippingAddress(); !ok {
			return missingData(StepShipping, "shippingAddress")
		}
	case StepPayment:
		if _, ok := session.Cart.PaymentSelection(); !ok {
			return missingData(StepPayment, "paymentSelection")
		}
	}
	return nil
}

func requireStep(current, want Step) error {
	if current == want {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout is not on the %s step", want)).WithDetails(map[string]string{
		"currentStep":  current.String(),
		"requiredStep": want.String(),
	})
}

func missingData(step Step, field string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s step is incomplete", step)).WithDetails(map[string]string{
		"step":    step.String(),
		"missing": field,
	})
}
