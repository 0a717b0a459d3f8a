package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/keylock"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	firstStep = 1
	lastStep  = 4
)

// ErrPersist marks a mutation that succeeded in memory but could not be saved.
var ErrPersist = errors.New("cart state not persisted")

// Session is the state handed to View and Update callbacks.
type Session struct {
	Key          string
	Cart         *Cart
	CheckoutStep int
}

// Store serializes load, mutate and save for each session key while
// distinct sessions run in parallel.
type Store struct {
	persistence Persistence
	pricing     Pricing
	discounts   DiscountPolicy
	locks       *keylock.Registry
	logg        *logger.Logger
	now         func() time.Time
}

// NewStore wires the store against a persistence port.
func NewStore(persistence Persistence, pricing Pricing, discounts DiscountPolicy, logg *logger.Logger) (*Store, error) {
	if persistence == nil {
		return nil, errors.New("cart persistence required")
	}
	if discounts == nil {
		return nil, errors.New("discount policy required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		persistence: persistence,
		pricing:     pricing,
		discounts:   discounts,
		locks:       keylock.New(),
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Pricing exposes the constants carts are built with.
func (s *Store) Pricing() Pricing {
	return s.pricing
}

// View loads the session under its lock and runs fn without saving.
func (s *Store) View(ctx context.Context, key string, fn func(*Session) error) error {
	return s.run(ctx, key, false, fn)
}

// Update loads the session, runs fn and saves the result when fn succeeds.
// An error from fn discards the mutation.
func (s *Store) Update(ctx context.Context, key string, fn func(*Session) error) error {
	return s.run(ctx, key, true, fn)
}

// Reset deletes the stored blob of a session.
func (s *Store) Reset(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "cart lock not acquired")
	}
	defer unlock()
	if err := s.persistence.Delete(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrPersist, err), "reset cart")
	}
	return nil
}

func (s *Store) run(ctx context.Context, key string, save bool, fn func(*Session) error) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "cart lock not acquired")
	}
	defer unlock()

	session, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	if !save {
		return nil
	}

	normalizeStep(session)
	state := State{
		Cart:         session.Cart.Snapshot(),
		CheckoutStep: session.CheckoutStep,
		UpdatedAt:    s.now().UTC(),
	}
	// A mutation that ran is committed even when the caller has gone away.
	if err := s.persistence.Save(context.WithoutCancel(ctx), key, state); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrPersist, err), "save cart")
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (*Session, error) {
	session := &Session{
		Key:          key,
		Cart:         New(s.pricing, s.discounts),
		CheckoutStep: firstStep,
	}
	state, found, err := s.persistence.Load(ctx, key)
	switch {
	case errors.Is(err, ErrCorruptState):
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"session_id": key, "error": err.Error()}), "cart.state_discarded")
		return session, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	case !found:
		return session, nil
	}
	session.Cart.Restore(state.Cart)
	session.CheckoutStep = state.CheckoutStep
	normalizeStep(session)
	return session, nil
}

func normalizeStep(session *Session) {
	switch {
	case session.Cart.IsEmpty():
		session.CheckoutStep = firstStep
	case session.CheckoutStep < firstStep:
		session.CheckoutStep = firstStep
	case session.CheckoutStep > lastStep:
		session.CheckoutStep = lastStep
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	return key, nil
}
