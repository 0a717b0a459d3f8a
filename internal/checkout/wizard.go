package checkout

// Step is a position in the four-step checkout wizard.
type Step int

const (
	StepCart Step = iota + 1
	StepShipping
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	}
	return "unknown"
}

func (s Step) IsValid() bool {
	return s >= StepCart && s <= StepReview
}

// Wizard moves one step at a time and never leaves [StepCart, StepReview].
type Wizard struct {
	current Step
}

// NewWizard starts at step, clamped into range.
func NewWizard(step Step) *Wizard {
	return &Wizard{current: clamp(step)}
}

func (w *Wizard) Current() Step {
	return w.current
}

// Next advances by one, staying on the review step once reached.
func (w *Wizard) Next() Step {
	w.current = clamp(w.current + 1)
	return w.current
}

// Back retreats by one, staying on the cart step once reached.
func (w *Wizard) Back() Step {
	w.current = clamp(w.current - 1)
	return w.current
}

func (w *Wizard) Reset() {
	w.current = StepCart
}

func clamp(step Step) Step {
	if step < StepCart {
		return StepCart
	}
	if step > StepReview {
		return StepReview
	}
	return step
}
