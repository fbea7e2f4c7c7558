package promotion

import "fmt"

// Kind classifies why a promotion could not be applied.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindBelowMinimum   Kind = "below_minimum"
	KindAlreadyApplied Kind = "already_applied"
)

// Error is returned when a promotion code cannot be applied.
// It compares equal under errors.Is to the sentinel of the same Kind.
type Error struct {
	Kind    Kind
	Code    string
	Minimum int64
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Code == "" {
			return "Please enter a promo code."
		}
		return fmt.Sprintf("Invalid promo code: %s", e.Code)
	case KindBelowMinimum:
		return fmt.Sprintf("A minimum order of ₹%d is required for %s.", e.Minimum, e.Code)
	case KindAlreadyApplied:
		return "A promo code has already been applied to this order."
	default:
		return "Promo code could not be applied."
	}
}

// ErrorCode maps the kind onto the application error codes.
func (e *Error) ErrorCode() string {
	switch e.Kind {
	case KindNotFound:
		return "not_found"
	case KindAlreadyApplied:
		return "conflict"
	default:
		return "invalid"
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrBelowMinimum   = &Error{Kind: KindBelowMinimum}
	ErrAlreadyApplied = &Error{Kind: KindAlreadyApplied}
)
