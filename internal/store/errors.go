package store

import "fmt"

// ErrorKind classifies ledger failures. Each kind has a stable machine-readable
// code that the API layer passes through to clients.
type ErrorKind string

// Error kinds.
const (
	KindNotFound               ErrorKind = "not_found"
	KindValidation             ErrorKind = "validation"
	KindInsufficientStock      ErrorKind = "insufficient_stock"
	KindExceedsAssigned        ErrorKind = "exceeds_assigned"
	KindAlreadyApproved        ErrorKind = "already_approved"
	KindInvalidStateTransition ErrorKind = "invalid_state_transition"
)

// Error is a recoverable ledger error. Two errors match under errors.Is when
// their kinds are equal, so callers compare against the Err* sentinels.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports whether target is a ledger error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrInsufficientStock      = &Error{Kind: KindInsufficientStock}
	ErrExceedsAssigned        = &Error{Kind: KindExceedsAssigned}
	ErrAlreadyApproved        = &Error{Kind: KindAlreadyApproved}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
)

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func insufficientStock(itemID int64, available, requested int) error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for item %d: available %d, requested %d", itemID, available, requested),
	}
}

func exceedsAssigned(assigned, requested int) error {
	return &Error{
		Kind:    KindExceedsAssigned,
		Message: fmt.Sprintf("quantity exceeds assigned: assigned %d, requested %d", assigned, requested),
	}
}

func invalidTransition(from, to any) error {
	return &Error{
		Kind:    KindInvalidStateTransition,
		Message: fmt.Sprintf("cannot move shipment from %v to %v", from, to),
	}
}
