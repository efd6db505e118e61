package promo

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind is a stable, machine-readable promo failure code.
type Kind string

const (
	KindNotFound             Kind = "promo_not_found"
	KindInactive             Kind = "promo_inactive"
	KindNotStarted           Kind = "promo_not_started"
	KindExpired              Kind = "promo_expired"
	KindUsageLimitReached    Kind = "usage_limit_reached"
	KindUserLimitReached     Kind = "user_limit_reached"
	KindMinOrderAmountNotMet Kind = "min_order_amount_not_met"
	KindNotApplicableToItems Kind = "not_applicable_to_items"
)

var messages = map[Kind]string{
	KindNotFound:             "promo code not found",
	KindInactive:             "promo code is inactive",
	KindNotStarted:           "promo code is not valid yet",
	KindExpired:              "promo code expired",
	KindUsageLimitReached:    "promo code usage limit reached",
	KindUserLimitReached:     "promo code already used the maximum number of times",
	KindMinOrderAmountNotMet: "order amount is below the promo minimum",
	KindNotApplicableToItems: "promo code does not apply to any cart item",
}

// Error is an expected promo rule failure.
//
// Errors compare by Kind, so errors.Is(err, ErrExpired) holds for any
// expired-promo error regardless of the attached detail.
type Error struct {
	Kind Kind
	// MinAmount is set for KindMinOrderAmountNotMet.
	MinAmount decimal.Decimal
}

func (e *Error) Error() string {
	msg, ok := messages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	if e.Kind == KindMinOrderAmountNotMet {
		return fmt.Sprintf("%s (minimum %s)", msg, e.MinAmount.StringFixed(2))
	}
	return msg
}

// Is reports whether target is a promo error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel promo errors, one per Kind.
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInactive             = &Error{Kind: KindInactive}
	ErrNotStarted           = &Error{Kind: KindNotStarted}
	ErrExpired              = &Error{Kind: KindExpired}
	ErrUsageLimitReached    = &Error{Kind: KindUsageLimitReached}
	ErrUserLimitReached     = &Error{Kind: KindUserLimitReached}
	ErrMinOrderAmountNotMet = &Error{Kind: KindMinOrderAmountNotMet}
	ErrNotApplicableToItems = &Error{Kind: KindNotApplicableToItems}
)

// ErrCodeTaken is returned when creating or renaming a promo to a code that
// another promo already uses.
var ErrCodeTaken = errors.New("promo code already exists")

// ValidationError describes an invalid admin promo payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AsError extracts a promo rule failure from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
