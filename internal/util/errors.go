// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller is expected to recover from it.
type Kind int

const (
	KindUnknown             Kind = iota
	KindValidation                // local or server-side input check; fix the input
	KindConflict                  // duplicate active subscription, or the commitment is fully settled
	KindAuthentication            // wallet security code rejected; re-enter the code only
	KindInsufficientBalance       // wallet balance too low; refresh balance and adjust
	KindNotFound                  // commitment or product does not exist (anymore)
	KindTransient                 // network or server failure, outcome unknown
	KindUnauthenticated           // no valid session for the caller
)

var kindNames = map[Kind]string{
	KindUnknown:             "UNKNOWN",
	KindValidation:          "VALIDATION",
	KindConflict:            "CONFLICT",
	KindAuthentication:      "INVALID_WALLET_CODE",
	KindInsufficientBalance: "INSUFFICIENT_BALANCE",
	KindNotFound:            "NOT_FOUND",
	KindTransient:           "UNAVAILABLE",
	KindUnauthenticated:     "UNAUTHENTICATED",
}

// String returns the wire code of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// ParseKind maps a wire code back to a Kind. Unknown codes map to KindUnknown.
func ParseKind(code string) Kind {
	for k, s := range kindNames {
		if s == code {
			return k
		}
	}
	return KindUnknown
}

// Retryable reports whether the same request may be resubmitted by the user.
// Nothing in this module retries automatically.
func (k Kind) Retryable() bool {
	return k == KindAuthentication || k == KindTransient
}

// kindError is a sentinel error bound to a Kind.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Common application-specific errors.
var (
	ErrInvalidInput       = &kindError{KindValidation, "invalid input provided"}
	ErrInvalidPeriod      = &kindError{KindValidation, "period end must be after period start"}
	ErrInvalidWalletCode  = &kindError{KindAuthentication, "invalid wallet security code"}
	ErrMalformedCode      = &kindError{KindValidation, "wallet security code must be exactly 4 digits"}
	ErrOverpayment        = &kindError{KindValidation, "amount exceeds the remaining amount of the obligation"}
	ErrBelowMinimum       = &kindError{KindValidation, "amount is below the product minimum"}
	ErrInsufficientFunds  = &kindError{KindInsufficientBalance, "insufficient funds"}
	ErrNotFound           = &kindError{KindNotFound, "resource not found"}
	ErrProductNotFound    = &kindError{KindNotFound, "product not found"}
	ErrCommitmentNotFound = &kindError{KindNotFound, "commitment not found"}
	ErrConflict           = &kindError{KindConflict, "conflicting commitment state"}
	ErrActiveSubscription = &kindError{KindConflict, "an active subscription for this product already exists"}
	ErrFullySettled       = &kindError{KindConflict, "commitment is fully settled"}
	ErrUnavailable        = &kindError{KindTransient, "service unavailable, outcome unknown"}
	ErrWalletNotFound     = &kindError{KindTransient, "wallet not found, nothing was debited"}
	ErrUnauthenticated    = &kindError{KindUnauthenticated, "authentication required"}
)

// ConflictError is returned when an active subscription for the same product already
// exists. ExistingID lets the caller settle the existing commitment instead of retrying.
type ConflictError struct {
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (existing commitment %s)", ErrActiveSubscription.msg, e.ExistingID)
}

func (e *ConflictError) Unwrap() error { return ErrActiveSubscription }

// KindOf returns the Kind of the first kinded error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// ExistingID extracts the blocking commitment id from a conflict, if any.
func ExistingID(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) && ce.ExistingID != "" {
		return ce.ExistingID, true
	}
	return "", false
}

// KindSentinel returns the generic sentinel for a Kind, used when rebuilding errors
// received over the wire.
func KindSentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrInvalidInput
	case KindConflict:
		return ErrConflict
	case KindAuthentication:
		return ErrInvalidWalletCode
	case KindInsufficientBalance:
		return ErrInsufficientFunds
	case KindNotFound:
		return ErrNotFound
	case KindTransient:
		return ErrUnavailable
	case KindUnauthenticated:
		return ErrUnauthenticated
	default:
		return nil
	}
}
