// internal/storefront/errors.go
package storefront

import (
	"errors"

	"github.com/rovshanmuradov/fito-presale/internal/onramp"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
)

var (
	ErrNotAdmin       = errors.New("not the admin account")
	ErrNotLoaded      = errors.New("sale state not loaded")
	ErrCardPaused     = errors.New("sale paused")
	ErrCardNotActive  = errors.New("sale not active")
	ErrCardNotLoaded  = errors.New("sale state unknown")
	ErrCardNoAccount  = errors.New("wallet not connected")
	ErrCardAmount     = errors.New("invalid card amount")
	ErrPaymentFailed  = errors.New("payment link failed")
	ErrCardInProgress = errors.New("card payment in progress")
)

// CardError is a card checkout problem shown next to the card button.
type CardError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *CardError) Error() string {
	return e.Message
}

func (e *CardError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

var cardMessages = map[error]string{
	ErrCardPaused:     "Presale is currently paused by the admin.",
	ErrCardNotActive:  "Presale is not active yet.",
	ErrCardNotLoaded:  "Presale status is unavailable. Please try again later.",
	ErrCardNoAccount:  "Connect your wallet to proceed.",
	ErrCardAmount:     "Please enter a valid amount of ETH to purchase.",
	ErrPaymentFailed:  "Could not create payment link. Please try again later.",
	ErrCardInProgress: "A card payment is already being prepared.",
}

func cardError(kind, cause error) *CardError {
	if errors.Is(cause, onramp.ErrNotConfigured) {
		return &CardError{Kind: onramp.ErrNotConfigured, Message: "Payment service is not configured.", Cause: cause}
	}
	return &CardError{Kind: kind, Message: cardMessages[kind], Cause: cause}
}

func adminError(kind error) error {
	msg := "Only the admin account can change the sale state."
	if kind == ErrNotLoaded {
		msg = "Sale state is not loaded yet."
	}
	return &transaction.PreconditionError{Kind: kind, Message: msg}
}

// IsPrecondition reports whether err was caused by the caller's input or
// the current state rather than a failing dependency.
func IsPrecondition(err error) bool {
	var pe *transaction.PreconditionError
	if errors.As(err, &pe) {
		return true
	}
	var ce *CardError
	if errors.As(err, &ce) {
		return !errors.Is(ce, ErrPaymentFailed) && !errors.Is(ce, onramp.ErrNotConfigured)
	}
	return false
}
