// internal/transaction/errors.go
package transaction

import (
	"errors"
	"fmt"
	"time"
)

// Precondition kinds. Submit rejects with a *PreconditionError matching one
// of these.
var (
	ErrBusy            = errors.New("transaction already in progress")
	ErrNotConnected    = errors.New("wallet not connected")
	ErrWrongNetwork    = errors.New("wrong network")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidReferrer = errors.New("invalid referrer")
	ErrSaleClosed      = errors.New("sale not accepting purchases")
)

// Failure kinds of a ticket.
var (
	ErrUserRejected = errors.New("transaction rejected by user")
	ErrReverted     = errors.New("transaction reverted")
	ErrTimeout      = errors.New("confirmation timeout")
	ErrFailed       = errors.New("transaction failed")

	// ErrStopped is the cause recorded when the coordinator shuts down while
	// a ticket waits for confirmation.
	ErrStopped = errors.New("stopped waiting for confirmation")
)

// PreconditionError is a synchronous Submit rejection. No state changes.
type PreconditionError struct {
	Kind    error
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func (e *PreconditionError) Unwrap() error {
	return e.Kind
}

func precondition(kind error) *PreconditionError {
	var msg string
	switch kind {
	case ErrBusy:
		msg = "A transaction is already in progress."
	case ErrNotConnected:
		msg = "Please connect your wallet first."
	case ErrWrongNetwork:
		msg = "Please switch to the correct network."
	case ErrInvalidAmount:
		msg = "Please enter a valid amount."
	case ErrInvalidReferrer:
		msg = "Invalid referrer address."
	case ErrSaleClosed:
		msg = "Presale is not accepting purchases right now."
	default:
		msg = kind.Error()
	}
	return &PreconditionError{Kind: kind, Message: msg}
}

type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindUserRejected
	KindReverted
	KindTimeout
)

func (k FailureKind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindReverted:
		return "reverted"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case KindUserRejected:
		return ErrUserRejected
	case KindReverted:
		return ErrReverted
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrFailed
	}
}

// TxError is the terminal failure of a ticket.
type TxError struct {
	Kind    FailureKind
	Reason  string        // revert reason
	Timeout time.Duration // confirmation bound that was exceeded
	Cause   error
}

// Message is the text shown to the visitor.
func (e *TxError) Message() string {
	switch e.Kind {
	case KindUserRejected:
		return "Transaction rejected by user"
	case KindReverted:
		reason := e.Reason
		if reason == "" {
			reason = "execution reverted"
		}
		return "Reverted: " + reason
	case KindTimeout:
		return fmt.Sprintf("Timeout: confirmation not observed within %s", e.Timeout)
	default:
		if e.Cause != nil {
			return "Transaction failed: " + e.Cause.Error()
		}
		return "Transaction failed"
	}
}

func (e *TxError) Error() string {
	return e.Message()
}

func (e *TxError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Cause}
}
