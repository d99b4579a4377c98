// internal/transaction/ticket.go
package transaction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusPending
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSubmitting:
		return "SUBMITTING"
	case StatusPending:
		return "PENDING"
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusFailed:
		return "FAILED"
	default:
		return "IDLE"
	}
}

// InFlight reports whether the ticket still holds the slot.
func (s Status) InFlight() bool {
	return s == StatusSubmitting || s == StatusPending
}

// Terminal reports whether the ticket settled.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

type Action int

const (
	ActionPurchase Action = iota
	ActionSetPause
	ActionSetForceActive
)

func (a Action) String() string {
	switch a {
	case ActionSetPause:
		return "set_pause"
	case ActionSetForceActive:
		return "set_force_active"
	default:
		return "purchase"
	}
}

// Request describes one write. Amount and Referrer apply to purchases,
// Flag is the target of the admin toggles.
type Request struct {
	Action   Action
	Amount   string
	Referrer string
	Flag     bool
}

func Purchase(amount, referrer string) Request {
	return Request{Action: ActionPurchase, Amount: amount, Referrer: referrer}
}

// SetPause requests pause() when paused is true, unpause() otherwise.
func SetPause(paused bool) Request {
	return Request{Action: ActionSetPause, Flag: paused}
}

func SetForceActive(active bool) Request {
	return Request{Action: ActionSetForceActive, Flag: active}
}

// Ticket is the state of the current or last write.
type Ticket struct {
	ID          string
	Action      Action
	Status      Status
	Account     common.Address
	Value       *big.Int
	Hash        common.Hash
	Err         *TxError
	SubmittedAt time.Time
	SettledAt   time.Time
}

// HasHash reports whether the transaction was broadcast.
func (t Ticket) HasHash() bool {
	return t.Hash != (common.Hash{})
}

// ErrorMessage is empty unless the ticket failed.
func (t Ticket) ErrorMessage() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Message()
}

func (t Ticket) clone() Ticket {
	out := t
	if t.Value != nil {
		out.Value = new(big.Int).Set(t.Value)
	}
	return out
}
