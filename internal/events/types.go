// internal/events/types.go
package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventType represents the type of event.
type EventType string

const (
	// Wallet events
	SessionChanged EventType = "wallet.session_changed"

	// Sale state events
	SnapshotUpdated EventType = "sale.snapshot_updated"
	SnapshotFailed  EventType = "sale.snapshot_failed"

	// Transaction events
	TxSubmitted EventType = "tx.submitted"
	TxPending   EventType = "tx.pending"
	TxConfirmed EventType = "tx.confirmed"
	TxFailed    EventType = "tx.failed"
	TxCleared   EventType = "tx.cleared"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event header with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// SessionChangedEvent is emitted after every wallet session mutation.
type SessionChangedEvent struct {
	BaseEvent
	Account *common.Address
	ChainID uint64
	Err     error
}

// SnapshotUpdatedEvent is emitted when a complete sale snapshot replaces
// the previous one.
type SnapshotUpdatedEvent struct {
	BaseEvent
	Paused           bool
	ForceActive      bool
	RaisedWei        *uint256.Int
	ParticipantCount uint64
	FetchedAt        time.Time
}

// SnapshotFailedEvent is emitted when a fetch cycle fails or the reader is
// not configured.
type SnapshotFailedEvent struct {
	BaseEvent
	Err        error
	ConfigFail bool
}

// TxEvent carries a ticket transition.
type TxEvent struct {
	BaseEvent
	TicketID string
	Action   string
	Account  common.Address
	Value    string
	Hash     string
	Status   string
	Message  string
	Duration time.Duration
}
