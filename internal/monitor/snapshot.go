// internal/monitor/snapshot.go
package monitor

import (
	"time"

	"github.com/holiman/uint256"
)

// Snapshot is one complete read of the sale contract. Snapshots are
// replaced wholesale and must not be mutated after publication.
type Snapshot struct {
	Paused           bool
	ForceActive      bool
	RaisedWei        *uint256.Int
	ParticipantCount uint64
	FetchedAt        time.Time

	// Stale is set on the copy kept after a failed fetch.
	Stale bool
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.RaisedWei != nil {
		out.RaisedWei = s.RaisedWei.Clone()
	}
	return &out
}

// ReaderState is what the reader exposes to the rest of the storefront.
// Loading is true only until the first fetch settles.
type ReaderState struct {
	Snapshot  *Snapshot
	Loading   bool
	Err       *ReadError
	ConfigErr bool
}

// ReadError is a user-facing reader failure. Message is safe to display.
type ReadError struct {
	Message string
	Cause   error
}

func (e *ReadError) Error() string {
	return e.Message
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}

const (
	configErrorMessage = "Configuration Error: the presale contract address is not set. " +
		"Update presale.contract_address before starting the storefront."
	readErrorMessage = "Failed to load presale data. " +
		"Ensure the contract address is correct and you are on the right network."
)
