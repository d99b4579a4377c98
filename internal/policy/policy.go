// Package policy decides whether the sale accepts purchases.
package policy

import "time"

type Reason int

const (
	NotStarted Reason = iota
	Paused
	Open
)

func (r Reason) String() string {
	switch r {
	case NotStarted:
		return "NOT_STARTED"
	case Paused:
		return "PAUSED"
	default:
		return "OPEN"
	}
}

// Verdict is the activation decision for one instant.
type Verdict struct {
	IsOpen      bool
	CanTransact bool
	Reason      Reason
}

// Evaluate opens the sale once now reaches start, or earlier when the
// contract is force-activated. A paused sale stays open but rejects
// purchases.
func Evaluate(now, start time.Time, paused, forceActive bool) Verdict {
	open := forceActive || !now.Before(start)
	v := Verdict{IsOpen: open, CanTransact: open && !paused}
	switch {
	case !open:
		v.Reason = NotStarted
	case paused:
		v.Reason = Paused
	default:
		v.Reason = Open
	}
	return v
}

// Remaining is a countdown broken into display units.
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// Done reports whether the countdown reached zero.
func (r Remaining) Done() bool {
	return r == Remaining{}
}

// Countdown returns the time left until start, clamped at zero.
func Countdown(now, start time.Time) Remaining {
	left := start.Sub(now)
	if left <= 0 {
		return Remaining{}
	}
	secs := int(left / time.Second)
	return Remaining{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}
