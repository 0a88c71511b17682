package realtime

import (
	"math"
	"time"
)

// ConnState mirrors the socket lifecycle.
type ConnState int

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Backoff bounds the delay between reconnect attempts.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
}

// DefaultBackoff grows from 500ms by 1.5x up to 5s.
func DefaultBackoff() Backoff {
	return Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 1.5}
}

// Delay returns min(Max, Min * Factor^attempt). attempt starts at 0.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Min) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Min <= 0 {
		b.Min = def.Min
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Factor <= 0 {
		b.Factor = def.Factor
	}
	return b
}
