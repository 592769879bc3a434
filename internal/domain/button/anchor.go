package button

import (
	"math"
	"time"
)

// Direction tells which way a duration value moves while running.
type Direction uint8

const (
	// CountUp grows the value and saturates at the maximum.
	CountUp Direction = iota
	// CountDown shrinks the value and clamps at zero.
	CountDown
)

// Snapshot is the persisted form of a duration state.
// A running state carries the wall-clock anchor it was saved at;
// a paused one carries the accumulated value alone.
type Snapshot struct {
	// ValueMs is the elapsed (count-up) or remaining (count-down) milliseconds at AnchorUnixMs.
	ValueMs uint64
	// AnchorUnixMs is the Unix time in milliseconds the value was captured at.
	AnchorUnixMs uint64
	// Anchored is set when the state was running at capture time.
	Anchored bool
}

// Running reports whether the snapshot was taken from a running state.
func (s Snapshot) Running() bool {
	return s.Anchored
}

// ToPersisted captures a duration state, stamping now as anchor when running.
func ToPersisted(valueMs uint64, running bool, now time.Time) Snapshot {
	if !running {
		return Snapshot{ValueMs: valueMs}
	}

	return Snapshot{
		ValueMs:      valueMs,
		AnchorUnixMs: unixMillis(now),
		Anchored:     true,
	}
}

// FromPersisted reconstructs the current value of a snapshot at now.
// Time that passed since the anchor is applied in the given direction; a
// clock that reads earlier than the anchor counts as no time passed.
func FromPersisted(s Snapshot, now time.Time, dir Direction) (valueMs uint64, wasRunning bool) {
	if !s.Anchored {
		return s.ValueMs, false
	}

	var elapsed uint64
	if nowMs := unixMillis(now); nowMs > s.AnchorUnixMs {
		elapsed = nowMs - s.AnchorUnixMs
	}

	return Advance(s.ValueMs, elapsed, dir), true
}

// Advance moves value by delta milliseconds in dir, saturating at both ends.
func Advance(value, delta uint64, dir Direction) uint64 {
	if dir == CountDown {
		if delta >= value {
			return 0
		}

		return value - delta
	}

	if value > math.MaxUint64-delta {
		return math.MaxUint64
	}

	return value + delta
}

// unixMillis converts t to Unix milliseconds, treating pre-epoch times as zero.
func unixMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}

	return uint64(ms)
}
