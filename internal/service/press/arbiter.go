package press

import (
	"sync/atomic"
	"time"
)

// DefaultDelay is the hold threshold used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Outcome is what a release resolved to.
type Outcome uint8

const (
	// Short means the release came before the hold threshold.
	Short Outcome = iota
	// LongAlreadyFired means the long-press action ran during this press.
	LongAlreadyFired
)

// String returns the outcome name used in logs and metric labels.
func (o Outcome) String() string {
	if o == LongAlreadyFired {
		return "long"
	}

	return "short"
}

// Phase is the tag of the press state.
type Phase uint8

const (
	// Idle means no press is held.
	Idle Phase = iota
	// Armed means a press is held and its deadline has not fired.
	Armed
	// Fired means the deadline fired while the press was held.
	Fired
)

// phaseBits is the width of the phase tag in the packed state word.
const phaseBits = 2

// pack combines an epoch and a phase into one state word.
func pack(epoch uint64, phase Phase) uint64 {
	return epoch<<phaseBits | uint64(phase)
}

// unpack splits a state word into epoch and phase.
func unpack(word uint64) (uint64, Phase) {
	return word >> phaseBits, Phase(word & (1<<phaseBits - 1))
}

// Arbiter disambiguates short and long presses for one button.
//
// Begin, End, Cancel and SetDelay must be called from the button's event
// goroutine. The deadline callback runs on its own goroutine.
type Arbiter struct {
	// state is the packed {epoch, phase} word, the single source of truth.
	state atomic.Uint64
	// delay is the hold threshold in nanoseconds.
	delay atomic.Int64
	// seq is the last allocated epoch; only the event goroutine advances it.
	seq uint64
	// timer is the pending deadline of the current press, if any.
	timer *time.Timer
}

// New returns an idle arbiter with the given hold threshold.
func New(delay time.Duration) *Arbiter {
	a := new(Arbiter)
	a.SetDelay(delay)

	return a
}

// SetDelay changes the hold threshold for subsequent presses.
// Non-positive values select DefaultDelay.
func (a *Arbiter) SetDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultDelay
	}

	a.delay.Store(int64(d))
}

// Delay returns the current hold threshold.
func (a *Arbiter) Delay() time.Duration {
	return time.Duration(a.delay.Load())
}

// Begin starts a new press and arms its deadline.
// onLong runs at most once, on the deadline goroutine, if the press is still
// held and still current when the threshold passes. Begin returns the epoch.
func (a *Arbiter) Begin(onLong func()) uint64 {
	a.stopTimer()

	a.seq++
	epoch := a.seq
	a.state.Store(pack(epoch, Armed))

	a.timer = time.AfterFunc(a.Delay(), func() {
		if a.state.CompareAndSwap(pack(epoch, Armed), pack(epoch, Fired)) {
			onLong()
		}
	})

	return epoch
}

// End releases the current press and reports whether its long action fired.
func (a *Arbiter) End() Outcome {
	a.stopTimer()

	old := a.state.Swap(pack(a.seq, Idle))
	if _, phase := unpack(old); phase == Fired {
		return LongAlreadyFired
	}

	return Short
}

// Cancel invalidates any pending deadline without reporting an outcome.
func (a *Arbiter) Cancel() {
	a.stopTimer()

	a.seq++
	a.state.Store(pack(a.seq, Idle))
}

// State returns the current epoch and phase.
func (a *Arbiter) State() (uint64, Phase) {
	return unpack(a.state.Load())
}

// stopTimer drops the pending deadline. A deadline that already started is
// harmless: its compare-and-swap fails once the state moves on.
func (a *Arbiter) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
