package ticker

import (
	"sync/atomic"
	"time"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
)

// DefaultPeriod is the wake interval of the loop.
const DefaultPeriod = 100 * time.Millisecond

// msPerSecond converts the millisecond value to display seconds.
const msPerSecond = 1000

// record is one immutable state of the scheduler.
type record struct {
	// epoch identifies the loop allowed to advance this record.
	epoch uint64
	// running is cleared by Stop, Reset and count-down expiry.
	running bool
	// valueMs is the elapsed or remaining time in milliseconds.
	valueMs uint64
	// done is closed when the epoch is superseded; nil once no loop runs.
	done chan struct{}
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithPeriod sets the loop period. Periods under a millisecond are raised to one.
func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		s.period = max(d, time.Millisecond)
	}
}

// WithRender sets the callback invoked with the new whole-second value each
// time a tick crosses a second boundary.
func WithRender(fn func(secs uint64)) Option {
	return func(s *Scheduler) {
		s.render = fn
	}
}

// WithExpiry sets the callback invoked once when a count-down reaches zero.
func WithExpiry(fn func()) Option {
	return func(s *Scheduler) {
		s.expire = fn
	}
}

// Scheduler advances a millisecond counter on a background loop.
type Scheduler struct {
	// dir selects count-up (stopwatch) or count-down (timer) behaviour.
	dir button.Direction
	// period is the wake interval and the step added or removed per wake.
	period time.Duration
	// render is called on second boundaries.
	render func(secs uint64)
	// expire is called when a count-down hits zero.
	expire func()
	// state is the current record; every change replaces it.
	state atomic.Pointer[record]
}

// New creates a stopped scheduler at zero.
func New(dir button.Direction, opts ...Option) *Scheduler {
	s := &Scheduler{
		dir:    dir,
		period: DefaultPeriod,
		render: func(uint64) {},
		expire: func() {},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.state.Store(new(record))

	return s
}

// Start launches a loop counting from seed and returns its epoch.
// A count-down seeded with zero has nothing to count and is refused.
// Any loop still running is superseded.
func (s *Scheduler) Start(seed uint64) (uint64, bool) {
	if s.dir == button.CountDown && seed == 0 {
		return 0, false
	}

	rec := s.replace(func(old *record) *record {
		return &record{epoch: old.epoch + 1, running: true, valueMs: seed, done: make(chan struct{})}
	})

	go s.loop(rec.epoch, rec.done)

	return rec.epoch, true
}

// Stop halts the current loop, if any, and returns the value it reached.
func (s *Scheduler) Stop() uint64 {
	rec := s.replace(func(old *record) *record {
		return &record{epoch: old.epoch + 1, valueMs: old.valueMs}
	})

	return rec.valueMs
}

// Reset halts the current loop and sets the value.
func (s *Scheduler) Reset(valueMs uint64) {
	s.replace(func(old *record) *record {
		return &record{epoch: old.epoch + 1, valueMs: valueMs}
	})
}

// Value returns the current value in milliseconds.
func (s *Scheduler) Value() uint64 {
	return s.state.Load().valueMs
}

// Running reports whether a loop is live.
func (s *Scheduler) Running() bool {
	return s.state.Load().running
}

// Snapshot returns value and running flag read together.
func (s *Scheduler) Snapshot() (uint64, bool) {
	rec := s.state.Load()
	return rec.valueMs, rec.running
}

// Epoch returns the epoch of the current record.
func (s *Scheduler) Epoch() uint64 {
	return s.state.Load().epoch
}

// Period returns the loop period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// replace installs the record built from the current one, retrying on
// contention, and releases the loop of the epoch it supersedes.
func (s *Scheduler) replace(build func(old *record) *record) *record {
	for {
		old := s.state.Load()

		next := build(old)
		if !s.state.CompareAndSwap(old, next) {
			continue
		}

		// Only one swap can leave an epoch, so done is closed once.
		if old.done != nil && old.epoch != next.epoch {
			close(old.done)
		}

		return next
	}
}

// loop advances the value once per period while epoch is live.
// It returns as soon as done is closed.
func (s *Scheduler) loop(epoch uint64, done <-chan struct{}) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	step := uint64(s.period.Milliseconds())

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		cur := s.state.Load()
		if cur.epoch != epoch || !cur.running {
			return
		}

		next := button.Advance(cur.valueMs, step, s.dir)
		expired := s.dir == button.CountDown && next == 0

		rec := &record{epoch: epoch, running: !expired, valueMs: next, done: cur.done}
		if !s.state.CompareAndSwap(cur, rec) {
			return
		}

		if next/msPerSecond != cur.valueMs/msPerSecond && s.current(rec) {
			s.render(next / msPerSecond)
		}

		if expired {
			if s.current(rec) {
				s.expire()
			}

			return
		}
	}
}

// current reports whether rec is still the live record.
func (s *Scheduler) current(rec *record) bool {
	return s.state.Load() == rec
}
