package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/render"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/press"
	"github.com/VeeLume/streamdeck-counter/internal/service/ticker"
)

const msPerSecond = 1000

// durationConfig is the part of the button settings the duration policies use.
type durationConfig struct {
	// resetMs is the value a long press restores.
	resetMs uint64
	// longPress is the hold threshold.
	longPress time.Duration
}

// policy is what distinguishes a timer from a stopwatch.
type policy struct {
	// kind labels logs and metrics.
	kind button.Kind
	// dir is the counting direction.
	dir button.Direction
	// bucket is the store bucket of the snapshots.
	bucket string
	// valueField names the value in the persisted snapshot.
	valueField string
	// format turns whole seconds into display text.
	format func(secs uint64) string
	// parse reads the button settings.
	parse func(s button.Settings, longPress time.Duration) durationConfig
	// alertOnExpiry makes reaching zero flash the key.
	alertOnExpiry bool
}

var (
	timerPolicy = &policy{
		kind:       button.KindTimer,
		dir:        button.CountDown,
		bucket:     globals.Timers,
		valueField: "remaining_ms",
		format:     render.MMSS,
		parse: func(s button.Settings, longPress time.Duration) durationConfig {
			ts := button.ParseTimer(s, longPress)
			return durationConfig{resetMs: ts.DurationMs, longPress: ts.LongPress}
		},
		alertOnExpiry: true,
	}

	stopwatchPolicy = &policy{
		kind:       button.KindStopwatch,
		dir:        button.CountUp,
		bucket:     globals.Stopwatches,
		valueField: "elapsed_ms",
		format:     render.HHMMSS,
		parse: func(s button.Settings, longPress time.Duration) durationConfig {
			ss := button.ParseStopwatch(s, longPress)
			return durationConfig{longPress: ss.LongPress}
		},
	}
)

// duration drives a timer or stopwatch: a short press toggles the tick loop,
// a long press stops it and restores the reset value.
type duration struct {
	// deps are the shared collaborators.
	deps *deps
	// policy selects timer or stopwatch behaviour.
	policy *policy
	// id is the host button id.
	id string
	// config is read by the long-press callback as well as the dispatcher.
	config atomic.Pointer[durationConfig]
	// arbiter decides between toggle and reset.
	arbiter *press.Arbiter
	// sched owns the value and the tick loop.
	sched *ticker.Scheduler
}

func newDuration(ctx context.Context, d *deps, id string, p *policy) *duration {
	b := &duration{
		deps:    d,
		policy:  p,
		id:      id,
		arbiter: press.New(d.longPress),
	}

	b.sched = ticker.New(p.dir,
		ticker.WithPeriod(d.tickInterval),
		ticker.WithRender(b.showSeconds),
		ticker.WithExpiry(func() { b.expired(ctx) }),
	)

	b.configure(nil)

	return b
}

func (b *duration) kind() button.Kind {
	return b.policy.kind
}

// appear restores the persisted state. A snapshot saved while running
// resumes with the time that passed since its anchor; a count-down that ran
// out meanwhile is reported as expired.
func (b *duration) appear(ctx context.Context, settings button.Settings) {
	cfg := b.configure(settings)

	snap, ok := loadSnapshot(b.deps.store, b.policy, b.id)
	if !ok {
		b.sched.Reset(cfg.resetMs)
		b.show()

		return
	}

	value, wasRunning := button.FromPersisted(snap, b.deps.now(), b.policy.dir)

	logger.DebugKV(ctx, "Restored duration", "value_ms", value, "was_running", wasRunning)

	if !wasRunning {
		b.sched.Reset(value)
		b.show()

		return
	}

	if b.start(ctx, value) {
		return
	}

	// A count-down that reached zero while nobody watched.
	b.sched.Reset(0)
	b.persist(ctx)
	b.show()
	b.alert()
}

func (b *duration) pressDown(ctx context.Context, settings button.Settings) {
	if settings != nil && b.reconfigure(ctx, settings) {
		b.show()
	}

	b.arbiter.Begin(func() {
		b.deps.metrics.LongPress(b.policy.kind.String())
		b.reset(ctx)
	})
}

func (b *duration) pressUp(ctx context.Context) press.Outcome {
	outcome := b.arbiter.End()
	if outcome == press.Short {
		b.toggle(ctx)
	}

	return outcome
}

// settingsChanged installs a new configuration and shows the value.
func (b *duration) settingsChanged(ctx context.Context, settings button.Settings) {
	b.reconfigure(ctx, settings)
	b.show()
}

// reconfigure installs settings and reports whether the value was reset.
// A stopped count-down whose duration changed is reset to it; a running one
// keeps counting and picks the new duration up on its next reset.
func (b *duration) reconfigure(ctx context.Context, settings button.Settings) bool {
	before := b.config.Load()
	after := b.configure(settings)

	if after.resetMs == before.resetMs || b.policy.dir != button.CountDown || b.sched.Running() {
		return false
	}

	b.sched.Reset(after.resetMs)
	b.persist(ctx)

	return true
}

// teardown halts the loop and persists the final state with an anchor when
// it was running, so the next appearance resumes from wall-clock time.
func (b *duration) teardown(ctx context.Context) (button.Snapshot, bool) {
	b.arbiter.Cancel()

	running := b.sched.Running()
	value := b.sched.Stop()

	snap := button.ToPersisted(value, running, b.deps.now())
	if err := saveSnapshot(b.deps.store, b.policy, b.id, snap); err != nil {
		logger.WarnKV(ctx, "Failed to persist duration", "error", err)
	}

	return snap, true
}

func (b *duration) notify(context.Context, CounterChanged) {}

func (b *duration) configure(settings button.Settings) durationConfig {
	cfg := b.policy.parse(settings, b.deps.longPress)

	b.config.Store(&cfg)
	b.arbiter.SetDelay(cfg.longPress)

	return cfg
}

// toggle starts a stopped loop or stops a running one.
func (b *duration) toggle(ctx context.Context) {
	if b.sched.Running() {
		value := b.sched.Stop()

		logger.DebugKV(ctx, "Stopped", "value_ms", value)

		b.persist(ctx)
		b.show()

		return
	}

	if !b.start(ctx, b.sched.Value()) {
		logger.DebugKV(ctx, "Nothing left to count down")
	}
}

// start launches the tick loop from value and persists the running state.
func (b *duration) start(ctx context.Context, value uint64) bool {
	epoch, ok := b.sched.Start(value)
	if !ok {
		return false
	}

	logger.DebugKV(ctx, "Started", "value_ms", value, "epoch", epoch)

	b.deps.metrics.TickLoop(b.policy.kind.String())
	b.persist(ctx)
	b.show()

	return true
}

// reset stops the loop and restores the configured reset value.
func (b *duration) reset(ctx context.Context) {
	cfg := b.config.Load()
	b.sched.Reset(cfg.resetMs)

	logger.DebugKV(ctx, "Reset", "value_ms", cfg.resetMs)

	b.persist(ctx)
	b.show()
}

// expired runs once when the count-down reaches zero. A reset or restart
// that got in first owns the key and nothing is shown.
func (b *duration) expired(ctx context.Context) {
	if value, running := b.sched.Snapshot(); running || value != 0 {
		logger.DebugKV(ctx, "Expiry superseded", "value_ms", value)
		return
	}

	logger.DebugKV(ctx, "Expired")

	b.deps.metrics.Expiry()
	b.persist(ctx)
	b.showSeconds(0)
	b.alert()
}

// persist saves the scheduler's current state.
func (b *duration) persist(ctx context.Context) {
	value, running := b.sched.Snapshot()

	snap := button.ToPersisted(value, running, b.deps.now())
	if err := saveSnapshot(b.deps.store, b.policy, b.id, snap); err != nil {
		logger.WarnKV(ctx, "Failed to persist duration", "error", err)
	}
}

func (b *duration) show() {
	b.showSeconds(b.sched.Value() / msPerSecond)
}

func (b *duration) showSeconds(secs uint64) {
	b.deps.display.Render(b.id, b.policy.format(secs))
	b.deps.metrics.Render()
}

func (b *duration) alert() {
	if b.policy.alertOnExpiry {
		b.deps.display.Alert(b.id)
	}
}
