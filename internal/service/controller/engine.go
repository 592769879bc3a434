package controller

import (
	"context"
	"time"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/metrics"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/press"
	"github.com/VeeLume/streamdeck-counter/internal/service/ticker"
)

// Display shows output on a button. Implementations must not block.
type Display interface {
	// Render shows text on the button.
	Render(id, text string)
	// Alert flashes the host's warning indicator on the button.
	Alert(id string)
}

// CounterChanged announces a new value of a stored counter.
type CounterChanged struct {
	// Key is the counter's store key.
	Key string
	// Value is the value after the change.
	Value int64
}

// Publisher delivers counter changes back to the Engine's Notify,
// typically by queueing them for the dispatcher. Implementations must not block.
type Publisher interface {
	Publish(ev CounterChanged)
}

// Options configures an Engine.
type Options struct {
	// Store holds the persisted values shared by all buttons.
	Store globals.Store
	// Display receives rendered output.
	Display Display
	// Publisher receives counter changes.
	Publisher Publisher
	// Metrics records press and tick counters; nil disables it.
	Metrics *metrics.Recorder
	// LongPress is the hold threshold used when a button sets none.
	LongPress time.Duration
	// TickInterval is the timer and stopwatch loop period.
	TickInterval time.Duration
	// Now reads the wall clock for anchors; time.Now when nil.
	Now func() time.Time
}

// deps are the collaborators every controller shares.
type deps struct {
	// store holds counters and duration snapshots.
	store globals.Store
	// display receives rendered output.
	display Display
	// publisher receives counter changes.
	publisher Publisher
	// metrics is nil-safe.
	metrics *metrics.Recorder
	// longPress is the hold threshold used when a button sets none.
	longPress time.Duration
	// tickInterval is the timer and stopwatch loop period.
	tickInterval time.Duration
	// now reads the wall clock for anchors.
	now func() time.Time
}

// controller is the behaviour behind one button.
type controller interface {
	kind() button.Kind
	appear(ctx context.Context, settings button.Settings)
	pressDown(ctx context.Context, settings button.Settings)
	pressUp(ctx context.Context) press.Outcome
	settingsChanged(ctx context.Context, settings button.Settings)
	teardown(ctx context.Context) (button.Snapshot, bool)
	notify(ctx context.Context, ev CounterChanged)
}

// Engine routes host events to button controllers.
type Engine struct {
	// deps are handed to every controller.
	deps *deps
	// buttons maps host button ids to their controllers.
	buttons map[string]controller
}

// New creates an Engine, substituting defaults for unset options.
func New(opts Options) *Engine {
	d := &deps{
		store:        opts.Store,
		display:      opts.Display,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		longPress:    opts.LongPress,
		tickInterval: opts.TickInterval,
		now:          opts.Now,
	}

	if d.store == nil {
		d.store = globals.NewMemory()
	}

	if d.display == nil {
		d.display = nopDisplay{}
	}

	if d.publisher == nil {
		d.publisher = nopPublisher{}
	}

	if d.longPress <= 0 {
		d.longPress = press.DefaultDelay
	}

	if d.tickInterval <= 0 {
		d.tickInterval = ticker.DefaultPeriod
	}

	if d.now == nil {
		d.now = time.Now
	}

	return &Engine{
		deps:    d,
		buttons: make(map[string]controller),
	}
}

// Appear creates the controller for a button that became visible and shows
// its current value. A button already known under id is torn down first.
func (e *Engine) Appear(ctx context.Context, id, action string, settings button.Settings) {
	if _, ok := e.buttons[id]; ok {
		e.Teardown(ctx, id)
	}

	kind := button.KindOf(action)
	ctx = logger.WithFields(ctx, "button", id, "kind", kind.String())

	var c controller

	switch kind {
	case button.KindCounter:
		c = newCounter(e.deps, id)
	case button.KindComputed:
		c = newComputed(e.deps, id)
	case button.KindTimer:
		c = newDuration(ctx, e.deps, id, timerPolicy)
	case button.KindStopwatch:
		c = newDuration(ctx, e.deps, id, stopwatchPolicy)
	default:
		logger.DebugKV(ctx, "Ignoring unknown action", "action", action)
		return
	}

	e.buttons[id] = c
	c.appear(ctx, settings)

	logger.DebugKV(ctx, "Button appeared")
}

// PressDown starts press arbitration. settings, when not nil, replace the
// button's configuration first.
func (e *Engine) PressDown(ctx context.Context, id string, settings button.Settings) {
	c, ctx, ok := e.lookup(ctx, id)
	if !ok {
		return
	}

	c.pressDown(ctx, settings)
}

// PressUp finishes press arbitration and applies the short-press action
// unless the long-press action already ran.
func (e *Engine) PressUp(ctx context.Context, id string) press.Outcome {
	c, ctx, ok := e.lookup(ctx, id)
	if !ok {
		return press.Short
	}

	outcome := c.pressUp(ctx)
	e.deps.metrics.Press(c.kind().String(), outcome.String())

	return outcome
}

// SettingsChanged applies a new configuration to a button.
func (e *Engine) SettingsChanged(ctx context.Context, id string, settings button.Settings) {
	c, ctx, ok := e.lookup(ctx, id)
	if !ok {
		return
	}

	c.settingsChanged(ctx, settings)
}

// Teardown stops a button and forgets it. Timers and stopwatches persist
// and return their final snapshot.
func (e *Engine) Teardown(ctx context.Context, id string) (button.Snapshot, bool) {
	c, ctx, ok := e.lookup(ctx, id)
	if !ok {
		return button.Snapshot{}, false
	}

	delete(e.buttons, id)

	return c.teardown(ctx)
}

// TeardownAll tears down every button and returns how many were active.
func (e *Engine) TeardownAll(ctx context.Context) int {
	n := len(e.buttons)

	for id := range e.buttons {
		e.Teardown(ctx, id)
	}

	return n
}

// Notify delivers a counter change to every button.
func (e *Engine) Notify(ctx context.Context, ev CounterChanged) {
	for id, c := range e.buttons {
		c.notify(logger.WithKV(ctx, "button", id), ev)
	}
}

// Has reports whether a controller exists for id.
func (e *Engine) Has(id string) bool {
	_, ok := e.buttons[id]
	return ok
}

// Len returns the number of active buttons.
func (e *Engine) Len() int {
	return len(e.buttons)
}

func (e *Engine) lookup(ctx context.Context, id string) (controller, context.Context, bool) {
	c, ok := e.buttons[id]
	if !ok {
		logger.DebugKV(ctx, "Event for unknown button", "button", id)
		return nil, ctx, false
	}

	return c, logger.WithFields(ctx, "button", id, "kind", c.kind().String()), true
}

type nopDisplay struct{}

func (nopDisplay) Render(string, string) {}

func (nopDisplay) Alert(string) {}

type nopPublisher struct{}

func (nopPublisher) Publish(CounterChanged) {}
