package controller

import (
	"context"
	"sync/atomic"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/render"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/press"
)

// counter applies arithmetic to a stored integer, possibly shared with other buttons.
type counter struct {
	// deps are the shared collaborators.
	deps *deps
	// id is the host button id.
	id string
	// settings is read by the long-press callback as well as the dispatcher.
	settings atomic.Pointer[button.CounterSettings]
	// arbiter decides between the short and long action.
	arbiter *press.Arbiter
}

func newCounter(d *deps, id string) *counter {
	c := &counter{
		deps:    d,
		id:      id,
		arbiter: press.New(d.longPress),
	}

	c.configure(nil)

	return c
}

func (c *counter) kind() button.Kind {
	return button.KindCounter
}

func (c *counter) appear(_ context.Context, settings button.Settings) {
	c.configure(settings)
	c.show()
}

func (c *counter) pressDown(ctx context.Context, settings button.Settings) {
	if settings != nil {
		c.configure(settings)
	}

	// Another button sharing the counter may have changed it.
	c.show()

	c.arbiter.Begin(func() {
		cs := c.settings.Load()
		c.deps.metrics.LongPress(button.KindCounter.String())
		logger.DebugKV(ctx, "Long press fired", "op", cs.LongAction.String())
		c.apply(ctx, cs.LongAction, cs.LongValue)
	})
}

func (c *counter) pressUp(ctx context.Context) press.Outcome {
	outcome := c.arbiter.End()
	if outcome == press.Short {
		cs := c.settings.Load()
		c.apply(ctx, cs.ShortAction, cs.ShortValue)
	}

	return outcome
}

func (c *counter) settingsChanged(_ context.Context, settings button.Settings) {
	c.configure(settings)
	c.show()
}

func (c *counter) teardown(context.Context) (button.Snapshot, bool) {
	c.arbiter.Cancel()
	return button.Snapshot{}, false
}

func (c *counter) notify(_ context.Context, ev CounterChanged) {
	if ev.Key != c.settings.Load().Key(c.id) {
		return
	}

	// Re-read rather than trusting ev: a newer change may already be stored.
	c.show()
}

// configure parses settings and installs them.
func (c *counter) configure(settings button.Settings) {
	cs := button.ParseCounter(settings, c.deps.longPress)
	c.settings.Store(&cs)
	c.arbiter.SetDelay(cs.LongPress)
}

// show renders the stored value, seeding it with the initial value when absent.
func (c *counter) show() {
	cs := c.settings.Load()
	v := globals.LoadOrInitInt64(c.deps.store, globals.Counters, cs.Key(c.id), cs.InitialValue)

	c.render(v)
}

// apply runs op against the stored counter. Nothing is written, rendered or
// published when the value does not change, except for Reset which always counts.
func (c *counter) apply(ctx context.Context, op button.Op, operand int64) {
	var (
		cs      = c.settings.Load()
		key     = cs.Key(c.id)
		changed bool
	)

	before, after := globals.UpdateInt64(c.deps.store, globals.Counters, key, cs.InitialValue,
		func(current int64) (int64, bool) {
			next := op.Apply(current, operand, cs.InitialValue)
			changed = op.Changes(current, next)

			return next, changed
		})

	if !changed {
		logger.DebugKV(ctx, "Counter unchanged", "op", op.String(), "value", before)
		return
	}

	logger.DebugKV(ctx, "Counter changed", "key", key, "op", op.String(), "from", before, "to", after)

	c.render(after)
	c.deps.publisher.Publish(CounterChanged{Key: key, Value: after})
}

func (c *counter) render(v int64) {
	c.deps.display.Render(c.id, render.Number(v))
	c.deps.metrics.Render()
}
