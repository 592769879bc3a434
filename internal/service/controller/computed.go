package controller

import (
	"context"
	"slices"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/formula"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/render"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/press"
)

// computed shows a formula over stored counters. It has no timed work, so
// its fields are touched only by the dispatcher.
type computed struct {
	// deps are the shared collaborators.
	deps *deps
	// id is the host button id.
	id string
	// expr is the compiled expression.
	expr *formula.Expr
	// inputs lists the counters the expression reads; empty means any change recomputes.
	inputs []string
	// missingAsZero selects 0 rather than 1 for unknown counters.
	missingAsZero bool
}

func newComputed(d *deps, id string) *computed {
	c := &computed{deps: d, id: id}
	c.configure(nil)

	return c
}

func (c *computed) kind() button.Kind {
	return button.KindComputed
}

func (c *computed) appear(ctx context.Context, settings button.Settings) {
	c.configure(settings)
	c.recompute(ctx)
}

func (c *computed) pressDown(context.Context, button.Settings) {}

func (c *computed) pressUp(context.Context) press.Outcome {
	return press.Short
}

func (c *computed) settingsChanged(ctx context.Context, settings button.Settings) {
	c.configure(settings)
	c.recompute(ctx)
}

func (c *computed) teardown(context.Context) (button.Snapshot, bool) {
	return button.Snapshot{}, false
}

func (c *computed) notify(ctx context.Context, ev CounterChanged) {
	if len(c.inputs) > 0 && !slices.Contains(c.inputs, ev.Key) {
		return
	}

	c.recompute(ctx)
}

func (c *computed) configure(settings button.Settings) {
	cs := button.ParseComputed(settings)

	c.expr = formula.Compile(cs.Expression)
	c.inputs = c.expr.Identifiers()
	c.missingAsZero = cs.MissingAsZero
}

func (c *computed) recompute(ctx context.Context) {
	v := c.expr.Eval(c.resolve, c.missingAsZero)

	logger.DebugKV(ctx, "Computed value", "value", v)

	c.deps.display.Render(c.id, render.Number(v))
	c.deps.metrics.Render()
}

func (c *computed) resolve(name string) (int64, bool) {
	v, err := globals.GetInt64(c.deps.store, globals.Counters, name)
	if err != nil {
		return 0, false
	}

	return v, true
}
