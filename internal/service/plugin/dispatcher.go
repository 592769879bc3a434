package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/VeeLume/streamdeck-counter/internal/api/streamdeck"
	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/controller"
)

const (
	// GlobalSettingsWait bounds how long button events are held back waiting
	// for the host to deliver the stored global settings.
	GlobalSettingsWait = 2 * time.Second

	// finalFlushTimeout bounds the last global settings write on shutdown.
	finalFlushTimeout = 2 * time.Second
)

// host is the part of the host connection the dispatcher uses.
type host interface {
	controller.Display
	Events() <-chan streamdeck.Event
	SetGlobalSettings(ctx context.Context, settings any) error
	CloseSend()
}

// dispatcher owns the engine and is the only goroutine calling into it.
type dispatcher struct {
	// host delivers events and receives output.
	host host
	// store is the in-process copy of the global settings.
	store *globals.Memory
	// engine holds the button controllers.
	engine *controller.Engine
	// changes carries counter changes back from the buttons.
	changes *changeQueue
	// dirty holds a token while the store has unflushed changes.
	dirty chan struct{}
	// flushMu keeps snapshots queued in the order they were taken.
	flushMu sync.Mutex
	// globalsWait bounds the wait for the first global settings.
	globalsWait time.Duration
	// loaded is set once global settings were received or the wait ran out.
	loaded bool
	// held are button events received before loaded.
	held []streamdeck.Event
	// onConnected and onDisconnected report connection state.
	onConnected    func()
	onDisconnected func()
}

func newDispatcher(h host, store *globals.Memory, engine *controller.Engine, changes *changeQueue) *dispatcher {
	d := &dispatcher{
		host:           h,
		store:          store,
		engine:         engine,
		changes:        changes,
		dirty:          make(chan struct{}, 1),
		globalsWait:    GlobalSettingsWait,
		onConnected:    func() {},
		onDisconnected: func() {},
	}

	store.OnChange(func() { signal(d.dirty) })

	return d
}

// run dispatches host events until ctx is done or the host goes away, then
// tears every button down, flushes the store and stops sending.
func (d *dispatcher) run(ctx context.Context) error {
	defer d.shutdown(ctx)

	d.onConnected()

	wait := time.NewTimer(d.globalsWait)
	defer wait.Stop()

	events := d.host.Events()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				logger.Info(ctx, "Host connection closed")
				return nil
			}

			d.receive(ctx, ev)
		case <-d.changes.Ready():
			for _, ev := range d.changes.Take() {
				d.engine.Notify(ctx, ev)
			}
		case <-wait.C:
			if !d.loaded {
				logger.WarnKV(ctx, "Global settings did not arrive, starting empty", "waited", d.globalsWait)
				d.release(ctx)
			}
		}
	}
}

// flushLoop mirrors store changes to the host until ctx is done.
func (d *dispatcher) flushLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.dirty:
			if err := d.flush(ctx); err != nil {
				logger.WarnKV(ctx, "Failed to save global settings", "error", err)
			}
		}
	}
}

func (d *dispatcher) flush(ctx context.Context) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	return d.host.SetGlobalSettings(ctx, d.store.Snapshot())
}

func (d *dispatcher) receive(ctx context.Context, ev streamdeck.Event) {
	if ev.Event == streamdeck.EventDidReceiveGlobalSettings {
		d.loadGlobals(ctx, ev)
		return
	}

	if !d.loaded {
		d.held = append(d.held, ev)
		return
	}

	d.handle(ctx, ev)
}

// loadGlobals installs the first global settings document and releases held events.
// Later documents are echoes of our own writes and are ignored.
func (d *dispatcher) loadGlobals(ctx context.Context, ev streamdeck.Event) {
	if d.loaded {
		logger.DebugKV(ctx, "Ignoring repeated global settings")
		return
	}

	raw, err := ev.GlobalSettings()
	if err == nil {
		err = d.store.Replace(raw)
	}

	if err != nil {
		logger.WarnKV(ctx, "Malformed global settings, starting empty", "error", err)
	} else {
		logger.DebugKV(ctx, "Global settings loaded", "timers", len(d.store.Keys(globals.Timers)))
	}

	d.release(ctx)
}

func (d *dispatcher) release(ctx context.Context) {
	d.loaded = true

	held := d.held
	d.held = nil

	for _, ev := range held {
		d.handle(ctx, ev)
	}
}

func (d *dispatcher) handle(ctx context.Context, ev streamdeck.Event) {
	ctx = logger.WithKV(ctx, "event", ev.Event)

	switch ev.Event {
	case streamdeck.EventWillAppear:
		d.engine.Appear(ctx, ev.Context, ev.Action, d.settings(ctx, ev))
	case streamdeck.EventWillDisappear:
		d.engine.Teardown(ctx, ev.Context)
	case streamdeck.EventKeyDown:
		settings := d.settings(ctx, ev)
		if d.ensure(ctx, ev, settings) {
			d.engine.PressDown(ctx, ev.Context, settings)
		}
	case streamdeck.EventKeyUp:
		d.engine.PressUp(ctx, ev.Context)
	case streamdeck.EventDidReceiveSettings:
		settings := d.settings(ctx, ev)
		if d.ensure(ctx, ev, settings) {
			d.engine.SettingsChanged(ctx, ev.Context, settings)
		}
	default:
		logger.DebugKV(ctx, "Ignoring host event", "context", ev.Context)
	}
}

// ensure creates the controller of a button the host never announced.
// It reports whether the event still needs handling.
func (d *dispatcher) ensure(ctx context.Context, ev streamdeck.Event, settings button.Settings) bool {
	if d.engine.Has(ev.Context) {
		return true
	}

	d.engine.Appear(ctx, ev.Context, ev.Action, settings)

	return ev.Event == streamdeck.EventKeyDown && d.engine.Has(ev.Context)
}

func (d *dispatcher) settings(ctx context.Context, ev streamdeck.Event) button.Settings {
	settings, err := ev.Settings()
	if err != nil {
		logger.WarnKV(ctx, "Malformed button settings, using defaults", "error", err)
		return button.Settings{}
	}

	return settings
}

func (d *dispatcher) shutdown(ctx context.Context) {
	n := d.engine.TeardownAll(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()

	if err := d.flush(flushCtx); err != nil {
		logger.WarnKV(ctx, "Failed to save global settings on shutdown", "error", err)
	}

	d.host.CloseSend()
	d.onDisconnected()

	logger.InfoKV(ctx, "Plugin stopped", "buttons", n)
}
