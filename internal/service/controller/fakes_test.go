package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/metrics"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
)

// fakeDisplay records every render and alert per button.
type fakeDisplay struct {
	mu      sync.Mutex
	renders map[string][]string
	alerts  map[string]int
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{
		renders: make(map[string][]string),
		alerts:  make(map[string]int),
	}
}

func (d *fakeDisplay) Render(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.renders[id] = append(d.renders[id], text)
}

func (d *fakeDisplay) Alert(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alerts[id]++
}

func (d *fakeDisplay) last(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.renders[id]
	if len(r) == 0 {
		return ""
	}

	return r[len(r)-1]
}

func (d *fakeDisplay) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.renders[id])
}

func (d *fakeDisplay) alertCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.alerts[id]
}

// fakeBus records published changes; deliver hands them to the engine the
// way the plugin dispatcher does.
type fakeBus struct {
	mu     sync.Mutex
	events []CounterChanged
}

func (b *fakeBus) Publish(ev CounterChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
}

func (b *fakeBus) drain() []CounterChanged {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.events
	b.events = nil

	return out
}

func (b *fakeBus) deliver(t *testing.T, e *Engine) []CounterChanged {
	t.Helper()

	events := b.drain()
	for _, ev := range events {
		e.Notify(t.Context(), ev)
	}

	return events
}

type harness struct {
	engine  *Engine
	store   *globals.Memory
	display *fakeDisplay
	bus     *fakeBus
}

func newHarness(store *globals.Memory) *harness {
	if store == nil {
		store = globals.NewMemory()
	}

	h := &harness{
		store:   store,
		display: newFakeDisplay(),
		bus:     new(fakeBus),
	}

	h.engine = New(Options{
		Store:        h.store,
		Display:      h.display,
		Publisher:    h.bus,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		LongPress:    500 * time.Millisecond,
		TickInterval: 100 * time.Millisecond,
	})

	return h
}

// tap presses and releases a button without holding it.
func (h *harness) tap(t *testing.T, id string) {
	t.Helper()

	h.engine.PressDown(t.Context(), id, nil)
	h.engine.PressUp(t.Context(), id)
}

func (h *harness) counterValue(t *testing.T, key string) int64 {
	t.Helper()

	v, err := globals.GetInt64(h.store, globals.Counters, key)
	if err != nil {
		t.Fatalf("read counter %q: %v", key, err)
	}

	return v
}

func (h *harness) duration(t *testing.T, id string) *duration {
	t.Helper()

	c, ok := h.engine.buttons[id].(*duration)
	if !ok {
		t.Fatalf("button %q is not a timer or stopwatch", id)
	}

	return c
}

func settings(kv ...any) button.Settings {
	s := make(button.Settings, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		s[kv[i].(string)] = kv[i+1]
	}

	return s
}
