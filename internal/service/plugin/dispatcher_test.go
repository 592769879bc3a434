package plugin

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VeeLume/streamdeck-counter/internal/api/streamdeck"
	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/controller"
)

// fakeHost stands in for the websocket client.
type fakeHost struct {
	events chan streamdeck.Event

	mu      sync.Mutex
	renders map[string][]string
	alerts  map[string]int
	saved   []globals.Document
	closed  bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		events:  make(chan streamdeck.Event, 16),
		renders: make(map[string][]string),
		alerts:  make(map[string]int),
	}
}

func (h *fakeHost) Render(id, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.renders[id] = append(h.renders[id], text)
}

func (h *fakeHost) Alert(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.alerts[id]++
}

func (h *fakeHost) Events() <-chan streamdeck.Event {
	return h.events
}

func (h *fakeHost) SetGlobalSettings(_ context.Context, settings any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.saved = append(h.saved, settings.(globals.Document))

	return nil
}

func (h *fakeHost) CloseSend() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
}

func (h *fakeHost) last(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.renders[id]
	if len(r) == 0 {
		return ""
	}

	return r[len(r)-1]
}

func (h *fakeHost) lastSaved() globals.Document {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.saved) == 0 {
		return nil
	}

	return h.saved[len(h.saved)-1]
}

func (h *fakeHost) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closed
}

func event(name, id, action, payload string) streamdeck.Event {
	ev := streamdeck.Event{Event: name, Context: id, Action: action}
	if payload != "" {
		ev.Payload = json.RawMessage(payload)
	}

	return ev
}

func globalsEvent(settings string) streamdeck.Event {
	return event(streamdeck.EventDidReceiveGlobalSettings, "plugin", "", `{"settings":`+settings+`}`)
}

// startDispatcher runs a dispatcher and its flusher until the returned stop is called.
func startDispatcher(t *testing.T, h *fakeHost) (*dispatcher, func()) {
	t.Helper()

	store := globals.NewMemory()
	changes := newChangeQueue()
	engine := controller.New(controller.Options{
		Store:     store,
		Display:   h,
		Publisher: changes,
	})

	d := newDispatcher(h, store, engine, changes)

	ctx, cancel := context.WithCancel(t.Context())

	var wg sync.WaitGroup
	wg.Go(func() { _ = d.run(ctx) })
	wg.Go(func() { _ = d.flushLoop(ctx) })

	return d, func() {
		cancel()
		wg.Wait()
	}
}

// TestDispatcher_HoldsEventsUntilGlobals checks buttons see the stored values.
func TestDispatcher_HoldsEventsUntilGlobals(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newFakeHost()
		_, stop := startDispatcher(t, h)

		h.events <- event(streamdeck.EventWillAppear, "c1", button.ActionCounter, `{"settings":{}}`)
		synctest.Wait()
		require.Empty(t, h.last("c1"))

		h.events <- globalsEvent(`{"counters":{"c1":7}}`)
		synctest.Wait()
		require.Equal(t, "7", h.last("c1"))

		// Repeated documents are echoes and do not replace live values.
		h.events <- globalsEvent(`{"counters":{"c1":1}}`)
		synctest.Wait()

		h.events <- event(streamdeck.EventKeyDown, "c1", button.ActionCounter, `{"settings":{}}`)
		h.events <- event(streamdeck.EventKeyUp, "c1", button.ActionCounter, `{"settings":{}}`)
		synctest.Wait()
		require.Equal(t, "8", h.last("c1"))

		stop()
	})
}

// TestDispatcher_GlobalsWaitIsBounded releases held events once the wait runs out.
func TestDispatcher_GlobalsWaitIsBounded(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newFakeHost()
		_, stop := startDispatcher(t, h)

		h.events <- event(streamdeck.EventWillAppear, "c1", button.ActionCounter, `{"settings":{"initialValue":3}}`)

		time.Sleep(GlobalSettingsWait - time.Millisecond)
		synctest.Wait()
		require.Empty(t, h.last("c1"))

		time.Sleep(time.Millisecond)
		synctest.Wait()
		require.Equal(t, "3", h.last("c1"))

		stop()
	})
}

// TestDispatcher_SharedCountersAndFlush delivers changes to sibling buttons and saves them.
func TestDispatcher_SharedCountersAndFlush(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newFakeHost()
		_, stop := startDispatcher(t, h)

		h.events <- globalsEvent(`{}`)
		h.events <- event(streamdeck.EventWillAppear, "a", button.ActionCounter, `{"settings":{"counterId":"shared"}}`)
		h.events <- event(streamdeck.EventWillAppear, "b", button.ActionCounter, `{"settings":{"counterId":"shared"}}`)
		h.events <- event(streamdeck.EventWillAppear, "sum", button.ActionComputed, `{"settings":{"expression":"shared * 10"}}`)
		synctest.Wait()
		require.Equal(t, "0", h.last("sum"))

		h.events <- event(streamdeck.EventKeyDown, "a", button.ActionCounter, `{"settings":{"counterId":"shared"}}`)
		h.events <- event(streamdeck.EventKeyUp, "a", button.ActionCounter, `{"settings":{"counterId":"shared"}}`)
		synctest.Wait()

		require.Equal(t, "1", h.last("a"))
		require.Equal(t, "1", h.last("b"))
		require.Equal(t, "10", h.last("sum"))
		require.JSONEq(t, `1`, string(h.lastSaved()[globals.Counters]["shared"]))

		stop()
	})
}

// TestDispatcher_ShutdownPersistsRunningTimers checks the final flush carries an anchored snapshot.
func TestDispatcher_ShutdownPersistsRunningTimers(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newFakeHost()
		_, stop := startDispatcher(t, h)

		h.events <- globalsEvent(`{}`)
		h.events <- event(streamdeck.EventKeyDown, "t", button.ActionTimer, `{"settings":{"durationSecs":10}}`)
		h.events <- event(streamdeck.EventKeyUp, "t", button.ActionTimer, `{}`)

		time.Sleep(4 * time.Second)
		synctest.Wait()
		require.Equal(t, "00:06", h.last("t"))

		close(h.events)
		synctest.Wait()

		require.True(t, h.isClosed())

		var snap map[string]uint64
		require.NoError(t, json.Unmarshal(h.lastSaved()[globals.Timers]["t"], &snap))
		require.Equal(t, uint64(6_000), snap["remaining_ms"])
		require.Contains(t, snap, "anchor_unix_ms")

		stop()
	})
}

func TestChangeQueue(t *testing.T) {
	t.Parallel()

	q := newChangeQueue()
	q.Publish(controller.CounterChanged{Key: "a", Value: 1})
	q.Publish(controller.CounterChanged{Key: "b", Value: 2})

	select {
	case <-q.Ready():
	default:
		t.Fatal("queue not signalled")
	}

	require.Equal(t, []controller.CounterChanged{{Key: "a", Value: 1}, {Key: "b", Value: 2}}, q.Take())
	require.Empty(t, q.Take())
}
