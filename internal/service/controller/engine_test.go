package controller

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/service/press"
)

func TestEngine_IgnoresUnknown(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.engine.Appear(t.Context(), "x", "com.example.other", nil)

	require.Zero(t, h.engine.Len())
	require.Equal(t, press.Short, h.engine.PressUp(t.Context(), "missing"))

	h.engine.PressDown(t.Context(), "missing", nil)
	h.engine.SettingsChanged(t.Context(), "missing", nil)

	_, ok := h.engine.Teardown(t.Context(), "missing")
	require.False(t, ok)
}

func TestEngine_DefaultsWithoutCollaborators(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	e.Appear(t.Context(), "k", button.ActionCounter, nil)
	e.PressDown(t.Context(), "k", nil)
	require.Equal(t, press.Short, e.PressUp(t.Context(), "k"))
	require.Equal(t, 1, e.TeardownAll(t.Context()))
	require.Zero(t, e.Len())
}

// TestEngine_ReappearReplacesController tears the old timer down before the new one starts.
func TestEngine_ReappearReplacesController(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(nil)
		h.engine.Appear(t.Context(), "t", button.ActionTimer, settings("durationSecs", 10))
		h.tap(t, "t")

		old := h.duration(t, "t")

		time.Sleep(2 * time.Second)
		synctest.Wait()

		h.engine.Appear(t.Context(), "t", button.ActionTimer, settings("durationSecs", 10))
		require.Equal(t, 1, h.engine.Len())
		require.False(t, old.sched.Running())

		fresh := h.duration(t, "t")
		require.NotSame(t, old, fresh)
		require.True(t, fresh.sched.Running())
		require.Equal(t, uint64(8_000), fresh.sched.Value())

		require.Equal(t, 1, h.engine.TeardownAll(t.Context()))
		require.False(t, fresh.sched.Running())
	})
}

// TestEngine_TeardownCancelsPendingLongPress checks a held key does not fire after teardown.
func TestEngine_TeardownCancelsPendingLongPress(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(nil)
		h.engine.Appear(t.Context(), "k", button.ActionCounter, settings("longAction", "set", "longValue", 99))

		h.engine.PressDown(t.Context(), "k", nil)

		_, ok := h.engine.Teardown(t.Context(), "k")
		require.False(t, ok)

		time.Sleep(time.Second)
		synctest.Wait()

		require.Equal(t, int64(0), h.counterValue(t, "k"))
		require.Empty(t, h.bus.drain())
	})
}
