package controller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
)

func TestComputed_RecomputesOnRelevantChanges(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.store.Set(globals.Counters, "kills", json.RawMessage(`10`))
	h.store.Set(globals.Counters, "deaths", json.RawMessage(`4`))

	h.engine.Appear(t.Context(), "ratio", button.ActionComputed, settings("expression", "kills / deaths"))
	require.Equal(t, "2", h.display.last("ratio"))

	h.engine.Appear(t.Context(), "k", button.ActionCounter, settings("counterId", "kills", "shortValue", 2))
	h.engine.Appear(t.Context(), "other", button.ActionCounter, settings("counterId", "assists"))

	renders := h.display.count("ratio")

	h.tap(t, "other")
	h.bus.deliver(t, h.engine)
	require.Equal(t, renders, h.display.count("ratio"))

	h.tap(t, "k")
	h.bus.deliver(t, h.engine)
	require.Equal(t, renders+1, h.display.count("ratio"))
	require.Equal(t, "3", h.display.last("ratio"))

	h.engine.TeardownAll(t.Context())
}

// TestComputed_NoIdentifiersRecomputesAlways checks a constant expression still refreshes.
func TestComputed_NoIdentifiersRecomputesAlways(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.engine.Appear(t.Context(), "x", button.ActionComputed, settings("expression", "6 * 7"))
	require.Equal(t, "42", h.display.last("x"))

	h.engine.Notify(t.Context(), CounterChanged{Key: "anything", Value: 1})
	require.Equal(t, 2, h.display.count("x"))
}

func TestComputed_MissingAsZeroSetting(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.engine.Appear(t.Context(), "x", button.ActionComputed, settings("expression", "5 * missing"))
	require.Equal(t, "0", h.display.last("x"))

	h.engine.SettingsChanged(t.Context(), "x", settings("expression", "5 * missing", "missingAsZero", false))
	require.Equal(t, "5", h.display.last("x"))

	h.engine.SettingsChanged(t.Context(), "x", settings("expression", "  "))
	require.Equal(t, "0", h.display.last("x"))
}

func TestComputed_PressesDoNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.engine.Appear(t.Context(), "x", button.ActionComputed, settings("expression", "1"))

	h.tap(t, "x")

	require.Equal(t, 1, h.display.count("x"))
	require.Empty(t, h.bus.drain())

	_, ok := h.engine.Teardown(t.Context(), "x")
	require.False(t, ok)
}
