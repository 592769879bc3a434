package button

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Settings is the raw per-button settings object delivered by the host.
// Values may be numbers or numeric strings depending on the property inspector.
type Settings map[string]any

// Defaults applied when a setting is absent or malformed.
const (
	DefaultShortValue    int64 = 1
	DefaultDurationSecs  uint64 = 60
	DefaultMissingAsZero        = true
)

// String returns the trimmed string value stored under key.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key].(string)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(v), true
}

// Int64 returns the integer stored under key, accepting numbers and numeric strings.
func (s Settings) Int64(key string) (int64, bool) {
	switch v := s[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}

		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Uint64 returns the non-negative integer stored under key.
func (s Settings) Uint64(key string) (uint64, bool) {
	switch v := s[key].(type) {
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		n, ok := s.Int64(key)
		if !ok || n < 0 {
			return 0, false
		}

		return uint64(n), true
	}
}

// Bool returns the boolean stored under key.
func (s Settings) Bool(key string) (bool, bool) {
	switch v := s[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

// Op returns the operation named under key.
func (s Settings) Op(key string) (Op, bool) {
	name, ok := s.String(key)
	if !ok {
		return OpNone, false
	}

	return ParseOp(name)
}

// LongPress returns the longPressMs threshold, or fallback when it is absent or not positive.
func (s Settings) LongPress(fallback time.Duration) time.Duration {
	ms, ok := s.Uint64("longPressMs")
	if !ok || ms == 0 || ms > math.MaxInt64/uint64(time.Millisecond) {
		return fallback
	}

	return time.Duration(ms) * time.Millisecond
}

// CounterSettings configures a counter button.
type CounterSettings struct {
	// CounterID names a shared counter; empty means the button keeps its own.
	CounterID string
	// InitialValue is the value a fresh or reset counter starts from.
	InitialValue int64
	// ShortAction and ShortValue are applied on a short press.
	ShortAction Op
	ShortValue  int64
	// LongAction and LongValue are applied once the hold threshold passes.
	LongAction Op
	LongValue  int64
	// LongPress is the hold threshold.
	LongPress time.Duration
}

// ParseCounter reads counter settings, substituting defaults for malformed values.
func ParseCounter(s Settings, longPress time.Duration) CounterSettings {
	cs := CounterSettings{
		ShortAction: OpAdd,
		ShortValue:  DefaultShortValue,
		LongAction:  OpNone,
		LongPress:   s.LongPress(longPress),
	}

	if v, ok := s.String("counterId"); ok {
		cs.CounterID = v
	}

	if v, ok := s.Int64("initialValue"); ok {
		cs.InitialValue = v
	}

	if v, ok := s.Op("shortAction"); ok {
		cs.ShortAction = v
	}

	if v, ok := s.Int64("shortValue"); ok {
		cs.ShortValue = v
	}

	if v, ok := s.Op("longAction"); ok {
		cs.LongAction = v
	}

	if v, ok := s.Int64("longValue"); ok {
		cs.LongValue = v
	}

	return cs
}

// Key returns the store key of the counter shown by the button with the given id.
func (cs CounterSettings) Key(buttonID string) string {
	return CounterKey(cs.CounterID, buttonID)
}

// CounterKey resolves the store key: the shared counter id or, when blank, the button id.
func CounterKey(counterID, buttonID string) string {
	if strings.TrimSpace(counterID) == "" {
		return buttonID
	}

	return counterID
}

// TimerSettings configures a countdown button.
type TimerSettings struct {
	// DurationMs is the countdown length; never below one second.
	DurationMs uint64
	// LongPress is the hold threshold.
	LongPress time.Duration
}

// ParseTimer reads timer settings, substituting defaults for malformed values.
func ParseTimer(s Settings, longPress time.Duration) TimerSettings {
	secs, ok := s.Uint64("durationSecs")
	if !ok {
		secs = DefaultDurationSecs
	}

	secs = max(secs, 1)

	return TimerSettings{
		DurationMs: saturatingMulU(secs, 1000),
		LongPress:  s.LongPress(longPress),
	}
}

// StopwatchSettings configures a stopwatch button.
type StopwatchSettings struct {
	// LongPress is the hold threshold.
	LongPress time.Duration
}

// ParseStopwatch reads stopwatch settings.
func ParseStopwatch(s Settings, longPress time.Duration) StopwatchSettings {
	return StopwatchSettings{LongPress: s.LongPress(longPress)}
}

// ComputedSettings configures a formula readout button.
type ComputedSettings struct {
	// Expression is the formula over counter keys; empty renders zero.
	Expression string
	// MissingAsZero substitutes 0 for unknown counters instead of 1.
	MissingAsZero bool
}

// ParseComputed reads computed readout settings.
func ParseComputed(s Settings) ComputedSettings {
	cs := ComputedSettings{MissingAsZero: DefaultMissingAsZero}

	if v, ok := s.String("expression"); ok {
		cs.Expression = v
	}

	if v, ok := s.Bool("missingAsZero"); ok {
		cs.MissingAsZero = v
	}

	return cs
}

// saturatingMulU returns a*b clamped to the uint64 range.
func saturatingMulU(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}

	return a * b
}
