package button

// PluginID is the Stream Deck plugin identifier; action UUIDs extend it.
const PluginID = "icu.veelume.counter"

// Kind is the behaviour a button is configured with.
type Kind uint8

const (
	// KindUnknown marks an action UUID this plugin does not handle.
	KindUnknown Kind = iota
	// KindCounter applies arithmetic to a stored integer.
	KindCounter
	// KindComputed shows a formula over counters.
	KindComputed
	// KindTimer counts down from a configured duration.
	KindTimer
	// KindStopwatch counts elapsed time up.
	KindStopwatch
)

// Action UUIDs registered in the plugin manifest.
const (
	ActionCounter   = PluginID + ".counter"
	ActionComputed  = PluginID + ".computed"
	ActionTimer     = PluginID + ".timer"
	ActionStopwatch = PluginID + ".stopwatch"
)

// KindOf maps an action UUID to its Kind.
func KindOf(action string) Kind {
	switch action {
	case ActionCounter:
		return KindCounter
	case ActionComputed:
		return KindComputed
	case ActionTimer:
		return KindTimer
	case ActionStopwatch:
		return KindStopwatch
	default:
		return KindUnknown
	}
}

// String returns a short lowercase name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindComputed:
		return "computed"
	case KindTimer:
		return "timer"
	case KindStopwatch:
		return "stopwatch"
	default:
		return "unknown"
	}
}
