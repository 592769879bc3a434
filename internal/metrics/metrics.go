package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streamdeck_counter"

// Recorder holds the plugin counters.
type Recorder struct {
	// presses counts completed presses by action and outcome.
	presses *prometheus.CounterVec
	// longPresses counts long-press actions that fired while held.
	longPresses *prometheus.CounterVec
	// tickLoops counts started timer and stopwatch loops.
	tickLoops *prometheus.CounterVec
	// expiries counts count-downs that reached zero.
	expiries prometheus.Counter
	// renders counts key images sent.
	renders prometheus.Counter
	// dropped counts host messages dropped on a full send queue.
	dropped prometheus.Counter
}

// New registers the plugin counters with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		presses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presses_total",
			Help:      "Completed key presses by action and outcome.",
		}, []string{"action", "outcome"}),
		longPresses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "long_presses_total",
			Help:      "Long-press actions fired while the key was held.",
		}, []string{"action"}),
		tickLoops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_loops_total",
			Help:      "Tick loops started by timers and stopwatches.",
		}, []string{"action"}),
		expiries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiries_total",
			Help:      "Timers that counted down to zero.",
		}),
		renders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Key images queued for the host.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound host messages dropped because the send queue was full.",
		}),
	}
}

// Press counts a completed press.
func (r *Recorder) Press(action, outcome string) {
	if r == nil {
		return
	}

	r.presses.WithLabelValues(action, outcome).Inc()
}

// LongPress counts a fired long-press action.
func (r *Recorder) LongPress(action string) {
	if r == nil {
		return
	}

	r.longPresses.WithLabelValues(action).Inc()
}

// TickLoop counts a started tick loop.
func (r *Recorder) TickLoop(action string) {
	if r == nil {
		return
	}

	r.tickLoops.WithLabelValues(action).Inc()
}

// Expiry counts a timer reaching zero.
func (r *Recorder) Expiry() {
	if r == nil {
		return
	}

	r.expiries.Inc()
}

// Render counts a queued key image.
func (r *Recorder) Render() {
	if r == nil {
		return
	}

	r.renders.Inc()
}

// Dropped counts a dropped outbound message.
func (r *Recorder) Dropped() {
	if r == nil {
		return
	}

	r.dropped.Inc()
}
