// Package metrics exposes plugin counters in Prometheus form and serves them
// over HTTP on GET /metrics.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics
