// Package button contains the domain types shared by every deck button:
// counter operations with saturating arithmetic, persisted duration
// snapshots with their wall-clock anchor transform, and tolerant parsing of
// the per-button settings the Stream Deck app hands over as JSON.
//
// Nothing in here blocks or spawns goroutines; the service packages build
// the timing machinery on top of these pure values.
package button
