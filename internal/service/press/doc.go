// Package press tells short presses from long presses without blocking the
// event path.
//
// Each press owns an epoch. The press state is one atomic word holding the
// epoch and a phase (idle, armed, fired), so the release and the hold
// deadline race on a single compare-and-swap and exactly one of them wins.
package press
