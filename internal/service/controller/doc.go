// Package controller implements the per-button behaviour of counter,
// computed, timer and stopwatch keys.
//
// The Engine maps host button ids to controllers. Its methods are called from
// a single dispatcher goroutine and never block: display output and change
// notifications go through non-blocking collaborators, and timed work runs on
// the press arbiter's deadline callbacks and the tick scheduler's loops.
// State those goroutines share with the dispatcher lives in atomics, and
// shared persisted values are mutated only inside globals.Store.Update.
package controller
