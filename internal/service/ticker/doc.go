// Package ticker implements the cancellable periodic loop behind timer and
// stopwatch buttons.
//
// The running flag, the loop epoch and the counter value live together in one
// immutable record behind an atomic pointer. A loop only writes by swapping
// the exact record it read, so a stopped or restarted loop can never touch the
// value again: its swap fails and it exits. Stop never waits for the loop.
package ticker
