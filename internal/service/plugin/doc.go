// Package plugin runs the Stream Deck plugin process.
//
// Run loads the configuration, connects to the host and drives the button
// engine from a single dispatcher goroutine. Counter changes published by
// buttons are queued back to the dispatcher, and changes to the global store
// are mirrored to the host's global settings by a flusher goroutine. Optional
// metrics and health endpoints run alongside in the same errgroup.
package plugin
