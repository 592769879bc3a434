// Package streamdeck speaks the Stream Deck plugin websocket protocol.
//
// Dial connects to the host on the port it passed on the command line,
// retrying until the host listens, and registers the plugin. Run then pumps
// inbound events to Events and serializes outbound messages through a single
// writer goroutine. Display output (Render, Alert) never blocks: when the
// send queue is full the message is dropped and counted.
package streamdeck
