// Package globals implements the plugin-wide key/value document the host
// persists as "global settings".
//
// The document is a JSON object of buckets, each bucket an object of keys.
// Controllers read and mutate it through the Store interface; Update runs the
// read-compute-write under the store's critical section so concurrent buttons
// sharing a key never lose an update. Memory is the in-process implementation
// the plugin service mirrors to and from the host.
package globals
