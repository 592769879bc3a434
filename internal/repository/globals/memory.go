package globals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// Document is the whole global settings object: bucket -> key -> value.
type Document map[string]map[string]json.RawMessage

// Memory is an in-process Store guarded by a mutex.
type Memory struct {
	// mu is the critical section every read and write goes through.
	mu sync.Mutex
	// data holds the buckets.
	data Document
	// onChange is called after each mutation while mu is held.
	onChange func()
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(Document),
		onChange: func() {},
	}
}

// OnChange registers fn to run after every local mutation.
// It runs inside the critical section and must neither block nor call back into the store.
func (m *Memory) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fn == nil {
		fn = func() {}
	}

	m.onChange = fn
}

// Get implements Store.
func (m *Memory) Get(bucket, key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[bucket][key]
	if !ok {
		return nil, false
	}

	return bytes.Clone(v), true
}

// Set implements Store.
func (m *Memory) Set(bucket, key string, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(bucket, key, value)
	m.onChange()
}

// Delete implements Store.
func (m *Memory) Delete(bucket, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[bucket]
	if !ok {
		return
	}

	if _, ok = b[key]; !ok {
		return
	}

	delete(b, key)
	m.onChange()
}

// Update implements Store.
func (m *Memory) Update(bucket, key string, fn UpdateFunc) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, found := m.data[bucket][key]

	next, write := fn(bytes.Clone(current), found)
	if !write {
		return bytes.Clone(current), found
	}

	m.put(bucket, key, next)
	m.onChange()

	return bytes.Clone(next), true
}

// Replace swaps the whole document for the one received from the host.
// Top-level members that are not objects are dropped. The change hook is not
// called because the host already holds this state.
func (m *Memory) Replace(payload json.RawMessage) error {
	doc := make(Document)

	if len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(payload, &raw); err != nil {
			return fmt.Errorf("decode global settings: %w", err)
		}

		for name, value := range raw {
			var bucket map[string]json.RawMessage
			if err := json.Unmarshal(value, &bucket); err != nil || bucket == nil {
				continue
			}

			doc[name] = bucket
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = doc

	return nil
}

// Snapshot returns a deep copy of the document.
func (m *Memory) Snapshot() Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(Document, len(m.data))
	for name, bucket := range m.data {
		copied := make(map[string]json.RawMessage, len(bucket))
		for k, v := range bucket {
			copied[k] = bytes.Clone(v)
		}

		out[name] = copied
	}

	return out
}

// Keys returns the keys currently stored in bucket.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data[bucket]))
	for k := range maps.Keys(m.data[bucket]) {
		keys = append(keys, k)
	}

	return keys
}

// MarshalJSON encodes the document in host form.
func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// put stores value; mu must be held.
func (m *Memory) put(bucket, key string, value json.RawMessage) {
	b, ok := m.data[bucket]
	if !ok {
		b = make(map[string]json.RawMessage)
		m.data[bucket] = b
	}

	b[key] = bytes.Clone(value)
}
