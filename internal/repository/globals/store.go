package globals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Buckets used by the button controllers.
const (
	// Counters holds int64 counter values keyed by counter key.
	Counters = "counters"
	// Timers holds count-down snapshots keyed by button context id.
	Timers = "timers"
	// Stopwatches holds count-up snapshots keyed by button context id.
	Stopwatches = "stopwatches"
)

// ErrNotFound is returned by typed getters when the key is absent.
var ErrNotFound = errors.New("key not found")

// UpdateFunc computes the next value of a key from its current one.
// Returning write=false leaves the key untouched.
type UpdateFunc func(current json.RawMessage, found bool) (next json.RawMessage, write bool)

// Store is the persisted key/value document shared by all buttons.
type Store interface {
	// Get returns the raw value stored under bucket/key.
	Get(bucket, key string) (json.RawMessage, bool)
	// Set stores value under bucket/key.
	Set(bucket, key string, value json.RawMessage)
	// Delete removes bucket/key.
	Delete(bucket, key string)
	// Update runs fn atomically against bucket/key and returns the resulting value.
	Update(bucket, key string, fn UpdateFunc) (json.RawMessage, bool)
}

// GetJSON decodes the value under bucket/key into out.
func GetJSON(s Store, bucket, key string, out any) error {
	raw, ok := s.Get(bucket, key)
	if !ok {
		return ErrNotFound
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}

	return nil
}

// SetJSON encodes value and stores it under bucket/key.
func SetJSON(s Store, bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}

	s.Set(bucket, key, raw)

	return nil
}

// GetInt64 reads an integer value, returning ErrNotFound when absent.
func GetInt64(s Store, bucket, key string) (int64, error) {
	var v int64
	if err := GetJSON(s, bucket, key, &v); err != nil {
		return 0, err
	}

	return v, nil
}

// UpdateInt64 applies fn to the integer under bucket/key, seeding a missing
// or malformed value with initial. The result is written only when changed
// reports true, and the value in effect afterwards is returned along with
// the value fn saw.
func UpdateInt64(s Store, bucket, key string, initial int64,
	fn func(current int64) (next int64, changed bool),
) (before, after int64) {
	before, after = initial, initial

	s.Update(bucket, key, func(raw json.RawMessage, found bool) (json.RawMessage, bool) {
		current := initial
		if found {
			var v int64
			if err := json.Unmarshal(raw, &v); err == nil {
				current = v
			}
		}

		before = current

		next, changed := fn(current)
		if !changed {
			after = current
			return nil, false
		}

		after = next

		return encodeInt64(next), true
	})

	return before, after
}

// LoadOrInitInt64 returns the integer under bucket/key, storing initial first
// when the key is absent or malformed.
func LoadOrInitInt64(s Store, bucket, key string, initial int64) int64 {
	out := initial

	s.Update(bucket, key, func(raw json.RawMessage, found bool) (json.RawMessage, bool) {
		if found {
			var v int64
			if err := json.Unmarshal(raw, &v); err == nil {
				out = v
				return nil, false
			}
		}

		return encodeInt64(initial), true
	})

	return out
}

func encodeInt64(v int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(v, 10))
}
