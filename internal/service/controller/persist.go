package controller

import (
	"encoding/json"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
)

// anchorField holds the wall-clock anchor of a running snapshot.
const anchorField = "anchor_unix_ms"

// loadSnapshot reads the snapshot stored for id. Entries without the value
// field are treated as absent.
func loadSnapshot(store globals.Store, p *policy, id string) (button.Snapshot, bool) {
	var fields map[string]json.RawMessage
	if err := globals.GetJSON(store, p.bucket, id, &fields); err != nil {
		return button.Snapshot{}, false
	}

	var snap button.Snapshot
	if err := json.Unmarshal(fields[p.valueField], &snap.ValueMs); err != nil {
		return button.Snapshot{}, false
	}

	if raw, ok := fields[anchorField]; ok {
		if err := json.Unmarshal(raw, &snap.AnchorUnixMs); err == nil {
			snap.Anchored = true
		}
	}

	return snap, true
}

// saveSnapshot stores snap for id, writing the anchor only while running.
func saveSnapshot(store globals.Store, p *policy, id string, snap button.Snapshot) error {
	fields := map[string]uint64{p.valueField: snap.ValueMs}
	if snap.Anchored {
		fields[anchorField] = snap.AnchorUnixMs
	}

	return globals.SetJSON(store, p.bucket, id, fields)
}
