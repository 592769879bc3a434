// Package config defines plugin-wide settings and provides helpers to load,
// validate and save them in YAML format.
//
// Per-button settings come from the Stream Deck app as JSON and are handled
// by the button domain package; this file only tunes the process itself.
package config
