package streamdeck

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
)

// Inbound event names.
const (
	EventKeyDown                  = "keyDown"
	EventKeyUp                    = "keyUp"
	EventWillAppear               = "willAppear"
	EventWillDisappear            = "willDisappear"
	EventDidReceiveSettings       = "didReceiveSettings"
	EventDidReceiveGlobalSettings = "didReceiveGlobalSettings"
)

// Outbound event names.
const (
	eventSetImage          = "setImage"
	eventSetTitle          = "setTitle"
	eventShowAlert         = "showAlert"
	eventGetSettings       = "getSettings"
	eventGetGlobalSettings = "getGlobalSettings"
	eventSetGlobalSettings = "setGlobalSettings"
)

// Event is a message received from the host.
type Event struct {
	// Event is the event name.
	Event string `json:"event"`
	// Action is the action UUID of the button, if any.
	Action string `json:"action,omitempty"`
	// Context is the opaque button id, or the plugin UUID for plugin-wide events.
	Context string `json:"context,omitempty"`
	// Device is the device id the event came from.
	Device string `json:"device,omitempty"`
	// Payload is the event-specific body.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// settingsPayload is the part of button and global payloads carrying settings.
type settingsPayload struct {
	Settings json.RawMessage `json:"settings"`
}

// Settings decodes the per-button settings of a button event.
// Numbers are kept as json.Number so integers survive unchanged.
func (e Event) Settings() (button.Settings, error) {
	raw, err := e.rawSettings()
	if err != nil {
		return nil, err
	}

	settings := make(button.Settings)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return settings, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err = dec.Decode(&settings); err != nil {
		return nil, fmt.Errorf("decode %s settings: %w", e.Event, err)
	}

	return settings, nil
}

// GlobalSettings returns the raw plugin-wide settings document.
func (e Event) GlobalSettings() (json.RawMessage, error) {
	return e.rawSettings()
}

func (e Event) rawSettings() (json.RawMessage, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}

	var p settingsPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Event, err)
	}

	return p.Settings, nil
}

// registration is the first message sent after connecting.
type registration struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
}

// message is an outbound command.
type message struct {
	Event   string `json:"event"`
	Context string `json:"context"`
	Payload any    `json:"payload,omitempty"`
}

// imagePayload is the body of setImage.
type imagePayload struct {
	Image  string `json:"image"`
	Target int    `json:"target"`
}

// titlePayload is the body of setTitle.
type titlePayload struct {
	Title  string `json:"title"`
	Target int    `json:"target"`
}

// Info is the host description passed with the -info argument.
type Info struct {
	Application struct {
		Language string `json:"language"`
		Platform string `json:"platform"`
		Version  string `json:"version"`
	} `json:"application"`
	Plugin struct {
		UUID    string `json:"uuid"`
		Version string `json:"version"`
	} `json:"plugin"`
	Devices []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type int    `json:"type"`
	} `json:"devices"`
}

// ParseInfo decodes the -info argument. An empty argument yields a zero Info.
func ParseInfo(raw string) (Info, error) {
	var info Info
	if raw == "" {
		return info, nil
	}

	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return Info{}, fmt.Errorf("decode info: %w", err)
	}

	return info, nil
}
