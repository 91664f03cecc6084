// Package plugin discovers action plugins and runs them as subprocesses when a
// bound gesture becomes stable.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the plugin declares the named action.
func (m Manifest) HasAction(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Request is written to the plugin's stdin as a single JSON document.
type Request struct {
	Action     string          `json:"action"`
	Gesture    string          `json:"gesture"`
	Slot       string          `json:"slot,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
