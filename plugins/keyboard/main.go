// Command keyboard is a HandTrack action plugin that presses a key
// combination when its bound gesture settles. The keys come from the
// binding config, e.g. {"key":"space"} or {"key":"right","modifiers":["ctrl"]}.
//
// macOS uses osascript; Linux uses xdotool.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Request is the subset of the executor's request this plugin reads.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeyConfig names the key to press and the modifiers to hold.
type KeyConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // cmd, alt, ctrl, shift
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, run)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, goos string, press func(name string, args ...string) error) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	if req.Action != "press" {
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	kc, err := keyConfig(req)
	if err != nil {
		return Response{Error: err.Error()}
	}

	name, args, err := pressCommand(goos, kc)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if err := press(name, args...); err != nil {
		return Response{Error: fmt.Sprintf("press %s: %v", kc.Key, err)}
	}

	data, _ := json.Marshal(map[string]string{"gesture": req.Gesture, "key": kc.Key})
	return Response{Success: true, Data: data}
}

// keyConfig reads the binding config; per-call params override it.
func keyConfig(req Request) (KeyConfig, error) {
	var kc KeyConfig
	for _, raw := range []json.RawMessage{req.Config, req.Params} {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, &kc); err != nil {
			return kc, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if kc.Key == "" {
		return kc, fmt.Errorf("key is required")
	}
	return kc, nil
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
