package main

import (
	"fmt"
	"strings"
)

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"super":   "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

// appleKeyCodes covers keys that AppleScript cannot type as characters.
var appleKeyCodes = map[string]int{
	"return": 36,
	"enter":  36,
	"tab":    48,
	"space":  49,
	"escape": 53,
	"left":   123,
	"right":  124,
	"down":   125,
	"up":     126,
}

// xdoKeys maps portable key names to X keysyms.
var xdoKeys = map[string]string{
	"return": "Return",
	"enter":  "Return",
	"tab":    "Tab",
	"space":  "space",
	"escape": "Escape",
	"left":   "Left",
	"right":  "Right",
	"down":   "Down",
	"up":     "Up",
}

// pressCommand returns the command that presses kc on goos.
func pressCommand(goos string, kc KeyConfig) (string, []string, error) {
	key := strings.ToLower(kc.Key)

	switch goos {
	case "darwin":
		var mods []string
		for _, m := range kc.Modifiers {
			if am, ok := appleModifiers[strings.ToLower(m)]; ok {
				mods = append(mods, am)
			}
		}
		stroke := fmt.Sprintf("keystroke %q", kc.Key)
		if code, ok := appleKeyCodes[key]; ok {
			stroke = fmt.Sprintf("key code %d", code)
		}
		if len(mods) > 0 {
			stroke += " using {" + strings.Join(mods, ", ") + "}"
		}
		return "osascript", []string{"-e", `tell application "System Events" to ` + stroke}, nil

	case "linux":
		combo := []string{}
		for _, m := range kc.Modifiers {
			if xm, ok := xdoModifiers[strings.ToLower(m)]; ok {
				combo = append(combo, xm)
			}
		}
		sym := kc.Key
		if ks, ok := xdoKeys[key]; ok {
			sym = ks
		}
		combo = append(combo, sym)
		return "xdotool", []string{"key", strings.Join(combo, "+")}, nil
	}

	return "", nil, fmt.Errorf("keyboard plugin does not support %s", goos)
}
