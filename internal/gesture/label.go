// Package gesture turns hand landmarks into named gestures: finger extension
// heuristics, an ordered rule table, and majority-vote smoothing over time.
package gesture

import (
	"fmt"
	"strings"
)

// Label is a recognized gesture. The zero value is Unknown.
type Label uint8

const (
	Unknown Label = iota
	Rock
	Paper
	Peace
	Pointing
	ThumbsUp
	MiddleFinger
	OK
	Three

	numLabels
)

var labelNames = [numLabels]string{
	Unknown:      "UNKNOWN",
	Rock:         "ROCK",
	Paper:        "PAPER",
	Peace:        "PEACE",
	Pointing:     "POINTING",
	ThumbsUp:     "THUMBS_UP",
	MiddleFinger: "MIDDLE_FINGER",
	OK:           "OK",
	Three:        "THREE",
}

// voteOrder breaks ties between equally frequent labels; earlier wins.
var voteOrder = [numLabels]Label{Rock, Paper, Peace, Pointing, ThumbsUp, MiddleFinger, OK, Three, Unknown}

// String returns the upper-case wire name of the label.
func (l Label) String() string {
	if l >= numLabels {
		return fmt.Sprintf("Label(%d)", uint8(l))
	}
	return labelNames[l]
}

// Valid reports whether l is one of the defined labels.
func (l Label) Valid() bool {
	return l < numLabels
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabel accepts a wire name, case-insensitively. "SCISSORS" is an alias for Peace.
func ParseLabel(s string) (Label, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "SCISSORS" {
		return Peace, nil
	}
	for i, n := range labelNames {
		if n == name {
			return Label(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown gesture label %q", s)
}

// Labels returns every defined label in vote order.
func Labels() []Label {
	out := make([]Label, len(voteOrder))
	copy(out, voteOrder[:])
	return out
}

// GestureSet selects which labels the classifier may produce.
type GestureSet uint8

const (
	SetEight GestureSet = iota
	SetFour
	SetThree
)

// ParseGestureSet accepts "THREE", "FOUR", "EIGHT" or the digits 3, 4, 8.
func ParseGestureSet(s string) (GestureSet, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EIGHT", "8", "":
		return SetEight, nil
	case "FOUR", "4":
		return SetFour, nil
	case "THREE", "3":
		return SetThree, nil
	}
	return SetEight, fmt.Errorf("unknown gesture set %q", s)
}

func (s GestureSet) String() string {
	switch s {
	case SetThree:
		return "THREE"
	case SetFour:
		return "FOUR"
	case SetEight:
		return "EIGHT"
	}
	return fmt.Sprintf("GestureSet(%d)", uint8(s))
}

// Contains reports whether the set may produce l. Unknown is always allowed.
func (s GestureSet) Contains(l Label) bool {
	switch l {
	case Unknown, Rock, Paper, Peace:
		return true
	case Pointing:
		return s == SetFour || s == SetEight
	}
	return s == SetEight && l.Valid()
}

// Display returns the label name as shown to users of this set. The
// three-label set is rock-paper-scissors, so Peace reads SCISSORS there.
func (s GestureSet) Display(l Label) string {
	if s == SetThree && l == Peace {
		return "SCISSORS"
	}
	return l.String()
}
