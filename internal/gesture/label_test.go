package gesture

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/SEARO1/Hand-Track/internal/detector"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{in: "ROCK", want: Rock},
		{in: "thumbs_up", want: ThumbsUp},
		{in: " Scissors ", want: Peace},
		{in: "middle_finger", want: MiddleFinger},
		{in: "UNKNOWN", want: Unknown},
		{in: "wave", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLabel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLabel_JSON(t *testing.T) {
	r := Result{Label: ThumbsUp, Confidence: 0.9}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Label != "THUMBS_UP" {
		t.Errorf("label encoded as %q", decoded.Label)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Label != ThumbsUp {
		t.Errorf("decoded label %s", back.Label)
	}
}

func TestGestureSet(t *testing.T) {
	tests := []struct {
		set     GestureSet
		allowed []Label
	}{
		{set: SetThree, allowed: []Label{Unknown, Rock, Paper, Peace}},
		{set: SetFour, allowed: []Label{Unknown, Rock, Paper, Peace, Pointing}},
		{set: SetEight, allowed: Labels()},
	}

	for _, tt := range tests {
		t.Run(tt.set.String(), func(t *testing.T) {
			allowed := map[Label]bool{}
			for _, l := range tt.allowed {
				allowed[l] = true
			}
			for _, l := range Labels() {
				if got := tt.set.Contains(l); got != allowed[l] {
					t.Errorf("Contains(%s) = %v, want %v", l, got, allowed[l])
				}
			}

			parsed, err := ParseGestureSet(tt.set.String())
			if err != nil || parsed != tt.set {
				t.Errorf("ParseGestureSet(%q) = %v, %v", tt.set.String(), parsed, err)
			}
		})
	}

	if SetThree.Display(Peace) != "SCISSORS" || SetEight.Display(Peace) != "PEACE" {
		t.Error("unexpected display name for peace")
	}
	if _, err := ParseGestureSet("five"); err == nil {
		t.Error("expected error for unknown set")
	}
}

func TestGeometry(t *testing.T) {
	a := detector.Point3D{X: 0, Y: 0, Z: 5}
	b := detector.Point3D{X: 3, Y: 4, Z: -5}
	if got := Distance(a, b); math.Abs(got-5) > 1e-12 {
		t.Errorf("Distance = %v, want 5 (z ignored)", got)
	}

	straight := Straightness(
		detector.Point3D{}, detector.Point3D{Y: 1}, detector.Point3D{Y: 2}, detector.Point3D{Y: 3},
	)
	if math.Abs(straight-1) > 1e-12 {
		t.Errorf("Straightness of a line = %v, want 1", straight)
	}

	folded := Straightness(
		detector.Point3D{}, detector.Point3D{Y: 1}, detector.Point3D{X: 1, Y: 1}, detector.Point3D{X: 1},
	)
	if math.Abs(folded-1.0/3) > 1e-12 {
		t.Errorf("Straightness of a folded chain = %v, want 1/3", folded)
	}

	if got := Straightness(a, a, a, a); got != 0 {
		t.Errorf("degenerate chain = %v, want 0", got)
	}

	fist := detector.FistLandmarks()
	if got := PalmSize(&fist); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("PalmSize = %v, want 0.2", got)
	}
}
