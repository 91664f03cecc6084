package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/SEARO1/Hand-Track/internal/config"
	"github.com/SEARO1/Hand-Track/internal/store"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		arg  string
		want sourceSpec
	}{
		{"", sourceSpec{Camera: true, Index: 3}},
		{"0", sourceSpec{Camera: true, Index: 0}},
		{" 2 ", sourceSpec{Camera: true, Index: 2}},
		{"clip.mp4", sourceSpec{Path: "clip.mp4"}},
		{"-1", sourceSpec{Path: "-1"}},
		{"videos/2.avi", sourceSpec{Path: "videos/2.avi"}},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			if got := parseSource(tt.arg, 3); got != tt.want {
				t.Errorf("parseSource(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestSourceSpec_String(t *testing.T) {
	if got := (sourceSpec{Camera: true, Index: 1}).String(); got != "camera 1" {
		t.Errorf("String() = %q", got)
	}
	if got := (sourceSpec{Path: "a.mp4"}).String(); got != "a.mp4" {
		t.Errorf("String() = %q", got)
	}
}

func TestStatusURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080/",
		"127.0.0.1:9000": "http://127.0.0.1:9000/",
	}
	for addr, want := range tests {
		if got := statusURL(addr); got != want {
			t.Errorf("statusURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# HandTrack configuration") {
		t.Error("config file should start with a comment header")
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.WindowSize != config.Default().WindowSize {
		t.Errorf("WindowSize = %d, want default", cfg.WindowSize)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("second write should refuse to overwrite")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "handtrack ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestPrintSessions(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	sess := &store.Session{Source: "camera 0"}
	if err := st.Sessions().Create(sess); err != nil {
		t.Fatal(err)
	}
	events := []*store.Event{
		{SessionID: sess.ID, Slot: "Right", Label: "ROCK"},
		{SessionID: sess.ID, Slot: "Right", Label: "PAPER"},
		{SessionID: sess.ID, Slot: "Right", Label: "ROCK"},
	}
	if err := st.Events().CreateBatch(events); err != nil {
		t.Fatal(err)
	}

	var list bytes.Buffer
	if err := printSessions(&list, st, 0); err != nil {
		t.Fatalf("printSessions: %v", err)
	}
	if !strings.Contains(list.String(), sess.ID) || !strings.Contains(list.String(), "running") {
		t.Errorf("session list missing open session:\n%s", list.String())
	}

	var detail bytes.Buffer
	if err := printSession(&detail, st, sess.ID); err != nil {
		t.Fatalf("printSession: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(detail.String()), "\n")
	last := lines[len(lines)-2:]
	if !strings.HasPrefix(last[0], "ROCK") || !strings.HasPrefix(last[1], "PAPER") {
		t.Errorf("counts should be sorted by frequency:\n%s", detail.String())
	}

	if err := printSession(&detail, st, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("printSession(missing) = %v, want ErrNotFound", err)
	}
}
