package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()

	dir := filepath.Join(root, m.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, Manifest{
		Name:        "notify",
		Version:     "1.0.0",
		Description: "desktop notifications",
		Executable:  "notify.sh",
		Actions:     []string{"show", "clear"},
	})
	writeManifest(t, root, Manifest{Name: "echo", Executable: "echo.sh", Actions: []string{"say"}})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "echo" {
		t.Errorf("List() not sorted: first = %q", plugins[0].Manifest.Name)
	}

	p, err := manager.Get("notify")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Path != dir {
		t.Errorf("Path = %q, want %q", p.Path, dir)
	}
	if p.Executable != filepath.Join(dir, "notify.sh") {
		t.Errorf("Executable = %q", p.Executable)
	}
	if !p.Manifest.HasAction("clear") || p.Manifest.HasAction("open") {
		t.Errorf("HasAction mismatch for %v", p.Manifest.Actions)
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
	}{
		{"empty dir", func(t *testing.T, root string) {}},
		{"invalid json", func(t *testing.T, root string) {
			dir := filepath.Join(root, "bad")
			os.MkdirAll(dir, 0o755)
			os.WriteFile(filepath.Join(dir, "plugin.json"), []byte("not valid json"), 0o644)
		}},
		{"missing executable", func(t *testing.T, root string) {
			writeManifest(t, root, Manifest{Name: "noexec"})
		}},
		{"no manifest", func(t *testing.T, root string) {
			os.MkdirAll(filepath.Join(root, "plain"), 0o755)
		}},
		{"loose file", func(t *testing.T, root string) {
			os.WriteFile(filepath.Join(root, "plugin.json"), []byte(`{"name":"x","executable":"x"}`), 0o644)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			manager := NewManager(root)
			if err := manager.Discover(); err != nil {
				t.Fatalf("Discover() failed: %v", err)
			}
			if n := len(manager.List()); n != 0 {
				t.Errorf("expected 0 plugins, got %d", n)
			}
		})
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing"))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Fatal("expected no plugins")
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir())
	if _, err := manager.Get("nonexistent"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	if got := NewManager("/path/to/plugins").PluginDir(); got != "/path/to/plugins" {
		t.Errorf("PluginDir() = %q", got)
	}
}

func TestInvoker(t *testing.T) {
	script := writeScript(t, "say.sh", `echo '{"success":true}'`+"\n")
	root := filepath.Dir(script.Path)
	name := filepath.Base(script.Path)
	writeManifest(t, root, Manifest{Name: name, Executable: "say.sh", Actions: []string{"say"}})

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	inv := NewInvoker(manager, NewExecutor(5*time.Second))

	resp, err := inv.Invoke(context.Background(), name, &Request{Action: "say", Gesture: "PAPER"})
	if err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}

	if _, err := inv.Invoke(context.Background(), name, &Request{Action: "shout"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action error = %v", err)
	}
	if _, err := inv.Invoke(context.Background(), "missing", &Request{Action: "say"}); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("missing plugin error = %v", err)
	}
}
