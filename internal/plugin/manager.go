package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrUnknownAction is returned when a plugin does not declare the requested action.
	ErrUnknownAction = errors.New("plugin does not declare action")
)

// Manager manages plugin discovery and access.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
	}
}

// Discover scans the plugin directory for plugin.json files and loads them.
// Each subdirectory is expected to hold one plugin; unreadable manifests are
// skipped with a warning.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.plugins = make(map[string]*Plugin)

	info, err := os.Stat(m.pluginDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		manifestData, err := os.ReadFile(filepath.Join(pluginPath, "plugin.json"))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			slog.Warn("plugin manifest unreadable", "dir", pluginPath, "error", err)
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			slog.Warn("plugin manifest invalid", "dir", pluginPath, "error", err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			slog.Warn("plugin manifest incomplete", "dir", pluginPath)
			continue
		}

		m.plugins[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       pluginPath,
			Executable: filepath.Join(pluginPath, manifest.Executable),
		}
	}

	slog.Debug("plugins discovered", "dir", m.pluginDir, "count", len(m.plugins))
	return nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}

	return plugin, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})

	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}

// Invoker resolves plugins by name and runs them.
type Invoker struct {
	manager  *Manager
	executor *Executor
}

// NewInvoker pairs a manager with an executor.
func NewInvoker(manager *Manager, executor *Executor) *Invoker {
	return &Invoker{manager: manager, executor: executor}
}

// Invoke runs req.Action on the named plugin.
func (i *Invoker) Invoke(ctx context.Context, name string, req *Request) (*Response, error) {
	p, err := i.manager.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !p.Manifest.HasAction(req.Action) {
		return nil, fmt.Errorf("%s/%s: %w", name, req.Action, ErrUnknownAction)
	}
	return i.executor.Execute(ctx, p, req)
}
