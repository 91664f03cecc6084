package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/SEARO1/Hand-Track/internal/app"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/plugin"
	"github.com/SEARO1/Hand-Track/internal/store"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

type fakeController struct {
	mu      sync.Mutex
	enabled bool
	latest  *app.FrameResult
}

func (f *fakeController) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return app.Status{Running: true, Enabled: f.enabled, Live: true, Latest: f.latest}
}

func (f *fakeController) SetEnabled(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = on
}

func (f *fakeController) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/", "/api/status", "/api/bindings", "/api/sessions", "/api/stream", "/api/ws", "/api/plugins"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 without configuration, got %d", path, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>handtrack</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: dir})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != index {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rec.Code)
	}
}

func TestServer_Status(t *testing.T) {
	ctrl := &fakeController{
		enabled: true,
		latest: &app.FrameResult{Index: 7, Hands: []tracking.HandResult{
			{Slot: "Right", Stable: gesture.Peace, Display: "SCISSORS", Confidence: 0.95},
		}},
	}
	s := New(Config{Controller: ctrl})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var st struct {
		Running bool `json:"running"`
		Enabled bool `json:"enabled"`
		Latest  struct {
			Index int `json:"index"`
			Hands []struct {
				Stable  string `json:"stable"`
				Display string `json:"display"`
			} `json:"hands"`
		} `json:"latest"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !st.Running || !st.Enabled || st.Latest.Index != 7 {
		t.Errorf("status = %+v", st)
	}
	if len(st.Latest.Hands) != 1 || st.Latest.Hands[0].Stable != "PEACE" || st.Latest.Hands[0].Display != "SCISSORS" {
		t.Errorf("hands = %+v", st.Latest.Hands)
	}
}

func TestServer_Detection(t *testing.T) {
	ctrl := &fakeController{enabled: true}
	st := newTestStore(t)
	s := New(Config{Controller: ctrl, Store: st})

	tests := []struct {
		body       string
		wantStatus int
		wantOn     bool
	}{
		{`{"enabled":false}`, http.StatusOK, false},
		{`{"enabled":true}`, http.StatusOK, true},
		{`{}`, http.StatusBadRequest, true},
		{`nope`, http.StatusBadRequest, true},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/detection", strings.NewReader(tt.body)))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.body, rec.Code, tt.wantStatus)
		}
		if ctrl.IsEnabled() != tt.wantOn {
			t.Errorf("%s: enabled = %v, want %v", tt.body, ctrl.IsEnabled(), tt.wantOn)
		}
	}

	v, err := st.Settings().Get(SettingEnabled)
	if err != nil || v != "true" {
		t.Errorf("persisted setting = %q, %v", v, err)
	}
}

func TestServer_Plugins(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "media")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "plugin.json"),
		[]byte(`{"name":"media","version":"0.1.0","executable":"media.sh","actions":["play","pause"]}`), 0o644)

	mgr := plugin.NewManager(root)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	s := New(Config{Plugins: mgr})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plugins", nil))

	var resp struct {
		Plugins []pluginResponse `json:"plugins"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Plugins) != 1 || resp.Plugins[0].Name != "media" || len(resp.Plugins[0].Actions) != 2 {
		t.Errorf("plugins = %+v", resp.Plugins)
	}
}

func TestAPI_BindingWorkflow(t *testing.T) {
	srv := New(Config{Store: newTestStore(t)})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	// 1. Create a binding using the display alias
	resp, err := client.Post(ts.URL+"/api/bindings", "application/json",
		bytes.NewBufferString(`{"gesture":"scissors","plugin_name":"media","action_name":"next"}`))
	if err != nil {
		t.Fatalf("POST /api/bindings error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID      string `json:"id"`
		Gesture string `json:"gesture"`
		Enabled bool   `json:"enabled"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.Gesture != "PEACE" || !created.Enabled {
		t.Errorf("created = %+v, want enabled PEACE", created)
	}

	// 2. Filter by gesture
	resp, _ = client.Get(ts.URL + "/api/bindings?gesture=peace")
	var listed struct {
		Bindings []struct {
			ID string `json:"id"`
		} `json:"bindings"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Bindings) != 1 || listed.Bindings[0].ID != created.ID {
		t.Fatalf("listed = %+v", listed)
	}

	// 3. Disable it
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/bindings/"+created.ID, bytes.NewBufferString(`{"enabled":false}`))
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/bindings/" + created.ID)
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.Enabled {
		t.Error("binding should be disabled")
	}

	// 4. Delete it
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/bindings/"+created.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/bindings/" + created.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after DELETE status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPI_BindingValidation(t *testing.T) {
	s := New(Config{Store: newTestStore(t)})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing gesture", `{"plugin_name":"p","action_name":"a"}`},
		{"unknown gesture", `{"gesture":"wave","plugin_name":"p","action_name":"a"}`},
		{"unknown label not bindable", `{"gesture":"UNKNOWN","plugin_name":"p","action_name":"a"}`},
		{"missing plugin", `{"gesture":"ROCK","action_name":"a"}`},
		{"missing action", `{"gesture":"ROCK","plugin_name":"p"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bindings", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAPI_Sessions(t *testing.T) {
	st := newTestStore(t)
	sess := &store.Session{Source: "camera 0"}
	if err := st.Sessions().Create(sess); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	for _, label := range []string{"ROCK", "PAPER", "ROCK"} {
		if err := st.Events().Create(&store.Event{SessionID: sess.ID, Slot: "Right", Label: label}); err != nil {
			t.Fatalf("Create event: %v", err)
		}
	}
	s := New(Config{Store: st})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var list struct {
		Sessions []store.Session `json:"sessions"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != sess.ID {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID, nil))
	var one struct {
		ID     string         `json:"id"`
		Counts map[string]int `json:"counts"`
	}
	json.NewDecoder(rec.Body).Decode(&one)
	if one.ID != sess.ID || one.Counts["ROCK"] != 2 {
		t.Errorf("session = %+v", one)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID+"/events?limit=2", nil))
	var events struct {
		Events []store.Event `json:"events"`
	}
	json.NewDecoder(rec.Body).Decode(&events)
	if len(events.Events) != 2 || events.Events[1].Label != "PAPER" {
		t.Errorf("events = %+v", events.Events)
	}

	for path, want := range map[string]int{
		"/api/sessions/missing":                        http.StatusNotFound,
		"/api/sessions/missing/events":                 http.StatusNotFound,
		"/api/sessions?limit=-1":                       http.StatusBadRequest,
		"/api/sessions/" + sess.ID + "/events?limit=x": http.StatusBadRequest,
	} {
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Consume(&app.FrameResult{Index: 3, Hands: []tracking.HandResult{{Slot: "Left", Stable: gesture.OK}}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Index int `json:"index"`
		Hands []struct {
			Slot   string `json:"slot"`
			Stable string `json:"stable"`
		} `json:"hands"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Index != 3 || len(got.Hands) != 1 || got.Hands[0].Stable != "OK" {
		t.Errorf("received %+v", got)
	}

	hub.Close()
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d after Close", hub.Clients())
	}
}

func TestStream_MJPEG(t *testing.T) {
	stream := NewStream(1000)
	ts := httptest.NewServer(New(Config{Stream: stream}))
	defer ts.Close()

	rec := httptest.NewRecorder()
	stream.ServeSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot.jpg", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("snapshot before first frame = %d, want 503", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q", ct)
	}

	for stream.Viewers() != 1 {
		if ctx.Err() != nil {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	img := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer img.Close()
	if err := stream.WriteFrame(&img, nil); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read part boundary: %v", err)
	}
	if strings.TrimSpace(line) != "--frame" {
		t.Errorf("first line = %q, want --frame", line)
	}

	rec = httptest.NewRecorder()
	stream.ServeSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot.jpg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" || rec.Body.Len() == 0 {
		t.Errorf("snapshot = %d %s (%d bytes)", rec.Code, rec.Header().Get("Content-Type"), rec.Body.Len())
	}
}
