// Package server exposes the running recognizer over HTTP: status, the
// gesture journal, bindings, an MJPEG preview and a websocket result feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SEARO1/Hand-Track/internal/app"
	"github.com/SEARO1/Hand-Track/internal/plugin"
	"github.com/SEARO1/Hand-Track/internal/server/api"
	"github.com/SEARO1/Hand-Track/internal/store"
)

// Controller is the part of the application the server drives.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Config holds the server configuration. Nil fields disable their routes.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller Controller
	Plugins    *plugin.Manager
	Hub        *Hub
	Stream     *Stream
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		r.Get("/api/status", s.handleStatus)
		r.Put("/api/detection", s.handleDetection)
	}

	if s.config.Store != nil {
		r.Route("/api/bindings", api.NewBindingHandler(s.config.Store).Routes)
		r.Route("/api/sessions", api.NewSessionHandler(s.config.Store).Routes)
	}

	if s.config.Plugins != nil {
		r.Get("/api/plugins", s.handlePlugins)
	}

	if s.config.Stream != nil {
		r.Get("/api/stream", s.config.Stream.ServeHTTP)
		r.Get("/api/snapshot.jpg", s.config.Stream.ServeSnapshot)
	}

	if s.config.Hub != nil {
		r.Get("/api/ws", s.config.Hub.ServeHTTP)
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

type detectionRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	var req detectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}

	s.config.Controller.SetEnabled(*req.Enabled)
	if s.config.Store != nil {
		if err := s.config.Store.Settings().Set(SettingEnabled, boolString(*req.Enabled)); err != nil {
			slog.Warn("failed to persist detection state", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Controller.IsEnabled()})
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.config.Plugins.List()
	out := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     p.Manifest.Actions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": out})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming handlers end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SettingEnabled is the settings key holding the detection toggle.
const SettingEnabled = "detection.enabled"

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
