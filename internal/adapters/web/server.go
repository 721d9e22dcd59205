// Package web serves the daemon's JSON API and Prometheus metrics over HTTP.
// Binds to localhost only: no network exposure, no auth needed.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/ccflags/internal/adapters/socket"
)

// Server serves the JSON API over HTTP.
type Server struct {
	svc      socket.Service
	metrics  http.Handler
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	portFilePath string // .ccflags/http.port
}

// NewServer creates an HTTP server. metrics serves /metrics and may be nil.
// The portFilePath is where the bound port is written for discovery.
func NewServer(svc socket.Service, metrics http.Handler, portFilePath string) *Server {
	return &Server{
		svc:          svc,
		metrics:      metrics,
		portFilePath: portFilePath,
		started:      time.Now(),
	}
}

// DefaultPort computes a project-specific port: 19000 + (hash(abs_path) % 1000).
func DefaultPort(projectRoot string) int {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	n := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	return 19000 + int(n%1000)
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/flags", s.handleFlags)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start begins listening on the preferred port. Writes the port to .ccflags/http.port.
func (s *Server) Start(preferredPort int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", preferredPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	if s.portFilePath != "" {
		os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644)
	}

	go s.httpSrv.Serve(ln)
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(ctx)
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the base URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, socket.HealthResult{
		Status:      "ok",
		ProjectRoot: s.svc.ProjectRoot(),
		Entries:     s.svc.Stats().Entries,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, errors.New("file query parameter is required"))
		return
	}
	res, err := s.svc.Flags(r.Context(), socket.ViewParams{File: file, Lang: r.URL.Query().Get("lang")})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, errors.New("file query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Clear(file))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
