// Package server exposes the audio core's HTTP control surface and a WebSocket broadcast of
// session status, transcript, and biomarker events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/trace"
)

// RateLimitWindow and RateLimitMessages bound how many inbound WebSocket frames one connection
// may send before being throttled; the control surface is observer-only today, so this mainly
// guards against a misbehaving client flooding the read loop.
const (
	RateLimitWindow   = time.Second
	RateLimitMessages = 20
)

// Device is one enumerated capture device, as surfaced over the control API.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionManager is the session lifecycle surface the HTTP handlers drive. It is satisfied by a
// thin adapter over session.Controller plus the capture/processor pair it owns.
type SessionManager interface {
	Start(ctx context.Context) error
	Stop() error
	Reset()
	Status() domain.Status
	SegmentUpdates() <-chan domain.Segment
}

// DeviceLister enumerates capture-capable input devices.
type DeviceLister interface {
	ListDevices() ([]Device, error)
}

// Deps bundles the Server's collaborators. Biomarkers and Coughs may be nil, in which case the
// WebSocket broadcast simply never emits those event types.
type Deps struct {
	Session    SessionManager
	Devices    DeviceLister
	Biomarkers <-chan domain.VocalBiomarkers
	Coughs     <-chan domain.CoughEvent
	Metrics    <-chan domain.SessionMetrics
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles the HTTP control surface and the observer WebSocket.
type Server struct {
	deps Deps

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New constructs a Server and starts its broadcast goroutines.
func New(deps Deps) *Server {
	s := &Server{
		deps:       deps,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcastSegments()
	if deps.Biomarkers != nil {
		go s.broadcastBiomarkers()
	}
	if deps.Coughs != nil {
		go s.broadcastCoughs()
	}
	if deps.Metrics != nil {
		go s.broadcastMetrics()
	}
	return s
}

// Handler returns the assembled HTTP handler for the control surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /session/status", s.handleStatus)
	mux.HandleFunc("POST /session/start", s.handleStart)
	mux.HandleFunc("POST /session/stop", s.handleStop)
	mux.HandleFunc("POST /session/reset", s.handleReset)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.deps.Devices.ListDevices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(devices)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.deps.Session.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Start(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "stopping"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.Reset()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "idle"})
}

// eventMessage is the envelope every broadcast frame carries, discriminated by Type.
type eventMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("control websocket connected", "remote", r.RemoteAddr)

	_ = s.send(baseCtx, conn, "status", s.deps.Session.Status())

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("control websocket closed", "error", err)
			return
		}
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()
		if rl != nil && !rl.allow() {
			_ = s.send(baseCtx, conn, "error", map[string]string{"message": "rate limit exceeded"})
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	return wsjson.Write(ctx, conn, eventMessage{Type: typ, Data: data})
}

func (s *Server) broadcast(typ string, data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = s.send(context.Background(), c, typ, data)
		}(conn)
	}
}

func (s *Server) broadcastSegments() {
	for seg := range s.deps.Session.SegmentUpdates() {
		s.broadcast("transcript_update", seg)
	}
}

func (s *Server) broadcastBiomarkers() {
	for b := range s.deps.Biomarkers {
		s.broadcast("biomarker_output", b)
	}
}

func (s *Server) broadcastCoughs() {
	for c := range s.deps.Coughs {
		s.broadcast("cough_event", c)
	}
}

func (s *Server) broadcastMetrics() {
	for m := range s.deps.Metrics {
		s.broadcast("session_metrics", m)
	}
}
