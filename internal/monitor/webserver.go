// Package monitor serves the diagnostics HTTP interface: JSON snapshots of
// the device profile, scheduler state, latest form score, and recovery
// counters, plus a websocket stream of live poses and scores.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/motion"
	"github.com/kinetic-data/motion.report/internal/pipeline"
	"github.com/kinetic-data/motion.report/internal/pose"
)

// WebServer handles the HTTP interface for monitoring a running session.
type WebServer struct {
	address string
	session *pipeline.Session
	server  *http.Server

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Session *pipeline.Session
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		session: config.Session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Diagnostics surface, same trust domain as the app shell.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
// when the context is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting monitor HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down monitor HTTP server...")

	ws.closeClients()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", ws.handleHealth)
	mux.HandleFunc("/api/profile", ws.handleProfile)
	mux.HandleFunc("/api/scheduler", ws.handleScheduler)
	mux.HandleFunc("/api/score", ws.handleScore)
	mux.HandleFunc("/api/recoveries", ws.handleRecoveries)
	mux.HandleFunc("/ws/live", ws.handleLive)

	return mux
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("failed to encode response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if ws.session != nil {
		resp["session_id"] = ws.session.ID()
		resp["exercise_id"] = ws.session.ExerciseID()
	}
	ws.writeJSON(w, resp)
}

func (ws *WebServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	if ws.session == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no active session")
		return
	}
	ws.writeJSON(w, ws.session.Profile())
}

func (ws *WebServer) handleScheduler(w http.ResponseWriter, r *http.Request) {
	if ws.session == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no active session")
		return
	}
	ws.writeJSON(w, ws.session.SchedulerState())
}

func (ws *WebServer) handleScore(w http.ResponseWriter, r *http.Request) {
	if ws.session == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no active session")
		return
	}
	score := ws.session.LastScore()
	if score == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no score yet")
		return
	}
	ws.writeJSON(w, score)
}

func (ws *WebServer) handleRecoveries(w http.ResponseWriter, r *http.Request) {
	if ws.session == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no active session")
		return
	}
	ws.writeJSON(w, ws.session.Recoveries().Snapshot())
}

// handleLive upgrades the connection and streams pose and score events until
// the client disconnects. Each client gets a buffered send channel; a client
// that can't keep up is dropped rather than backpressuring the pipeline.
func (ws *WebServer) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("websocket upgrade failed: %v", err)
		return
	}

	send := make(chan []byte, 32)
	ws.mu.Lock()
	ws.clients[conn] = send
	ws.mu.Unlock()

	go ws.writeLoop(conn, send)

	// Read loop exists only to detect disconnects and answer pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.dropClient(conn)
}

func (ws *WebServer) writeLoop(conn *websocket.Conn, send chan []byte) {
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			ws.dropClient(conn)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

func (ws *WebServer) dropClient(conn *websocket.Conn) {
	ws.mu.Lock()
	send, ok := ws.clients[conn]
	if ok {
		delete(ws.clients, conn)
	}
	ws.mu.Unlock()
	if ok {
		close(send)
	}
	conn.Close()
}

func (ws *WebServer) closeClients() {
	ws.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(ws.clients))
	for conn := range ws.clients {
		conns = append(conns, conn)
	}
	ws.mu.Unlock()
	for _, conn := range conns {
		ws.dropClient(conn)
	}
}

// broadcast fans a message out to every connected client. Clients with a
// full send buffer are dropped.
func (ws *WebServer) broadcast(msg []byte) {
	ws.mu.Lock()
	var slow []*websocket.Conn
	for conn, send := range ws.clients {
		select {
		case send <- msg:
		default:
			slow = append(slow, conn)
		}
	}
	ws.mu.Unlock()
	for _, conn := range slow {
		monitoring.Logf("dropping slow websocket client %s", conn.RemoteAddr())
		ws.dropClient(conn)
	}
}

// liveEvent is the envelope for websocket stream messages.
type liveEvent struct {
	Type     string            `json:"type"`
	Pose     *pose.FusedPose   `json:"pose,omitempty"`
	Score    *motion.FormScore `json:"score,omitempty"`
	Feedback []string          `json:"feedback,omitempty"`
}

// PublishPose broadcasts a fused pose to live clients. Implements the
// pipeline's publisher interface.
func (ws *WebServer) PublishPose(p *pose.FusedPose) {
	msg, err := json.Marshal(liveEvent{Type: "pose", Pose: p})
	if err != nil {
		return
	}
	ws.broadcast(msg)
}

// PublishScore broadcasts a form score and its feedback cues to live clients.
func (ws *WebServer) PublishScore(score *motion.FormScore, feedback []string) {
	msg, err := json.Marshal(liveEvent{Type: "score", Score: score, Feedback: feedback})
	if err != nil {
		return
	}
	ws.broadcast(msg)
}
