package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stratustools/core/pkg/models"
)

// Server is a fake stratus server. It serves the HTTP endpoints the client
// uses and accepts WebSocket connections on /api/ws. Every exported method
// is safe for concurrent use.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu           sync.Mutex
	snapshot     *models.Snapshot
	stateBody    []byte
	stateStatus  int
	userAgent    string
	version      models.VersionInfo
	updateStatus int
	dirty        [][]string
	hits         map[string]int
	conns        map[*websocket.Conn]*sync.Mutex
	rejectStream bool

	accepted chan struct{}
	inbound  chan []byte
}

// NewServer starts a fake server that is shut down when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		snapshot:     SnapshotInPhase(""),
		stateStatus:  http.StatusOK,
		version:      models.VersionInfo{Current: "0.9.0", Latest: "0.9.1", UpdateAvailable: true},
		updateStatus: http.StatusAccepted,
		hits:         make(map[string]int),
		conns:        make(map[*websocket.Conn]*sync.Mutex),
		accepted:     make(chan struct{}, 64),
		inbound:      make(chan []byte, 256),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/dashboard/state", s.handleState)
	mux.HandleFunc("/api/system/version", s.handleVersion)
	mux.HandleFunc("/api/system/update", s.handleUpdate)
	mux.HandleFunc("/api/retrieve/dirty", s.handleDirty)
	mux.HandleFunc("/api/ws", s.handleStream)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// StreamURL returns the ws:// address of the event stream.
func (s *Server) StreamURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws"
}

// SetSnapshot replaces the Snapshot served by /api/dashboard/state.
func (s *Server) SetSnapshot(snapshot *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// SetStateBody makes /api/dashboard/state answer with raw instead of the
// encoded Snapshot. Nil restores the Snapshot.
func (s *Server) SetStateBody(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateBody = raw
}

// UserAgent returns the User-Agent of the last request.
func (s *Server) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgent
}

// SetStateStatus makes /api/dashboard/state answer with code.
// Any code other than 200 is sent with an error body.
func (s *Server) SetStateStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateStatus = code
}

// SetUpdateStatus makes /api/system/update answer with code.
func (s *Server) SetUpdateStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStatus = code
}

// RejectStream makes the WebSocket endpoint refuse upgrades.
func (s *Server) RejectStream(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectStream = reject
}

// Hits returns how many requests path has received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Dirty returns every path list posted to /api/retrieve/dirty.
func (s *Server) Dirty() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.dirty))
	copy(out, s.dirty)
	return out
}

// Connections returns the number of open stream connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitForConnection blocks until a new stream connection is accepted.
func (s *Server) WaitForConnection(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.accepted:
	case <-time.After(timeout):
		t.Fatalf("no stream connection within %v", timeout)
	}
}

// NextMessage returns the next raw frame a client sent on the stream.
func (s *Server) NextMessage(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	select {
	case msg := <-s.inbound:
		return msg
	case <-time.After(timeout):
		t.Fatalf("no client message within %v", timeout)
		return nil
	}
}

// Broadcast sends a {"type", "payload"} envelope to every open connection.
func (s *Server) Broadcast(t *testing.T, tag string, payload interface{}) {
	t.Helper()

	envelope := map[string]interface{}{"type": tag}
	if payload != nil {
		envelope["payload"] = payload
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	s.BroadcastRaw(data)
}

// BroadcastRaw sends data verbatim to every open connection.
func (s *Server) BroadcastRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, writeMu := range s.conns {
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
	}
}

// DropConnections closes every open stream connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.conns = make(map[*websocket.Conn]*sync.Mutex)
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// Close drops open connections and shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
}

func (s *Server) hit(r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.userAgent = r.UserAgent()
	s.mu.Unlock()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.hit(r)

	s.mu.Lock()
	status, snapshot, raw := s.stateStatus, s.snapshot, s.stateBody
	s.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	if raw != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.hit(r)

	s.mu.Lock()
	info := s.version
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.hit(r)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	status := s.updateStatus
	s.mu.Unlock()

	switch status {
	case http.StatusAccepted, http.StatusOK:
		writeJSON(w, status, map[string]bool{"accepted": true})
	case http.StatusConflict:
		writeJSON(w, status, map[string]string{"error": "Update already in progress"})
	default:
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
	}
}

func (s *Server) handleDirty(w http.ResponseWriter, r *http.Request) {
	s.hit(r)

	var body struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.dirty = append(s.dirty, body.Paths)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hit(r)

	s.mu.Lock()
	reject := s.rejectStream
	s.mu.Unlock()
	if reject {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = &sync.Mutex{}
	s.mu.Unlock()

	select {
	case s.accepted <- struct{}{}:
	default:
	}

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.inbound <- data:
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
