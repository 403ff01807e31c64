// Package web provides the HTTP surface of the aqualight daemon: a status
// page, JSON status, the stored settings document, the websocket control
// transport and the browser control page that uses it.
package web

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/sweeney/aqualight/internal/protocol"
	"github.com/sweeney/aqualight/internal/status"
)

// SettingsSource returns the stored settings document.
type SettingsSource func() ([]byte, error)

// Server serves the status page and websocket clients over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	settings   SettingsSource
	events     chan<- protocol.Event
	upgrader   websocket.Upgrader

	nextID atomic.Uint64
	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	done   chan struct{}
	once   sync.Once
}

// New creates a Server that reads state from the given tracker. Websocket
// messages are forwarded to events; if events is nil /ws is not served.
func New(addr string, tracker *status.Tracker, settings SettingsSource, events chan<- protocol.Event) *Server {
	s := &Server{
		tracker:  tracker,
		settings: settings,
		events:   events,
		conns:    make(map[*wsConn]struct{}),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local appliance; the control page may be served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/configFile.json", s.handleSettings)
	if events != nil {
		mux.HandleFunc("/ws", s.handleWS)
		mux.Handle("/control/", controlHandler())
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and closes websocket clients.
// Hijacked connections are not tracked by http.Server, so they are closed here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	for c := range s.conns {
		c.close()
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}
