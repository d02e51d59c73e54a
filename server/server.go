// Package server exposes the tempo over HTTP: a WebSocket endpoint carrying JSON commands and state
// broadcasts, a health check and the web frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robmorgan/tapsync/logger"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// DevOrigins are the frontend dev server origins allowed besides the server's own.
var DevOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

const placeholderPage = `<!doctype html>
<html>
<body style="font-family: sans-serif;">
  <h1>tapsync</h1>
  <p>The frontend build is missing. Build the frontend and point <code>frontend_dir</code> at it.</p>
  <p>WebSocket endpoint: <code>/ws</code></p>
</body>
</html>
`

// Server serves the HTTP routes. It does not own the tempo; commands go to the Controller and the
// Controller broadcasts through the Hub.
type Server struct {
	controller  Controller
	hub         *Hub
	frontendDir string
	origins     map[string]bool
	upgrader    websocket.Upgrader
	log         *logrus.Entry
}

// New creates a Server. frontendDir is served at / when it exists.
func New(controller Controller, hub *Hub, frontendDir string) *Server {
	s := &Server{
		controller:  controller,
		hub:         hub,
		frontendDir: frontendDir,
		origins:     map[string]bool{},
		log:         logger.GetProjectLogger().WithField("component", "server"),
	}
	for _, origin := range DevOrigins {
		s.origins[origin] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", s.frontend())
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.Serve(listener)
	}()
	s.log.WithField("addr", listener.Addr().String()).Info("HTTP server listening")

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Hijacked WebSocket connections are not closed by Shutdown.
	s.hub.Close()
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("HTTP server shutdown")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); s.origins[origin] {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	c := newClient(s.hub, conn)
	if err := s.hub.subscribe(c, s.greeting); err != nil {
		s.log.WithError(err).Error("Could not encode initial state")
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(func(data []byte) {
		s.handleMessage(c, data)
	})
}

// greeting encodes the state and settings a new client starts from.
func (s *Server) greeting() ([][]byte, error) {
	state, err := json.Marshal(s.controller.State())
	if err != nil {
		return nil, err
	}
	settings, err := json.Marshal(s.controller.Settings())
	if err != nil {
		return nil, err
	}
	return [][]byte{state, settings}, nil
}

// handleMessage runs a single command. Bad commands are answered with an error payload; the
// connection stays open.
func (s *Server) handleMessage(c *client, data []byte) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		s.hub.send(c, errorPayload(ErrInvalidJSON))
		return
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		s.hub.send(c, errorPayload(ErrNotAnObject))
		return
	}

	msgType, _ := obj["type"].(string)
	cmd, ok := commands[msgType]
	if !ok {
		s.hub.send(c, errorPayload(ErrUnknownType))
		return
	}

	reply, err := cmd(s.controller, message(obj))
	if err != nil {
		s.log.WithFields(logrus.Fields{"type": msgType}).WithError(err).Debug("Rejected command")
		s.hub.send(c, errorPayload(ErrInvalidPayload))
		return
	}
	if reply != nil {
		s.hub.send(c, reply)
	}
}

func (s *Server) frontend() http.Handler {
	if info, err := os.Stat(s.frontendDir); err == nil && info.IsDir() {
		return http.FileServer(http.Dir(s.frontendDir))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(placeholderPage))
	})
}

// checkOrigin accepts same-host requests, requests without an Origin header and the dev origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.origins[origin] {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
