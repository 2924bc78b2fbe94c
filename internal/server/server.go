// Package server serves a live preview of one folio session. The page at /
// holds the latest HTML render and a websocket at /ws pushes every fresh
// pipeline result to connected browsers.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/pipeline"
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *PreviewServer
}

// PreviewServer serves one session with live reload.
type PreviewServer struct {
	config       *config.Config
	session      *pipeline.Session
	logger       logging.Logger
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}
	unsubscribe  func()
	attachOnce   sync.Once
	shutdownOnce sync.Once
}

// RenderMessage is pushed to browsers after each fresh result.
type RenderMessage struct {
	Type        string    `json:"type"`
	Generation  uint64    `json:"generation"`
	Content     string    `json:"content,omitempty"`
	Diagnostics int       `json:"diagnostics"`
	Timestamp   time.Time `json:"timestamp"`
}

// New creates a preview server for session. The session's pipeline should
// render HTML.
func New(cfg *config.Config, session *pipeline.Session, logger logging.Logger) *PreviewServer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &PreviewServer{
		config:     cfg,
		session:    session,
		logger:     logging.OrNop(logger).WithComponent("server"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Attach starts the websocket hub and subscribes to the session. Start
// calls it; tests serving Handler directly call it themselves.
func (s *PreviewServer) Attach(ctx context.Context) {
	s.attachOnce.Do(func() {
		go s.runWebSocketHub(ctx)
		s.unsubscribe = s.session.Subscribe(s.publish)
	})
}

// Handler returns the routed and wrapped HTTP handler.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/", s.handleIndex)
	return s.addMiddleware(mux)
}

// Start serves until the server is shut down.
func (s *PreviewServer) Start(ctx context.Context) error {
	s.Attach(ctx)

	addr := s.config.Server.Address()

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "preview server listening", "address", "http://"+addr)

	if s.config.Server.Open {
		go s.openBrowser(ctx, "http://"+addr)
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *PreviewServer) publish(result *pipeline.Result) {
	data, err := json.Marshal(newRenderMessage(result))
	if err != nil {
		s.logger.Error(context.Background(), err, "failed to marshal render message")
		return
	}
	select {
	case s.broadcast <- data:
	case <-s.done:
	}
}

func newRenderMessage(result *pipeline.Result) RenderMessage {
	return RenderMessage{
		Type:        "render",
		Generation:  result.Generation,
		Content:     result.Output,
		Diagnostics: len(result.Diagnostics),
		Timestamp:   time.Now(),
	}
}

func (s *PreviewServer) openBrowser(ctx context.Context, target string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		s.logger.Warn(ctx, err, "refusing to open browser", "url", target)
		return
	}

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", u.String()).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String()).Start()
	case "darwin":
		err = exec.Command("open", u.String()).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}
	if err != nil {
		s.logger.Warn(ctx, err, "failed to open browser")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// isAllowedOrigin checks if the origin is in the allowed origins list
func (s *PreviewServer) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down preview server")

		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		close(s.done)

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// ClientCount returns the number of connected websocket clients.
func (s *PreviewServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}
