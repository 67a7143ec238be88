package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpalmerr/votewatch/internal/broadcast"
	"github.com/jpalmerr/votewatch/internal/metrics"
	"github.com/jpalmerr/votewatch/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// writeTimeout is the maximum time allowed for a single event write.
	// This prevents goroutine leaks when observers are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	writeTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Votewatch"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	// ResetMessage is the confirmation body returned by /reset-memory.
	ResetMessage = "Mémoire effacée !"

	transportSSE = "sse"
	transportWS  = "ws"
)

// History is the part of the history buffer the server exposes.
type History interface {
	store.Reader

	// Clear discards every buffered snapshot.
	Clear()
}

// Observers registers and unregisters live observers.
type Observers interface {
	Register(transport string) (*broadcast.Subscriber, error)
	Unregister(sub *broadcast.Subscriber)
	Count() int
}

// Server handles HTTP requests for the vote dashboard and live streams.
//
// Routes:
//   - GET /: embedded dashboard page
//   - GET /events: Server-Sent Events stream ("init" then "update" events)
//   - GET /ws: the same event stream over a WebSocket
//   - GET|POST /reset-memory: clears the in-memory history
//   - GET /api/history: current history as JSON
//   - GET /healthz: liveness probe
//   - GET /metrics: Prometheus metrics
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	history    History
	observers  Observers
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - history: history buffer served by /api/history and cleared by /reset-memory
//   - observers: registry every /events and /ws connection joins
//   - port: TCP port to listen on
//   - assets: embedded filesystem containing dashboard assets (may be nil)
//   - title: dashboard title (defaults to "Votewatch" if empty)
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(history History, observers Observers, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		history:   history,
		observers: observers,
		port:      port,
		assets:    assets,
		title:     title,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the SSE stream is open to any origin too
			},
		},
	}
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/events", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/reset-memory", s.handleReset)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// which ends long-lived /events and /ws handlers.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleReset discards the in-memory history. The durable log and connected
// observers are left untouched.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.history.Clear()
	metrics.HistoryResetsTotal.Inc()
	metrics.HistorySize.Set(0)
	s.logger.Info("history cleared", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(ResetMessage)); err != nil {
		s.logger.Debug("failed to write reset response", "error", err)
	}
}

// handleHistory returns the buffered snapshots as a JSON array.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.history.Snapshot()); err != nil {
		s.logger.Error("failed to encode history response", "error", err)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Snapshots int    `json:"snapshots"`
	Observers int    `json:"observers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:    "ok",
		Snapshots: s.history.Len(),
		Observers: s.observers.Count(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}

// handleSSE streams history events via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked write would prevent
// the handler from detecting context cancellation or queue closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	sub, err := s.observers.Register(transportSSE)
	if err != nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.observers.Unregister(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	log := s.logger.With("observer", sub.ID(), "transport", transportSSE)
	log.Debug("observer connected")

	// the init event is always first in the queue
	for {
		select {
		case data, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeAndFlush(data); err != nil {
				metrics.DeliveryErrorsTotal.WithLabelValues(transportSSE).Inc()
				log.Debug("event delivery failed", "error", err)
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			log.Debug("observer disconnected")
			return
		}
	}
}

// handleWebSocket streams the same events as /events as WebSocket text frames.
// Inbound messages are read and discarded; a read error ends the session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, err := s.observers.Register(transportWS)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer s.observers.Unregister(sub)

	log := s.logger.With("observer", sub.ID(), "transport", transportWS)
	log.Debug("observer connected")

	// read pump: detects client close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.DeliveryErrorsTotal.WithLabelValues(transportWS).Inc()
				log.Debug("event delivery failed", "error", err)
				return
			}

		case <-gone:
			log.Debug("observer disconnected")
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
