package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds everything NewServer needs besides the engine.
type ServerConfig struct {
	Addr              string
	BroadcastInterval time.Duration
	CORSOrigins       []string
	RateLimit         RateLimitConfig
	OperatorToken     string
	SecureCookie      bool
	TuningSource      TuningSource
	Renderer          FrameRenderer
}

// DefaultServerConfig returns local development defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		BroadcastInterval: 50 * time.Millisecond,
		RateLimit:         DefaultRateLimitConfig,
	}
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	cfg        ServerConfig
	engine     EngineInterface
	router     *chi.Mux
	wsHub      *WebSocketHub
	gate       *ClientGate
	auth       *OperatorAuth
	httpServer *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	// One gate serves HTTP and the socket so both count against the same IP
	if cfg.RateLimit.Origins == nil {
		cfg.RateLimit.Origins = cfg.CORSOrigins
	}
	gate := NewClientGate(cfg.RateLimit)

	s := &Server{
		cfg:    cfg,
		engine: engine,
		wsHub:  NewWebSocketHub(engine, gate),
		gate:   gate,
		auth:   NewOperatorAuth(cfg.OperatorToken, cfg.SecureCookie),
	}

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:       engine,
		Renderer:     cfg.Renderer,
		TuningSource: cfg.TuningSource,
		Auth:         s.auth,
		Gate:         s.gate,
		CORSOrigins:  cfg.CORSOrigins,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until the server stops and returns nil after Shutdown.
func (s *Server) Start() error {
	// Start background workers NOW, not in constructor
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.BroadcastInterval)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", s.cfg.Addr)
	log.Printf("🔌 WebSocket: ws://localhost%s/ws (add ?format=msgpack for binary frames)", s.cfg.Addr)
	if s.auth.Enabled() {
		log.Println("🔐 Operator routes require OPERATOR_TOKEN")
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
//
// Example:
//
//	server := api.NewServer(engine, api.DefaultServerConfig())
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops background workers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.gate.Stop()
	s.auth.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
