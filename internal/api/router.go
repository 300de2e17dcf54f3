package api

import (
	"io"
	"net/http"

	"ink-blade/internal/game"
	"ink-blade/internal/game/spatial"
	"ink-blade/internal/tuning"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the full game loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns a copy of the latest published snapshot
	GetSnapshot() game.Snapshot
	// SubmitInputFrom latches an intent for the next tick, tagged with the
	// client that sent it
	SubmitInputFrom(source string, in game.Intent)
	StartMatch()
	ResetMatch()
	HighScore() int
	// Tuning returns the tuning in force (read-only)
	Tuning() *tuning.Tuning
	// ApplyTuning swaps tuning between ticks
	ApplyTuning(t *tuning.Tuning) error
	GetEventLogStats() map[string]interface{}
	GridStats() spatial.GridStats
}

// FrameRenderer draws a snapshot as PNG. *render.Renderer implements it.
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.Snapshot) error
}

// TuningSource produces a fresh tuning document to re-resolve tiers against.
type TuningSource func() (*tuning.Tuning, error)

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer draws /api/frame.png. If nil, the endpoint answers 404.
	Renderer FrameRenderer

	// TuningSource is re-read when a tier is applied. If nil, the
	// embedded defaults are used.
	TuningSource TuningSource

	// Auth guards operator routes. If nil or without a token, they are open.
	Auth *OperatorAuth

	// Gate is an optional pre-configured client gate, shared with the
	// WebSocket hub. If nil, a new one will be created using RateLimitConfig.
	Gate *ClientGate

	// RateLimitConfig is optional configuration for the gate.
	// Only used if Gate is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only local origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
	source   TuningSource
	gate     *ClientGate
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects beyond the
// client gate's cleanup goroutine:
//   - No network listeners are opened
//   - No game loop is started
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	gate := cfg.Gate
	if gate == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		gate = NewClientGate(rateLimitCfg)
	}
	r.Use(gate.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	source := cfg.TuningSource
	if source == nil {
		source = func() (*tuning.Tuning, error) { return tuning.Default(), nil }
	}

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		source:   source,
		gate:     gate,
	}

	auth := cfg.Auth
	if auth == nil {
		auth = NewOperatorAuth("", false)
	}

	r.Route("/api", func(r chi.Router) {
		// Match state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/highscore", h.handleGetHighScore)
		r.Get("/events", h.handleGetEvents)
		r.Get("/frame.png", h.handleGetFrame)

		// Match control
		r.Post("/match/start", h.handleMatchStart)
		r.Post("/match/reset", h.handleMatchReset)
		r.Post("/input", h.handleInput)

		// Tuning
		r.Get("/tuning", h.handleGetTuning)
		r.With(auth.Middleware).Post("/tuning/tier", h.handleApplyTier)

		// Operator session
		r.Post("/auth/login", auth.HandleLogin)
		r.Post("/auth/logout", auth.HandleLogout)
		r.Get("/auth/status", auth.HandleAuthStatus)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
