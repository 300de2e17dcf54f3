package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds what one client IP may do against the server.
type RateLimitConfig struct {
	RequestsPerSecond float64       // HTTP requests per second per IP
	Burst             int           // HTTP burst per IP
	CleanupInterval   time.Duration // idle clients are forgotten after twice this
	SocketsPerIP      int           // concurrent WebSocket connections per IP
	FramesPerSecond   float64       // inbound frames per second per connection
	FrameBurst        int
	Origins           []string // exact browser origins accepted besides loopback
}

// DefaultRateLimitConfig leaves room for clients that post input over HTTP
// and for a 60 Hz input stream over the socket.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 30,
	Burst:             60,
	CleanupInterval:   5 * time.Minute,
	SocketsPerIP:      10,
	FramesPerSecond:   90,
	FrameBurst:        120,
}

// clientRecord is everything the gate remembers about one IP.
type clientRecord struct {
	requests *rate.Limiter
	sockets  int
	lastSeen time.Time
}

// ClientGate decides whether a client may reach the game: one request
// budget and one socket count per IP, a frame budget per socket, and the
// browser origins allowed to upgrade.
type ClientGate struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*clientRecord
	origins map[string]struct{}

	stopChan chan struct{}
	stopOnce sync.Once

	allowed        atomic.Uint64
	rejected       atomic.Uint64
	socketRejected atomic.Uint64
	frameRejected  atomic.Uint64
}

// NewClientGate starts a gate. Stop ends its cleanup goroutine.
func NewClientGate(cfg RateLimitConfig) *ClientGate {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	if cfg.SocketsPerIP <= 0 {
		cfg.SocketsPerIP = DefaultRateLimitConfig.SocketsPerIP
	}

	g := &ClientGate{
		cfg:      cfg,
		clients:  make(map[string]*clientRecord),
		stopChan: make(chan struct{}),
	}
	g.SetOrigins(cfg.Origins)

	go g.cleanupLoop()
	return g
}

// Stop ends the cleanup goroutine.
func (g *ClientGate) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopChan)
	})
}

// record returns the entry for ip, creating it. Caller holds g.mu.
func (g *ClientGate) record(ip string, now time.Time) *clientRecord {
	c, ok := g.clients[ip]
	if !ok {
		c = &clientRecord{requests: rate.NewLimiter(rate.Limit(g.cfg.RequestsPerSecond), g.cfg.Burst)}
		g.clients[ip] = c
	}
	c.lastSeen = now
	return c
}

// AllowRequest spends one HTTP token from ip's budget.
func (g *ClientGate) AllowRequest(ip string) bool {
	now := time.Now()
	g.mu.Lock()
	ok := g.record(ip, now).requests.AllowN(now, 1)
	g.mu.Unlock()

	if ok {
		g.allowed.Add(1)
	} else {
		g.rejected.Add(1)
	}
	return ok
}

// Middleware answers 429 once a client IP runs out of request budget.
func (g *ClientGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.AllowRequest(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AcquireSocket reserves a WebSocket slot for ip. Every true result must be
// paired with ReleaseSocket.
func (g *ClientGate) AcquireSocket(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.record(ip, time.Now())
	if c.sockets >= g.cfg.SocketsPerIP {
		g.socketRejected.Add(1)
		return false
	}
	c.sockets++
	return true
}

// ReleaseSocket frees a slot taken by AcquireSocket.
func (g *ClientGate) ReleaseSocket(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[ip]; ok && c.sockets > 0 {
		c.sockets--
		c.lastSeen = time.Now()
	}
}

// Sockets reports the open sockets held by ip.
func (g *ClientGate) Sockets(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[ip]; ok {
		return c.sockets
	}
	return 0
}

// frameBudget meters inbound frames on one socket.
type frameBudget struct {
	limiter *rate.Limiter
	gate    *ClientGate
}

// newFrameBudget returns the budget for a freshly accepted socket. A zero
// FramesPerSecond disables the check.
func (g *ClientGate) newFrameBudget() *frameBudget {
	limit := rate.Inf
	if g.cfg.FramesPerSecond > 0 {
		limit = rate.Limit(g.cfg.FramesPerSecond)
	}
	return &frameBudget{limiter: rate.NewLimiter(limit, g.cfg.FrameBurst), gate: g}
}

func (b *frameBudget) allow() bool {
	if b.limiter.Allow() {
		return true
	}
	b.gate.frameRejected.Add(1)
	return false
}

// SetOrigins replaces the exact-match origins accepted for upgrades.
func (g *ClientGate) SetOrigins(origins []string) {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	g.mu.Lock()
	g.origins = set
	g.mu.Unlock()
}

// AllowOrigin accepts loopback pages on any port and the configured origins.
func (g *ClientGate) AllowOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if u, err := url.Parse(origin); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.origins[strings.TrimRight(origin, "/")]
	return ok
}

// checkOrigin is the upgrader hook. Non-browser clients send no Origin.
func (g *ClientGate) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || g.AllowOrigin(origin) {
		return true
	}
	RecordConnectionRejected("origin")
	return false
}

func (g *ClientGate) cleanupLoop() {
	ticker := time.NewTicker(g.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case now := <-ticker.C:
			g.prune(now.Add(-2 * g.cfg.CleanupInterval))
		}
	}
}

// prune forgets clients idle since cutoff that hold no socket and returns
// how many are left.
func (g *ClientGate) prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	for ip, c := range g.clients {
		if c.sockets == 0 && c.lastSeen.Before(cutoff) {
			delete(g.clients, ip)
		}
	}
	return len(g.clients)
}

// GetStats returns gate counters for /api/stats.
func (g *ClientGate) GetStats() map[string]uint64 {
	g.mu.Lock()
	clients := len(g.clients)
	g.mu.Unlock()

	return map[string]uint64{
		"allowed":        g.allowed.Load(),
		"rejected":       g.rejected.Load(),
		"socketRejected": g.socketRejected.Load(),
		"frameRejected":  g.frameRejected.Load(),
		"clients":        uint64(clients),
	}
}

// GetClientIP returns the caller's IP, preferring the first X-Forwarded-For
// hop, then X-Real-IP. Both headers are trusted, so the server belongs
// behind a proxy that overwrites them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
