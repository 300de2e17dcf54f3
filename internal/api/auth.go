package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// Session cookie name
	SessionCookieName = "ink_blade_operator"

	// Session duration
	SessionDuration = 12 * time.Hour

	// Cookie settings
	CookieHTTPOnly = true
	CookieSameSite = http.SameSiteStrictMode
)

// OperatorSession is an authenticated operator login.
type OperatorSession struct {
	RemoteIP  string    `json:"remote_ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OperatorAuth guards routes that change the running server, such as
// switching the tuning tier. A request is authorized by a bearer token or
// by a signed session cookie obtained through HandleLogin. With no token
// configured every request is allowed.
type OperatorAuth struct {
	mu sync.RWMutex

	// Active sessions (sessionID -> session)
	sessions map[string]*OperatorSession

	// Secret key for signing session cookies
	secretKey []byte

	// tokenSum is the SHA-256 of the operator token; nil disables auth.
	tokenSum []byte

	secureCookie bool
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewOperatorAuth creates the guard. Session cleanup only runs when a
// token is set.
func NewOperatorAuth(token string, secureCookie bool) *OperatorAuth {
	// Generate random secret key for this instance
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		log.Printf("⚠️ Failed to generate session key, operator logins disabled")
		secretKey = nil
	}

	oa := &OperatorAuth{
		sessions:     make(map[string]*OperatorSession),
		secretKey:    secretKey,
		secureCookie: secureCookie,
		stopChan:     make(chan struct{}),
	}
	if token != "" {
		sum := sha256.Sum256([]byte(token))
		oa.tokenSum = sum[:]
		go oa.cleanupExpiredSessions()
	}
	return oa
}

// Enabled reports whether a token is configured.
func (oa *OperatorAuth) Enabled() bool { return oa.tokenSum != nil }

// Stop ends the cleanup goroutine.
func (oa *OperatorAuth) Stop() {
	oa.stopOnce.Do(func() { close(oa.stopChan) })
}

// checkToken compares in constant time regardless of length.
func (oa *OperatorAuth) checkToken(candidate string) bool {
	if !oa.Enabled() || candidate == "" {
		return false
	}
	sum := sha256.Sum256([]byte(candidate))
	return hmac.Equal(sum[:], oa.tokenSum)
}

// CreateSession creates a new operator session
func (oa *OperatorAuth) CreateSession(remoteIP string) (string, error) {
	if oa.secretKey == nil {
		return "", fmt.Errorf("operator sessions unavailable")
	}
	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	oa.mu.Lock()
	oa.sessions[sessionID] = &OperatorSession{
		RemoteIP:  remoteIP,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(SessionDuration),
	}
	oa.mu.Unlock()

	log.Printf("🔐 Operator session created from %s", remoteIP)
	return sessionID, nil
}

// GetSession retrieves a live session by ID
func (oa *OperatorAuth) GetSession(sessionID string) *OperatorSession {
	oa.mu.RLock()
	defer oa.mu.RUnlock()

	session, exists := oa.sessions[sessionID]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil
	}
	return session
}

// DeleteSession removes a session
func (oa *OperatorAuth) DeleteSession(sessionID string) {
	oa.mu.Lock()
	defer oa.mu.Unlock()
	delete(oa.sessions, sessionID)
}

// ValidateSession returns the session carried by the request cookie
func (oa *OperatorAuth) ValidateSession(r *http.Request) *OperatorSession {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	sessionID, err := oa.decodeCookie(cookie.Value)
	if err != nil {
		return nil
	}
	return oa.GetSession(sessionID)
}

// Authorized reports whether the request may use operator routes
func (oa *OperatorAuth) Authorized(r *http.Request) bool {
	if !oa.Enabled() {
		return true
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && oa.checkToken(bearer) {
		return true
	}
	return oa.ValidateSession(r) != nil
}

// SetSessionCookie sets the session cookie on the response
func (oa *OperatorAuth) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    oa.encodeCookie(sessionID),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: CookieHTTPOnly,
		Secure:   oa.secureCookie,
		SameSite: CookieSameSite,
	})
}

// ClearSessionCookie removes the session cookie
func (oa *OperatorAuth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: CookieHTTPOnly,
		Secure:   oa.secureCookie,
		SameSite: CookieSameSite,
	})
}

// encodeCookie creates a signed cookie value: base64(sessionID.signature)
func (oa *OperatorAuth) encodeCookie(sessionID string) string {
	mac := hmac.New(sha256.New, oa.secretKey)
	mac.Write([]byte(sessionID))
	signature := hex.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(sessionID + "." + signature))
}

// decodeCookie verifies and extracts the session ID from cookie
func (oa *OperatorAuth) decodeCookie(cookieValue string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(cookieValue)
	if err != nil {
		return "", fmt.Errorf("invalid cookie encoding")
	}

	sessionID, providedSig, ok := strings.Cut(string(decoded), ".")
	if !ok {
		return "", fmt.Errorf("invalid cookie format")
	}

	mac := hmac.New(sha256.New, oa.secretKey)
	mac.Write([]byte(sessionID))
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(providedSig), []byte(expectedSig)) {
		return "", fmt.Errorf("invalid cookie signature")
	}
	return sessionID, nil
}

// cleanupExpiredSessions removes expired sessions periodically
func (oa *OperatorAuth) cleanupExpiredSessions() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-oa.stopChan:
			return
		case <-ticker.C:
			oa.mu.Lock()
			now := time.Now()
			for id, session := range oa.sessions {
				if now.After(session.ExpiresAt) {
					delete(oa.sessions, id)
				}
			}
			oa.mu.Unlock()
		}
	}
}

// generateSessionID creates a cryptographically random session ID
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Middleware rejects unauthorized requests with a JSON 401
func (oa *OperatorAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !oa.Authorized(r) {
			RecordConnectionRejected("unauthorized")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "unauthorized",
				"message": "Operator authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthStatus is the body of the status and login endpoints
type AuthStatus struct {
	Enabled       bool  `json:"enabled"`
	Authenticated bool  `json:"authenticated"`
	ExpiresAt     int64 `json:"expires_at,omitempty"`
}

// HandleLogin exchanges the operator token for a session cookie
func (oa *OperatorAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !oa.Enabled() {
		writeJSON(w, AuthStatus{Enabled: false, Authenticated: true})
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !oa.checkToken(req.Token) {
		RecordConnectionRejected("unauthorized")
		log.Printf("⚠️ Operator login rejected from %s", GetClientIP(r))
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := oa.CreateSession(GetClientIP(r))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	oa.SetSessionCookie(w, sessionID)
	writeJSON(w, AuthStatus{
		Enabled:       true,
		Authenticated: true,
		ExpiresAt:     time.Now().Add(SessionDuration).Unix(),
	})
}

// HandleAuthStatus returns current auth status
func (oa *OperatorAuth) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status := AuthStatus{Enabled: oa.Enabled(), Authenticated: !oa.Enabled()}
	if session := oa.ValidateSession(r); session != nil {
		status.Authenticated = true
		status.ExpiresAt = session.ExpiresAt.Unix()
	}
	writeJSON(w, status)
}

// HandleLogout clears the session
func (oa *OperatorAuth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sessionID, err := oa.decodeCookie(cookie.Value); err == nil {
			oa.DeleteSession(sessionID)
		}
	}
	oa.ClearSessionCookie(w)
	writeJSON(w, map[string]bool{"success": true})
}
