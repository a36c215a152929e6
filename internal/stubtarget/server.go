// Package stubtarget provides a local HTTP target with a naive signature
// WAF and a per-client rate limiter, for shaking out drills without a real
// deployment.
package stubtarget

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config controls the stub target's behavior.
type Config struct {
	// Limit is the number of requests allowed per Window per client.
	Limit int

	// Window is the rate-limit window.
	Window time.Duration

	// Username and Password accepted by the login endpoint.
	Username string
	Password string

	// Token returned on successful login.
	Token string
}

// Defaults the built-in drill is tuned for.
const (
	DefaultLimit  = 6
	DefaultWindow = time.Second
)

// DefaultConfig mirrors the thresholds the built-in drill is tuned for.
func DefaultConfig() Config {
	return Config{
		Limit:    DefaultLimit,
		Window:   DefaultWindow,
		Username: "u001",
		Password: "p",
		Token:    "stub-session-token",
	}
}

// Target is the stub HTTP handler.
type Target struct {
	config  Config
	limiter *Limiter
}

// New creates a stub target.
func New(config Config) *Target {
	if config.Limit <= 0 {
		config.Limit = DefaultConfig().Limit
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &Target{
		config:  config,
		limiter: NewLimiter(config.Limit, config.Window),
	}
}

// attackSignatures are matched case-insensitively against the inspected
// query parameters.
var attackSignatures = []string{
	"<script",
	"onerror=",
	"onload=",
	"' or '",
	"'='",
	"union select",
	"drop table",
}

// inspectedParams are the query parameters the stub WAF looks at.
var inspectedParams = []string{"search", "id", "q"}

// ServeHTTP dispatches a request through the WAF, then the limiter, then
// the routes. The signature check runs before the limiter so that attack
// probes are classified deterministically even under flood load.
func (t *Target) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.blocked(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "request blocked"})
		return
	}

	if !t.limiter.Allow(clientKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login/ldap":
		t.handleLogin(w, r)
	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// blocked reports whether any inspected query parameter carries an attack
// signature.
func (t *Target) blocked(r *http.Request) bool {
	query := r.URL.Query()
	for _, param := range inspectedParams {
		for _, value := range query[param] {
			lower := strings.ToLower(value)
			for _, sig := range attackSignatures {
				if strings.Contains(lower, sig) {
					return true
				}
			}
		}
	}
	return false
}

func (t *Target) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed credentials"})
		return
	}

	if creds.Username != t.config.Username || creds.Password != t.config.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": t.config.Token})
}

// clientKey buckets requests per client IP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ResetLimiter clears all rate-limit buckets (used between test phases).
func (t *Target) ResetLimiter() {
	t.limiter.Reset()
}
