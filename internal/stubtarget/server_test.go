package stubtarget

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func newTestTarget(limit int, window time.Duration) *Target {
	config := DefaultConfig()
	config.Limit = limit
	config.Window = window
	return New(config)
}

func doRequest(t *testing.T, target *Target, method, rawURL, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, rawURL, reader)
	req.RemoteAddr = "192.0.2.10:54321"
	rec := httptest.NewRecorder()
	target.ServeHTTP(rec, req)
	return rec
}

func TestTarget_NormalRequest(t *testing.T) {
	target := newTestTarget(100, time.Second)

	rec := doRequest(t, target, http.MethodGet, "http://target/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if got := gjson.Get(rec.Body.String(), "status").String(); got != "ok" {
		t.Errorf("Expected status ok body, got %s", rec.Body.String())
	}
}

func TestTarget_BlocksAttackProbes(t *testing.T) {
	target := newTestTarget(100, time.Second)

	tests := []struct {
		name string
		url  string
	}{
		{
			name: "xss script tag",
			url:  "http://target/?search=<script>alert('WAF_TEST')</script>",
		},
		{
			name: "xss uppercase tag",
			url:  "http://target/?search=<SCRIPT>alert(1)</SCRIPT>",
		},
		{
			name: "xss onerror handler",
			url:  "http://target/?q=<img%20src=x%20onerror=alert(1)>",
		},
		{
			name: "sqli tautology",
			url:  "http://target/?id=1'%20OR%20'1'='1",
		},
		{
			name: "sqli union select",
			url:  "http://target/?id=1%20UNION%20SELECT%20password%20FROM%20users",
		},
		{
			name: "sqli mixed case",
			url:  "http://target/?id=1'%20oR%20'1'='1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, target, http.MethodGet, tt.url, "")
			if rec.Code != http.StatusForbidden {
				t.Errorf("Expected 403 for %s, got %d", tt.url, rec.Code)
			}
		})
	}
}

func TestTarget_CleanParamsPass(t *testing.T) {
	target := newTestTarget(100, time.Second)

	rec := doRequest(t, target, http.MethodGet, "http://target/?search=kittens&id=42", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for clean query, got %d", rec.Code)
	}
}

func TestTarget_RateLimits(t *testing.T) {
	target := newTestTarget(6, time.Minute)

	for i := 0; i < 6; i++ {
		rec := doRequest(t, target, http.MethodGet, "http://target/", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d should pass, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(t, target, http.MethodGet, "http://target/", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Request 7 should be limited, got %d", rec.Code)
	}
}

func TestTarget_BlockRunsBeforeLimiter(t *testing.T) {
	target := newTestTarget(2, time.Minute)

	// Exhaust the client's bucket.
	doRequest(t, target, http.MethodGet, "http://target/", "")
	doRequest(t, target, http.MethodGet, "http://target/", "")
	rec := doRequest(t, target, http.MethodGet, "http://target/", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected limiter engaged, got %d", rec.Code)
	}

	// Attack probes still get the WAF verdict, not a 429.
	rec = doRequest(t, target, http.MethodGet, "http://target/?search=<script>x</script>", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Probe under flood should still get 403, got %d", rec.Code)
	}
}

func TestTarget_PerClientBuckets(t *testing.T) {
	target := newTestTarget(1, time.Minute)

	reqA := httptest.NewRequest(http.MethodGet, "http://target/", nil)
	reqA.RemoteAddr = "192.0.2.10:1111"
	recA := httptest.NewRecorder()
	target.ServeHTTP(recA, reqA)

	reqA2 := httptest.NewRequest(http.MethodGet, "http://target/", nil)
	reqA2.RemoteAddr = "192.0.2.10:2222"
	recA2 := httptest.NewRecorder()
	target.ServeHTTP(recA2, reqA2)

	// Same IP, different port: shares the bucket.
	if recA2.Code != http.StatusTooManyRequests {
		t.Errorf("Same client IP should share a bucket, got %d", recA2.Code)
	}

	reqB := httptest.NewRequest(http.MethodGet, "http://target/", nil)
	reqB.RemoteAddr = "192.0.2.20:3333"
	recB := httptest.NewRecorder()
	target.ServeHTTP(recB, reqB)

	if recB.Code != http.StatusOK {
		t.Errorf("Different client IP should have its own bucket, got %d", recB.Code)
	}
}

func TestTarget_Login(t *testing.T) {
	target := newTestTarget(100, time.Second)

	rec := doRequest(t, target, http.MethodPost, "http://target/api/auth/login/ldap",
		`{"username": "u001", "password": "p"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for valid credentials, got %d", rec.Code)
	}

	token := gjson.Get(rec.Body.String(), "token").String()
	if token != "stub-session-token" {
		t.Errorf("Expected stub-session-token, got %q", token)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json content type, got %s", ct)
	}
}

func TestTarget_LoginRejections(t *testing.T) {
	target := newTestTarget(100, time.Second)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{
			name:     "wrong password",
			body:     `{"username": "u001", "password": "wrong"}`,
			expected: http.StatusUnauthorized,
		},
		{
			name:     "unknown user",
			body:     `{"username": "mallory", "password": "p"}`,
			expected: http.StatusUnauthorized,
		},
		{
			name:     "malformed body",
			body:     `not json`,
			expected: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, target, http.MethodPost, "http://target/api/auth/login/ldap", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestTarget_MethodNotAllowed(t *testing.T) {
	target := newTestTarget(100, time.Second)

	rec := doRequest(t, target, http.MethodDelete, "http://target/", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestTarget_ResetLimiter(t *testing.T) {
	target := newTestTarget(1, time.Minute)

	doRequest(t, target, http.MethodGet, "http://target/", "")
	rec := doRequest(t, target, http.MethodGet, "http://target/", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected limiter engaged, got %d", rec.Code)
	}

	target.ResetLimiter()
	rec = doRequest(t, target, http.MethodGet, "http://target/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected fresh bucket after reset, got %d", rec.Code)
	}
}

func TestNew_ClampsInvalidConfig(t *testing.T) {
	target := New(Config{})
	if target.config.Limit != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, target.config.Limit)
	}
	if target.config.Window != DefaultWindow {
		t.Errorf("Expected default window %v, got %v", DefaultWindow, target.config.Window)
	}
}
