package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill/config"
)

func minimalConfig(baseURL string) *config.DrillConfig {
	return &config.DrillConfig{
		Name: "unit drill",
		Target: config.TargetSettings{
			BaseURL: baseURL,
			Timeout: "5s",
		},
		Profiles: map[string]*config.ProfileConfig{
			"browse": {
				Executor: "constant-vus",
				VUs:      1,
				Duration: "1s",
				Tasks: []config.TaskConfig{
					{Name: "normal", Path: "/", Check: "ok"},
				},
			},
		},
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(minimalConfig("http://localhost:8080"), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if engine.IsRunning() {
		t.Errorf("Fresh engine should not be running")
	}
	if engine.GetConfig().Name != "unit drill" {
		t.Errorf("Unexpected config name: %s", engine.GetConfig().Name)
	}
	if engine.clientConfig.Timeout != 5*time.Second {
		t.Errorf("Expected 5s client timeout, got %v", engine.clientConfig.Timeout)
	}
	if !engine.clientConfig.InsecureSkipVerify {
		t.Errorf("Certificate verification should be off by default")
	}
}

func TestNewEngine_VerifyTLS(t *testing.T) {
	cfg := minimalConfig("https://localhost:8443")
	cfg.Target.VerifyTLS = true

	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if engine.clientConfig.InsecureSkipVerify {
		t.Errorf("verifyTls should re-enable certificate verification")
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := minimalConfig("http://localhost:8080")
	cfg.Profiles = nil

	if _, err := NewEngine(cfg, nil); err == nil {
		t.Errorf("Expected error for config without profiles")
	}
}

func TestNewEngine_InvalidTimeout(t *testing.T) {
	cfg := minimalConfig("http://localhost:8080")
	cfg.Target.Timeout = "soon"

	// Cross-field validation already rejects malformed timeouts.
	if _, err := NewEngine(cfg, nil); err == nil {
		t.Errorf("Expected error for malformed timeout")
	}
}

func TestJoinTarget(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		path     string
		expected string
	}{
		{
			name:     "simple path",
			baseURL:  "http://localhost:8080",
			path:     "/api/auth/login/ldap",
			expected: "http://localhost:8080/api/auth/login/ldap",
		},
		{
			name:     "trailing slash on base",
			baseURL:  "http://localhost:8080/",
			path:     "/",
			expected: "http://localhost:8080/",
		},
		{
			name:     "empty path",
			baseURL:  "http://localhost:8080",
			path:     "",
			expected: "http://localhost:8080/",
		},
		{
			name:     "missing leading slash",
			baseURL:  "http://localhost:8080",
			path:     "health",
			expected: "http://localhost:8080/health",
		},
		{
			name:     "raw payload query survives",
			baseURL:  "http://localhost:8080",
			path:     "/?search=<script>alert('WAF_TEST')</script>",
			expected: "http://localhost:8080/?search=<script>alert('WAF_TEST')</script>",
		},
		{
			name:     "pre-encoded query survives",
			baseURL:  "http://localhost:8080",
			path:     "/?id=1'%20OR%20'1'='1",
			expected: "http://localhost:8080/?id=1'%20OR%20'1'='1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(minimalConfig(tt.baseURL), nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := engine.joinTarget(tt.path); got != tt.expected {
				t.Errorf("joinTarget(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestBuildProfile(t *testing.T) {
	cfg := minimalConfig("http://localhost:8080")
	cfg.Target.Headers = map[string]string{"X-Drill": "yes"}
	cfg.Profiles["browse"] = &config.ProfileConfig{
		Executor: "constant-vus",
		VUs:      2,
		Duration: "1s",
		Login: &config.LoginConfig{
			Path:      "/api/auth/login/ldap",
			Username:  "u001",
			Password:  "p",
			TokenPath: "token",
		},
		Tasks: []config.TaskConfig{
			{Name: "normal", Weight: 10, Path: "/", Check: "ok"},
			{Weight: 2, Method: "POST", Path: "/submit", Body: "x=1", Check: ""},
		},
	}

	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	profile, err := engine.buildProfile("browse", cfg.Profiles["browse"])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if profile.Login == nil {
		t.Fatalf("Expected login on profile")
	}
	if profile.Login.Request.Method != "POST" {
		t.Errorf("Login must be a POST, got %s", profile.Login.Request.Method)
	}
	if !strings.Contains(profile.Login.Request.Body, `"username":"u001"`) {
		t.Errorf("Expected JSON credentials body, got %s", profile.Login.Request.Body)
	}
	if profile.Login.Request.Headers["Content-Type"] != "application/json" {
		t.Errorf("Login body must be sent as JSON")
	}
	if profile.Login.Request.Headers["X-Drill"] != "yes" {
		t.Errorf("Target headers must be merged into the login request")
	}
	if profile.Login.TokenPath != "token" {
		t.Errorf("Expected token path 'token', got %s", profile.Login.TokenPath)
	}

	if len(profile.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(profile.Tasks))
	}
	if profile.Tasks[0].Request.Name != "normal" {
		t.Errorf("Unexpected first task name: %s", profile.Tasks[0].Request.Name)
	}
	if profile.Tasks[1].Request.Name != "browse_task_2" {
		t.Errorf("Unnamed tasks get a generated name, got %s", profile.Tasks[1].Request.Name)
	}
	if profile.Tasks[0].Request.Method != "GET" {
		t.Errorf("Default method should be GET, got %s", profile.Tasks[0].Request.Method)
	}
	if profile.Tasks[1].Request.Method != "POST" {
		t.Errorf("Explicit method should be kept, got %s", profile.Tasks[1].Request.Method)
	}
}

func TestMergeHeaders(t *testing.T) {
	if got := mergeHeaders(nil, nil); got != nil {
		t.Errorf("Expected nil for no headers, got %v", got)
	}

	merged := mergeHeaders(
		map[string]string{"A": "base", "B": "base"},
		map[string]string{"B": "extra", "C": "extra"},
	)
	if merged["A"] != "base" || merged["B"] != "extra" || merged["C"] != "extra" {
		t.Errorf("Unexpected merge result: %v", merged)
	}
}

func TestGetProgress_NoProfiles(t *testing.T) {
	engine, err := NewEngine(minimalConfig("http://localhost:8080"), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := engine.GetProgress(); got != 0.0 {
		t.Errorf("Expected 0.0 progress before run, got %f", got)
	}
	if engine.GetMetrics() != nil {
		t.Errorf("Expected nil metrics before run")
	}
}
