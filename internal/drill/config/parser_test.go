package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_YAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "drill.yaml")

	configContent := `
name: "WAF & rate-limit drill"
description: "staging defenses"
target:
  baseUrl: "https://app.internal:8443"
  timeout: 10s
profiles:
  browse:
    executor: constant-vus
    vus: 5
    duration: 2m
    pacing:
      type: random
      min: 100ms
      max: 500ms
    login:
      path: /api/auth/login/ldap
      username: u001
      password: p
      tokenPath: token
    tasks:
      - name: normal
        weight: 10
        path: /
        check: ok
      - name: xss-probe
        weight: 2
        path: "/?search=<script>alert('WAF_TEST')</script>"
        check: waf-block
  flood:
    executor: constant-vus
    vus: 20
    duration: 2m
    pacing:
      type: none
    tasks:
      - name: hammer
        path: /
        check: limit-hit
thresholds:
  waf_bypass:
    - "count == 0"
  limit_engaged:
    - "count > 0"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Error creating test config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Error loading config: %v", err)
	}

	if config.Name != "WAF & rate-limit drill" {
		t.Errorf("Expected name 'WAF & rate-limit drill', got %q", config.Name)
	}
	if config.Target.BaseURL != "https://app.internal:8443" {
		t.Errorf("Expected baseUrl https://app.internal:8443, got %s", config.Target.BaseURL)
	}
	if len(config.Profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(config.Profiles))
	}

	browse, ok := config.Profiles["browse"]
	if !ok {
		t.Fatalf("Expected browse profile to exist")
	}
	if browse.Executor != "constant-vus" {
		t.Errorf("Expected browse executor constant-vus, got %s", browse.Executor)
	}
	if browse.VUs != 5 {
		t.Errorf("Expected 5 browse VUs, got %d", browse.VUs)
	}
	if browse.Pacing == nil || browse.Pacing.Type != "random" {
		t.Errorf("Expected random pacing on browse profile")
	}
	if browse.Login == nil {
		t.Fatalf("Expected browse login config")
	}
	if browse.Login.Path != "/api/auth/login/ldap" {
		t.Errorf("Expected login path /api/auth/login/ldap, got %s", browse.Login.Path)
	}
	if browse.Login.TokenPath != "token" {
		t.Errorf("Expected token path 'token', got %s", browse.Login.TokenPath)
	}
	if len(browse.Tasks) != 2 {
		t.Fatalf("Expected 2 browse tasks, got %d", len(browse.Tasks))
	}
	if browse.Tasks[1].Path != "/?search=<script>alert('WAF_TEST')</script>" {
		t.Errorf("Expected raw probe path to survive parsing, got %s", browse.Tasks[1].Path)
	}
	if browse.Tasks[1].Check != "waf-block" {
		t.Errorf("Expected waf-block check, got %s", browse.Tasks[1].Check)
	}

	flood, ok := config.Profiles["flood"]
	if !ok {
		t.Fatalf("Expected flood profile to exist")
	}
	if flood.Pacing == nil || flood.Pacing.Type != "none" {
		t.Errorf("Expected flood profile with no pacing")
	}
	if len(flood.Tasks) != 1 || flood.Tasks[0].Check != "limit-hit" {
		t.Errorf("Expected single limit-hit flood task")
	}

	if len(config.Thresholds) != 2 {
		t.Errorf("Expected 2 threshold entries, got %d", len(config.Thresholds))
	}
	if exprs := config.Thresholds["waf_bypass"]; len(exprs) != 1 || exprs[0] != "count == 0" {
		t.Errorf("Expected waf_bypass threshold 'count == 0', got %v", exprs)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "drill.json")

	configContent := `{
		"name": "json drill",
		"target": {"baseUrl": "http://localhost:8080"},
		"profiles": {
			"ramp": {
				"executor": "ramping-vus",
				"stages": [
					{"duration": "30s", "target": 10, "name": "warm"},
					{"duration": "1m", "target": 0}
				],
				"tasks": [
					{"name": "probe", "path": "/?id=1'%20OR%20'1'='1", "check": "waf-block"}
				]
			}
		}
	}`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Error creating test config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Error loading config: %v", err)
	}

	ramp, ok := config.Profiles["ramp"]
	if !ok {
		t.Fatalf("Expected ramp profile to exist")
	}
	if len(ramp.Stages) != 2 {
		t.Fatalf("Expected 2 stages, got %d", len(ramp.Stages))
	}
	if ramp.Stages[0].Target != 10 || ramp.Stages[0].Name != "warm" {
		t.Errorf("Unexpected first stage: %+v", ramp.Stages[0])
	}
	if ramp.Tasks[0].Path != "/?id=1'%20OR%20'1'='1" {
		t.Errorf("Expected pre-encoded probe path to survive parsing, got %s", ramp.Tasks[0].Path)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("non-existent-drill.yaml")
	if err == nil {
		t.Errorf("Expected error for non-existent file, got nil")
	}
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("profiles: [not: valid"), "drill.yaml")
	if err == nil {
		t.Errorf("Expected error for invalid YAML, got nil")
	}
}

func TestParseConfig_InvalidJSON(t *testing.T) {
	_, err := ParseConfig([]byte(`{ this is not valid json }`), "drill.json")
	if err == nil {
		t.Errorf("Expected error for invalid JSON, got nil")
	}
}

func TestParseConfig_FailsCrossFieldValidation(t *testing.T) {
	// Schema-valid but semantically broken: constant-vus without vus/duration.
	doc := `
profiles:
  broken:
    executor: constant-vus
    tasks:
      - path: /
`
	_, err := ParseConfig([]byte(doc), "drill.yaml")
	if err == nil {
		t.Fatalf("Expected validation error, got nil")
	}
	if _, ok := err.(*ValidationErrors); !ok {
		t.Errorf("Expected *ValidationErrors, got %T: %v", err, err)
	}
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		{
			name:     "seconds shorthand",
			input:    "30s",
			expected: 30 * time.Second,
		},
		{
			name:     "minutes shorthand",
			input:    "2m",
			expected: 2 * time.Minute,
		},
		{
			name:     "combined duration",
			input:    "1h30m",
			expected: 90 * time.Minute,
		},
		{
			name:     "milliseconds",
			input:    "250ms",
			expected: 250 * time.Millisecond,
		},
		{
			name:     "bare integer is seconds",
			input:    "45",
			expected: 45 * time.Second,
		},
		{
			name:     "empty string is zero",
			input:    "",
			expected: 0,
		},
		{
			name:        "invalid format",
			input:       "soon",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDurationString(tt.input)
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if !tt.expectError && result != tt.expected {
				t.Errorf("Expected %v but got %v", tt.expected, result)
			}
		})
	}
}

func TestTotalDuration(t *testing.T) {
	tests := []struct {
		name     string
		config   *DrillConfig
		expected time.Duration
	}{
		{
			name:     "no profiles",
			config:   &DrillConfig{},
			expected: 0,
		},
		{
			name: "longest profile wins",
			config: &DrillConfig{
				Profiles: map[string]*ProfileConfig{
					"short": {Duration: "30s"},
					"long":  {Duration: "2m"},
				},
			},
			expected: 2 * time.Minute,
		},
		{
			name: "stages are summed",
			config: &DrillConfig{
				Profiles: map[string]*ProfileConfig{
					"ramp": {
						Duration: "10s", // ignored when stages are set
						Stages: []StageConfig{
							{Duration: "30s", Target: 10},
							{Duration: "1m", Target: 0},
						},
					},
				},
			},
			expected: 90 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.TotalDuration(); got != tt.expected {
				t.Errorf("TotalDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMaxVUs(t *testing.T) {
	config := &DrillConfig{
		Profiles: map[string]*ProfileConfig{
			"browse": {VUs: 5},
			"flood":  {VUs: 20},
			"ramp": {
				Stages: []StageConfig{
					{Duration: "30s", Target: 35},
					{Duration: "30s", Target: 0},
				},
			},
		},
	}

	if got := config.MaxVUs(); got != 35 {
		t.Errorf("MaxVUs() = %d, want 35", got)
	}

	empty := &DrillConfig{}
	if got := empty.MaxVUs(); got != 0 {
		t.Errorf("MaxVUs() on empty config = %d, want 0", got)
	}
}
