// Package config provides configuration parsing and validation for drills.
package config

// DrillConfig is the root configuration for a drill run.
//
// Example YAML:
//
//	name: "WAF & rate-limit drill"
//	target:
//	  baseUrl: "https://app.internal:8443"
//	  timeout: 10s
//	profiles:
//	  browse:
//	    executor: constant-vus
//	    vus: 5
//	    duration: 2m
//	    pacing: {type: random, min: 100ms, max: 500ms}
//	    login:
//	      path: /api/auth/login/ldap
//	      username: u001
//	      password: p
//	    tasks:
//	      - name: normal
//	        weight: 10
//	        path: /
//	        check: ok
type DrillConfig struct {
	// Name of the drill (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the drill (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Target contains global settings for the system under test
	Target TargetSettings `json:"target" yaml:"target"`

	// Profiles defines the traffic profiles to run
	// Each profile runs independently with its own executor
	Profiles map[string]*ProfileConfig `json:"profiles" yaml:"profiles"`

	// Thresholds define pass/fail criteria, keyed by security counter name
	// or the special key "latency"
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// TargetSettings contains global HTTP settings for the target.
type TargetSettings struct {
	// BaseURL is the base URL all task paths are resolved against
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// Timeout is the HTTP request timeout (e.g., "10s")
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// VerifyTLS re-enables certificate verification. Off by default:
	// drill targets commonly present self-signed certificates.
	VerifyTLS bool `json:"verifyTls,omitempty" yaml:"verifyTls,omitempty"`

	// Headers are default headers applied to all requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ProfileConfig defines a single traffic profile.
type ProfileConfig struct {
	// Executor specifies the load generation strategy
	// Options: "constant-vus", "ramping-vus"
	Executor string `json:"executor" yaml:"executor"`

	// VUs is the number of simulated sessions (for constant-vus)
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Duration is how long to run (e.g., "30s", "2m")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Stages defines ramping stages (for ramping-vus)
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// GracefulStop is how long to wait for iterations to finish
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Pacing controls the pause between iterations
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// Login is the optional one-shot session-start authentication
	Login *LoginConfig `json:"login,omitempty" yaml:"login,omitempty"`

	// Tasks defines the weighted request templates
	Tasks []TaskConfig `json:"tasks" yaml:"tasks"`
}

// StageConfig defines a single stage in a ramping executor.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	// Type is the pacing strategy: "none", "constant", "random"
	Type string `json:"type" yaml:"type"`

	// Duration is the wait time for constant pacing
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min is the minimum wait time for random pacing
	Min string `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the maximum wait time for random pacing
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// LoginConfig defines the session-start authentication request.
type LoginConfig struct {
	// Path of the login endpoint, resolved against the target base URL
	Path string `json:"path" yaml:"path"`

	// Username and Password form the JSON credentials body
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// TokenPath is an optional gjson path into the login response; when it
	// yields a value, tasks carry it as a bearer Authorization header
	TokenPath string `json:"tokenPath,omitempty" yaml:"tokenPath,omitempty"`
}

// TaskConfig defines one weighted request template of a profile.
type TaskConfig struct {
	// Name for this task (used in metrics)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Weight is the relative selection weight (default 1)
	Weight int `json:"weight,omitempty" yaml:"weight,omitempty"`

	// Method is the HTTP method (default GET)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Path is resolved against the target base URL; it may carry a raw
	// attack payload in its query string
	Path string `json:"path" yaml:"path"`

	// Body is the raw request body
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Headers are task-specific headers
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Check names the verdict preset: "ok", "waf-block", "limit-hit"
	Check string `json:"check,omitempty" yaml:"check,omitempty"`
}
