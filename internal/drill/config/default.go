package config

import (
	"fmt"
	"time"

	"github.com/wafdrill/wafdrill/internal/payload"
)

// Built-in drill defaults.
const (
	DefaultLoginPath    = "/api/auth/login/ldap"
	DefaultUsername     = "u001"
	DefaultPassword     = "p"
	DefaultBrowseVUs    = 5
	DefaultFloodVUs     = 20
	DefaultDrillMinutes = 2
)

// DefaultDrill assembles the built-in drill: an authenticated browsing
// profile that mixes benign traffic with XSS and SQL-injection probes
// (weights 10/2/2, think time 100-500ms), and a flood profile with no
// self-restraint that expects the rate limiter to engage.
func DefaultDrill(baseURL string, users, floodUsers int, duration time.Duration) *DrillConfig {
	if users <= 0 {
		users = DefaultBrowseVUs
	}
	if floodUsers <= 0 {
		floodUsers = DefaultFloodVUs
	}
	if duration <= 0 {
		duration = DefaultDrillMinutes * time.Minute
	}
	durationStr := duration.String()

	return &DrillConfig{
		Name:        "WAF & rate-limit drill",
		Description: fmt.Sprintf("Built-in defense drill against %s", baseURL),
		Target: TargetSettings{
			BaseURL: baseURL,
			Timeout: "10s",
		},
		Profiles: map[string]*ProfileConfig{
			"browse": {
				Executor: "constant-vus",
				VUs:      users,
				Duration: durationStr,
				Pacing: &PacingConfig{
					Type: "random",
					Min:  "100ms",
					Max:  "500ms",
				},
				Login: &LoginConfig{
					Path:      DefaultLoginPath,
					Username:  DefaultUsername,
					Password:  DefaultPassword,
					TokenPath: "token",
				},
				Tasks: []TaskConfig{
					{
						Name:   "normal",
						Weight: 10,
						Path:   "/",
						Check:  "ok",
					},
					{
						Name:   "xss-probe",
						Weight: 2,
						Path:   "/?search=" + payload.QueryEncode(payload.XSSCanonical),
						Check:  "waf-block",
					},
					{
						Name:   "sqli-probe",
						Weight: 2,
						Path:   "/?id=" + payload.QueryEncode(payload.SQLiCanonical),
						Check:  "waf-block",
					},
				},
			},
			"flood": {
				Executor: "constant-vus",
				VUs:      floodUsers,
				Duration: durationStr,
				Pacing:   &PacingConfig{Type: "none"},
				Tasks: []TaskConfig{
					{
						Name:  "hammer",
						Path:  "/",
						Check: "limit-hit",
					},
				},
			},
		},
		Thresholds: map[string][]string{
			"waf_bypass":    {"count == 0"},
			"limit_engaged": {"count > 0"},
		},
	}
}
