package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultDrill(t *testing.T) {
	config := DefaultDrill("http://localhost:8080", 5, 20, 2*time.Minute)

	if err := config.Validate(); err != nil {
		t.Fatalf("Default drill must validate, got: %v", err)
	}

	browse, ok := config.Profiles["browse"]
	if !ok {
		t.Fatalf("Expected browse profile")
	}
	if browse.VUs != 5 {
		t.Errorf("Expected 5 browse VUs, got %d", browse.VUs)
	}
	if browse.Login == nil || browse.Login.Path != DefaultLoginPath {
		t.Errorf("Expected login against %s", DefaultLoginPath)
	}
	if browse.Login.Username != DefaultUsername || browse.Login.Password != DefaultPassword {
		t.Errorf("Unexpected default credentials: %s/%s", browse.Login.Username, browse.Login.Password)
	}
	if browse.Pacing == nil || browse.Pacing.Type != "random" || browse.Pacing.Min != "100ms" || browse.Pacing.Max != "500ms" {
		t.Errorf("Expected 100ms-500ms random pacing, got %+v", browse.Pacing)
	}
	if len(browse.Tasks) != 3 {
		t.Fatalf("Expected 3 browse tasks, got %d", len(browse.Tasks))
	}
	if browse.Tasks[0].Weight != 10 || browse.Tasks[1].Weight != 2 || browse.Tasks[2].Weight != 2 {
		t.Errorf("Expected 10/2/2 task weights")
	}
	if !strings.Contains(browse.Tasks[1].Path, "<script>alert('WAF_TEST')</script>") {
		t.Errorf("Expected XSS probe path, got %s", browse.Tasks[1].Path)
	}
	if strings.Contains(browse.Tasks[1].Path, " ") {
		t.Errorf("Probe path must not contain raw spaces: %s", browse.Tasks[1].Path)
	}
	if browse.Tasks[2].Path != "/?id=1'%20OR%20'1'='1" {
		t.Errorf("Unexpected SQLi probe path: %s", browse.Tasks[2].Path)
	}

	flood, ok := config.Profiles["flood"]
	if !ok {
		t.Fatalf("Expected flood profile")
	}
	if flood.VUs != 20 {
		t.Errorf("Expected 20 flood VUs, got %d", flood.VUs)
	}
	if flood.Pacing == nil || flood.Pacing.Type != "none" {
		t.Errorf("Flood profile must run unpaced")
	}
	if len(flood.Tasks) != 1 || flood.Tasks[0].Check != "limit-hit" {
		t.Errorf("Expected single limit-hit flood task")
	}

	if exprs := config.Thresholds["waf_bypass"]; len(exprs) != 1 || exprs[0] != "count == 0" {
		t.Errorf("Expected waf_bypass threshold 'count == 0', got %v", exprs)
	}
	if exprs := config.Thresholds["limit_engaged"]; len(exprs) != 1 || exprs[0] != "count > 0" {
		t.Errorf("Expected limit_engaged threshold 'count > 0', got %v", exprs)
	}
}

func TestDefaultDrill_FallbackValues(t *testing.T) {
	config := DefaultDrill("http://localhost:8080", 0, -1, 0)

	if config.Profiles["browse"].VUs != DefaultBrowseVUs {
		t.Errorf("Expected fallback to %d browse VUs, got %d", DefaultBrowseVUs, config.Profiles["browse"].VUs)
	}
	if config.Profiles["flood"].VUs != DefaultFloodVUs {
		t.Errorf("Expected fallback to %d flood VUs, got %d", DefaultFloodVUs, config.Profiles["flood"].VUs)
	}

	want := (DefaultDrillMinutes * time.Minute).String()
	if config.Profiles["browse"].Duration != want {
		t.Errorf("Expected fallback duration %s, got %s", want, config.Profiles["browse"].Duration)
	}
}
