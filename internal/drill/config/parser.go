package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads a drill configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is validated against the embedded JSON Schema before
// decoding, then cross-field validated.
func LoadConfig(path string) (*DrillConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to
// YAML if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*DrillConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if err := ValidateDocument(data, ext); err != nil {
		return nil, err
	}

	var config DrillConfig
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	if _, err := fmt.Sscanf(s, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// TotalDuration returns the longest profile duration of the drill.
func (c *DrillConfig) TotalDuration() time.Duration {
	var maxDuration time.Duration

	for _, profile := range c.Profiles {
		var d time.Duration

		if len(profile.Stages) > 0 {
			for _, stage := range profile.Stages {
				if sd, err := ParseDurationString(stage.Duration); err == nil {
					d += sd
				}
			}
		} else if profile.Duration != "" {
			if pd, err := ParseDurationString(profile.Duration); err == nil {
				d = pd
			}
		}

		if d > maxDuration {
			maxDuration = d
		}
	}

	return maxDuration
}

// MaxVUs returns the largest VU target configured across profiles.
func (c *DrillConfig) MaxVUs() int {
	maxVUs := 0
	for _, profile := range c.Profiles {
		if profile.VUs > maxVUs {
			maxVUs = profile.VUs
		}
		for _, stage := range profile.Stages {
			if stage.Target > maxVUs {
				maxVUs = stage.Target
			}
		}
	}
	return maxVUs
}
