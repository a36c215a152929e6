package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wafdrill/wafdrill/internal/drill"
	"github.com/wafdrill/wafdrill/internal/drill/executor"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire drill configuration.
//
// Returns nil if valid, or a ValidationErrors containing all errors found.
func (c *DrillConfig) Validate() error {
	errs := &ValidationErrors{}

	validateTarget(&c.Target, errs)

	if len(c.Profiles) == 0 {
		errs.Add("profiles", "at least one profile is required")
	}
	for name, profile := range c.Profiles {
		validateProfile(name, profile, errs)
	}

	for key, exprs := range c.Thresholds {
		if len(exprs) == 0 {
			errs.Add("thresholds."+key, "at least one expression is required")
		}
		for _, expr := range exprs {
			if strings.TrimSpace(expr) == "" {
				errs.Add("thresholds."+key, "empty threshold expression")
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateTarget(t *TargetSettings, errs *ValidationErrors) {
	if t.BaseURL == "" {
		errs.Add("target.baseUrl", "target base URL is required")
		return
	}

	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add("target.baseUrl", fmt.Sprintf("invalid base URL: %s", t.BaseURL))
	}

	if t.Timeout != "" {
		if _, err := ParseDurationString(t.Timeout); err != nil {
			errs.Add("target.timeout", err.Error())
		}
	}
}

func validateProfile(name string, p *ProfileConfig, errs *ValidationErrors) {
	prefix := fmt.Sprintf("profiles.%s", name)

	if p.Executor == "" {
		errs.Add(prefix+".executor", "executor type is required")
	} else if !executor.IsValidExecutorType(p.Executor) {
		errs.Add(prefix+".executor", fmt.Sprintf("unknown executor type: %s", p.Executor))
	}

	switch executor.Type(p.Executor) {
	case executor.TypeConstantVUs:
		if p.VUs <= 0 {
			errs.Add(prefix+".vus", "vus must be > 0")
		}
		if p.Duration == "" {
			errs.Add(prefix+".duration", "duration is required")
		} else if _, err := ParseDurationString(p.Duration); err != nil {
			errs.Add(prefix+".duration", err.Error())
		}

	case executor.TypeRampingVUs:
		if len(p.Stages) == 0 {
			errs.Add(prefix+".stages", "at least one stage is required")
		}
		for i, stage := range p.Stages {
			field := fmt.Sprintf("%s.stages[%d]", prefix, i)
			if _, err := ParseDurationString(stage.Duration); err != nil || stage.Duration == "" {
				errs.Add(field+".duration", "valid stage duration is required")
			}
			if stage.Target < 0 {
				errs.Add(field+".target", "target must be >= 0")
			}
		}
	}

	if p.GracefulStop != "" {
		if _, err := ParseDurationString(p.GracefulStop); err != nil {
			errs.Add(prefix+".gracefulStop", err.Error())
		}
	}

	if p.Pacing != nil {
		validatePacing(prefix+".pacing", p.Pacing, errs)
	}

	if p.Login != nil && p.Login.Path == "" {
		errs.Add(prefix+".login.path", "login path is required")
	}

	if len(p.Tasks) == 0 {
		errs.Add(prefix+".tasks", "at least one task is required")
	}
	for i, task := range p.Tasks {
		field := fmt.Sprintf("%s.tasks[%d]", prefix, i)
		if task.Path == "" {
			errs.Add(field+".path", "task path is required")
		}
		if task.Weight < 0 {
			errs.Add(field+".weight", "weight must be >= 0")
		}
		if _, err := drill.CheckPreset(task.Check); err != nil {
			errs.Add(field+".check", err.Error())
		}
	}
}

func validatePacing(field string, p *PacingConfig, errs *ValidationErrors) {
	switch p.Type {
	case "none":
	case "constant":
		if p.Duration == "" {
			errs.Add(field+".duration", "constant pacing requires a duration")
		} else if _, err := ParseDurationString(p.Duration); err != nil {
			errs.Add(field+".duration", err.Error())
		}
	case "random":
		min, errMin := ParseDurationString(p.Min)
		max, errMax := ParseDurationString(p.Max)
		if errMin != nil {
			errs.Add(field+".min", errMin.Error())
		}
		if errMax != nil {
			errs.Add(field+".max", errMax.Error())
		}
		if errMin == nil && errMax == nil && max < min {
			errs.Add(field, "pacing max must be >= min")
		}
	case "":
		errs.Add(field+".type", "pacing type is required")
	default:
		errs.Add(field+".type", fmt.Sprintf("unknown pacing type: %s", p.Type))
	}
}
