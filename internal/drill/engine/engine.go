// Package engine orchestrates a drill run: it builds traffic profiles from
// configuration, runs their executors concurrently, and evaluates the
// pass/fail thresholds.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill"
	"github.com/wafdrill/wafdrill/internal/drill/config"
	"github.com/wafdrill/wafdrill/internal/drill/executor"
	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// Engine is the orchestrator for a drill run.
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("drill.yaml")
//	eng, _ := engine.NewEngine(cfg, nil)
//	result, _ := eng.Run(context.Background())
//	fmt.Printf("Drill passed: %v\n", result.Passed)
type Engine struct {
	// Configuration
	config *config.DrillConfig

	// Metrics engine (shared across all profiles)
	metricsEngine *metrics.Engine

	// Events receives run and session notifications
	events drill.EventSink

	// HTTP client configuration
	clientConfig drill.ClientConfig

	// Profile runners
	profiles map[string]*ProfileRunner
	mu       sync.RWMutex

	// State
	startTime time.Time
	running   bool
}

// ProfileRunner manages the execution of a single traffic profile.
type ProfileRunner struct {
	Name      string
	Config    *config.ProfileConfig
	Executor  executor.Executor
	Scheduler *drill.Scheduler
	Profile   *drill.Profile
	Result    *ProfileResult
}

// ProfileResult contains the results of a single profile.
type ProfileResult struct {
	Name       string        `json:"name"`
	Executor   string        `json:"executor"`
	Duration   time.Duration `json:"duration"`
	Iterations int64         `json:"iterations"`
	ActiveVUs  int           `json:"activeVUs"`
	Error      error         `json:"error,omitempty"`
}

// Result contains the complete drill results.
type Result struct {
	// Drill metadata
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	// Profile results
	Profiles map[string]*ProfileResult `json:"profiles"`

	// Aggregated metrics across all profiles
	Metrics *metrics.Snapshot `json:"metrics"`

	// Per-task verdict statistics
	TaskStats map[string]metrics.TaskStats `json:"taskStats,omitempty"`

	// Threshold evaluation
	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Error if the drill failed catastrophically
	Error error `json:"error,omitempty"`
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// WriteJSON writes the result as indented JSON.
func (r *Result) WriteJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// NewEngine creates a drill engine.
//
// A nil events sink disables notifications.
func NewEngine(cfg *config.DrillConfig, events drill.EventSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if events == nil {
		events = drill.NopSink{}
	}

	clientConfig := drill.DefaultClientConfig()
	clientConfig.InsecureSkipVerify = !cfg.Target.VerifyTLS
	if cfg.Target.Timeout != "" {
		timeout, err := config.ParseDurationString(cfg.Target.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid target timeout: %w", err)
		}
		if timeout > 0 {
			clientConfig.Timeout = timeout
		}
	}

	return &Engine{
		config:       cfg,
		events:       events,
		clientConfig: clientConfig,
		profiles:     make(map[string]*ProfileRunner),
	}, nil
}

// Run executes all profiles concurrently and returns the drill results.
//
// The context can be used for cancellation - all profiles stop gracefully
// if the context is cancelled.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.metricsEngine = metrics.NewEngine()

	e.events.RunStarted(e.config.Name)

	if err := e.initializeProfiles(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize profiles: %w", err)
	}

	profileResults, runErr := e.runProfiles(ctx)

	finalMetrics := e.metricsEngine.GetSnapshot()
	taskStats := e.metricsEngine.GetTaskStats()

	thresholdResults := e.evaluateThresholds(finalMetrics)
	passed := true
	for _, tr := range thresholdResults {
		if !tr.Passed {
			passed = false
			break
		}
	}

	result := &Result{
		Name:        e.config.Name,
		Description: e.config.Description,
		StartTime:   e.startTime,
		EndTime:     time.Now(),
		Duration:    time.Since(e.startTime),
		Profiles:    profileResults,
		Metrics:     finalMetrics,
		TaskStats:   taskStats,
		Passed:      passed,
		Thresholds:  thresholdResults,
		Error:       runErr,
	}

	return result, runErr
}

// initializeProfiles creates executors and schedulers for all profiles.
func (e *Engine) initializeProfiles(ctx context.Context) error {
	for name, profileConfig := range e.config.Profiles {
		profile, err := e.buildProfile(name, profileConfig)
		if err != nil {
			return fmt.Errorf("failed to build profile %s: %w", name, err)
		}

		scheduler := drill.NewScheduler(profile, e.metricsEngine, e.clientConfig, e.events)

		execConfig, err := e.executorConfig(name, profileConfig)
		if err != nil {
			return fmt.Errorf("failed to build executor config for profile %s: %w", name, err)
		}

		exec, err := executor.CreateAndInitExecutor(ctx, execConfig)
		if err != nil {
			return fmt.Errorf("failed to create executor for profile %s: %w", name, err)
		}

		e.profiles[name] = &ProfileRunner{
			Name:      name,
			Config:    profileConfig,
			Executor:  exec,
			Scheduler: scheduler,
			Profile:   profile,
		}
	}

	return nil
}

// buildProfile resolves a profile config into a runnable profile.
func (e *Engine) buildProfile(name string, pc *config.ProfileConfig) (*drill.Profile, error) {
	profile := &drill.Profile{Name: name}

	if pc.Login != nil {
		body, err := json.Marshal(map[string]string{
			"username": pc.Login.Username,
			"password": pc.Login.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode login credentials: %w", err)
		}

		profile.Login = &drill.Login{
			Request: drill.RequestSpec{
				Name:    name + "_login",
				Method:  "POST",
				URL:     e.joinTarget(pc.Login.Path),
				Headers: mergeHeaders(e.config.Target.Headers, map[string]string{"Content-Type": "application/json"}),
				Body:    string(body),
			},
			Check:     drill.CheckLogin(),
			TokenPath: pc.Login.TokenPath,
		}
	}

	for i, tc := range pc.Tasks {
		check, err := drill.CheckPreset(tc.Check)
		if err != nil {
			return nil, err
		}

		method := tc.Method
		if method == "" {
			method = "GET"
		}

		taskName := tc.Name
		if taskName == "" {
			taskName = fmt.Sprintf("%s_task_%d", name, i+1)
		}

		profile.Tasks = append(profile.Tasks, drill.Task{
			Weight: tc.Weight,
			Request: drill.RequestSpec{
				Name:    taskName,
				Method:  method,
				URL:     e.joinTarget(tc.Path),
				Headers: mergeHeaders(e.config.Target.Headers, tc.Headers),
				Body:    tc.Body,
			},
			Check: check,
		})
	}

	return profile, nil
}

// joinTarget resolves a path against the target base URL without touching
// the path's query string: attack payloads must reach the wire unaltered.
func (e *Engine) joinTarget(path string) string {
	base := strings.TrimRight(e.config.Target.BaseURL, "/")
	if path == "" {
		return base + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func mergeHeaders(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// executorConfig converts a profile config into an executor config.
func (e *Engine) executorConfig(name string, pc *config.ProfileConfig) (*executor.Config, error) {
	cfg := &executor.Config{
		Name: name,
		Type: executor.Type(pc.Executor),
		VUs:  pc.VUs,
	}

	if pc.Duration != "" {
		d, err := config.ParseDurationString(pc.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}

	if pc.GracefulStop != "" {
		d, err := config.ParseDurationString(pc.GracefulStop)
		if err != nil {
			return nil, fmt.Errorf("invalid gracefulStop: %w", err)
		}
		cfg.GracefulStop = d
	}

	for _, stage := range pc.Stages {
		d, err := config.ParseDurationString(stage.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid stage duration: %w", err)
		}
		cfg.Stages = append(cfg.Stages, executor.Stage{
			Duration: d,
			Target:   stage.Target,
			Name:     stage.Name,
		})
	}

	if len(cfg.Stages) > 0 && cfg.Duration == 0 {
		for _, stage := range cfg.Stages {
			cfg.Duration += stage.Duration
		}
	}

	if pc.Pacing != nil {
		pacing := &executor.PacingConfig{Type: executor.PacingType(pc.Pacing.Type)}

		var err error
		if pacing.Duration, err = config.ParseDurationString(pc.Pacing.Duration); err != nil {
			return nil, fmt.Errorf("invalid pacing duration: %w", err)
		}
		if pacing.Min, err = config.ParseDurationString(pc.Pacing.Min); err != nil {
			return nil, fmt.Errorf("invalid pacing min: %w", err)
		}
		if pacing.Max, err = config.ParseDurationString(pc.Pacing.Max); err != nil {
			return nil, fmt.Errorf("invalid pacing max: %w", err)
		}

		cfg.Pacing = pacing
	}

	return cfg, nil
}

// runProfiles runs all profiles in parallel.
func (e *Engine) runProfiles(ctx context.Context) (map[string]*ProfileResult, error) {
	results := make(map[string]*ProfileResult)
	var resultsMu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for name, runner := range e.profiles {
		wg.Add(1)
		go func(name string, runner *ProfileRunner) {
			defer wg.Done()

			result, err := e.runProfile(ctx, runner)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("profile %s failed: %w", name, err)
				}
				errMu.Unlock()
			}

			resultsMu.Lock()
			results[name] = result
			resultsMu.Unlock()
		}(name, runner)
	}

	wg.Wait()
	return results, firstErr
}

// runProfile runs a single profile.
func (e *Engine) runProfile(ctx context.Context, runner *ProfileRunner) (*ProfileResult, error) {
	startTime := time.Now()

	err := runner.Executor.Run(ctx, runner.Scheduler, e.metricsEngine)

	stats := runner.Executor.GetStats()

	result := &ProfileResult{
		Name:       runner.Name,
		Executor:   string(runner.Executor.Type()),
		Duration:   time.Since(startTime),
		Iterations: stats.Iterations,
		ActiveVUs:  stats.ActiveVUs,
		Error:      err,
	}

	runner.Scheduler.Shutdown(30 * time.Second)

	runner.Result = result
	return result, err
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// GetMetrics returns the current metrics snapshot.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	if e.metricsEngine == nil {
		return nil
	}
	return e.metricsEngine.GetSnapshot()
}

// GetProgress returns the overall drill progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.profiles) == 0 {
		return 0.0
	}

	var total float64
	for _, runner := range e.profiles {
		total += runner.Executor.GetProgress()
	}
	return total / float64(len(e.profiles))
}

// Stop gracefully stops the engine and all running profiles.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil
	}
	profiles := e.profiles
	e.mu.RUnlock()

	var lastErr error
	for _, runner := range profiles {
		if err := runner.Executor.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetConfig returns the drill configuration.
func (e *Engine) GetConfig() *config.DrillConfig {
	return e.config
}
