// Package metrics collects verdict and latency statistics for a drill run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates results across all virtual users of a run.
//
// Latency uses HDR histograms for accurate percentiles; verdict and byte
// counters are atomic for lock-free updates from many goroutines. Named
// security counters (waf_bypass, rate_limited, ...) are created on first
// use.
//
// Engine is safe for concurrent use.
type Engine struct {
	// Overall latency histogram
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-task histograms and verdict tallies
	tasks   map[string]*taskAgg
	tasksMu sync.RWMutex

	// Named security counters
	counters   map[string]*atomic.Int64
	countersMu sync.RWMutex

	// Atomic verdict counters
	totalRequests   atomic.Int64
	passed          atomic.Int64
	failed          atomic.Int64
	unscored        atomic.Int64
	transportErrors atomic.Int64
	totalBytes      atomic.Int64

	// Active VU tracking
	activeVUs atomic.Int32

	// Capped sample of recent failure reasons for the summary
	recentFailures   []string
	recentFailuresMu sync.Mutex

	startTime time.Time
	config    EngineConfig
}

type taskAgg struct {
	hist     *hdrhistogram.Histogram
	passed   int64
	failed   int64
	unscored int64
}

// EngineConfig contains histogram bounds for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures
	HistogramSigFigs int

	// MaxRecentFailures caps the retained failure reason sample
	MaxRecentFailures int
}

// DefaultEngineConfig returns the default configuration:
// 1 microsecond to 1 hour, 3 significant figures.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:      1,
		HistogramMax:      3600000000,
		HistogramSigFigs:  3,
		MaxRecentFailures: 10,
	}
}

// NewEngine creates a metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		tasks:       make(map[string]*taskAgg),
		counters:    make(map[string]*atomic.Int64),
		startTime:   time.Now(),
		config:      config,
	}
}

// RecordPass records a passing verdict for a task.
func (e *Engine) RecordPass(task string, duration time.Duration, bytes int64) {
	e.record(task, duration, bytes)
	e.passed.Add(1)
	e.bumpTask(task, func(a *taskAgg) { a.passed++ })
}

// RecordFail records a failing verdict and its reason.
func (e *Engine) RecordFail(task, reason string, duration time.Duration, bytes int64) {
	e.record(task, duration, bytes)
	e.failed.Add(1)
	e.bumpTask(task, func(a *taskAgg) { a.failed++ })

	e.recentFailuresMu.Lock()
	if len(e.recentFailures) < e.config.MaxRecentFailures {
		e.recentFailures = append(e.recentFailures, task+": "+reason)
	}
	e.recentFailuresMu.Unlock()
}

// RecordUnscored records a response that matched no verdict rule.
func (e *Engine) RecordUnscored(task string, duration time.Duration, bytes int64) {
	e.record(task, duration, bytes)
	e.unscored.Add(1)
	e.bumpTask(task, func(a *taskAgg) { a.unscored++ })
}

// RecordError records a transport-level failure. No verdict is assigned;
// the run continues regardless.
func (e *Engine) RecordError(task string, duration time.Duration) {
	e.record(task, duration, 0)
	e.transportErrors.Add(1)
}

// record updates the shared histogram and request counters.
func (e *Engine) record(task string, duration time.Duration, bytes int64) {
	micros := duration.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(micros)
	e.latencyHistMu.Unlock()

	if task != "" {
		e.tasksMu.Lock()
		agg := e.taskLocked(task)
		agg.hist.RecordValue(micros)
		e.tasksMu.Unlock()
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
}

func (e *Engine) bumpTask(task string, fn func(*taskAgg)) {
	if task == "" {
		return
	}
	e.tasksMu.Lock()
	fn(e.taskLocked(task))
	e.tasksMu.Unlock()
}

// taskLocked returns the aggregate for a task, creating it if needed.
// Caller must hold tasksMu.
func (e *Engine) taskLocked(task string) *taskAgg {
	agg, ok := e.tasks[task]
	if !ok {
		agg = &taskAgg{
			hist: hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs),
		}
		e.tasks[task] = agg
	}
	return agg
}

// Incr increments a named security counter, creating it on first use.
func (e *Engine) Incr(name string) {
	if name == "" {
		return
	}

	e.countersMu.RLock()
	c, ok := e.counters[name]
	e.countersMu.RUnlock()

	if !ok {
		e.countersMu.Lock()
		c, ok = e.counters[name]
		if !ok {
			c = &atomic.Int64{}
			e.counters[name] = c
		}
		e.countersMu.Unlock()
	}

	c.Add(1)
}

// Counter returns the current value of a named counter (0 if never bumped).
func (e *Engine) Counter(name string) int64 {
	e.countersMu.RLock()
	defer e.countersMu.RUnlock()
	if c, ok := e.counters[name]; ok {
		return c.Load()
	}
	return 0
}

// Counters returns a copy of all named counters.
func (e *Engine) Counters() map[string]int64 {
	e.countersMu.RLock()
	defer e.countersMu.RUnlock()

	result := make(map[string]int64, len(e.counters))
	for name, c := range e.counters {
		result[name] = c.Load()
	}
	return result
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetSnapshot returns a point-in-time view of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := statsFromHist(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalRequests.Load()
	failed := e.failed.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}

	failRate := 0.0
	if total > 0 {
		failRate = float64(failed) / float64(total)
	}

	e.recentFailuresMu.Lock()
	recent := make([]string, len(e.recentFailures))
	copy(recent, e.recentFailures)
	e.recentFailuresMu.Unlock()

	return &Snapshot{
		TotalRequests:   total,
		Passed:          e.passed.Load(),
		Failed:          failed,
		Unscored:        e.unscored.Load(),
		TransportErrors: e.transportErrors.Load(),
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		RPS:             rps,
		FailRate:        failRate,
		ActiveVUs:       e.GetActiveVUs(),
		Counters:        e.Counters(),
		RecentFailures:  recent,
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTaskStats returns per-task statistics.
func (e *Engine) GetTaskStats() map[string]TaskStats {
	e.tasksMu.RLock()
	defer e.tasksMu.RUnlock()

	result := make(map[string]TaskStats, len(e.tasks))
	for name, agg := range e.tasks {
		result[name] = TaskStats{
			Name:     name,
			Passed:   agg.passed,
			Failed:   agg.failed,
			Unscored: agg.unscored,
			Latency:  statsFromHist(agg.hist),
		}
	}
	return result
}

func statsFromHist(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.tasksMu.Lock()
	e.tasks = make(map[string]*taskAgg)
	e.tasksMu.Unlock()

	e.countersMu.Lock()
	e.counters = make(map[string]*atomic.Int64)
	e.countersMu.Unlock()

	e.recentFailuresMu.Lock()
	e.recentFailures = nil
	e.recentFailuresMu.Unlock()

	e.totalRequests.Store(0)
	e.passed.Store(0)
	e.failed.Store(0)
	e.unscored.Store(0)
	e.transportErrors.Store(0)
	e.totalBytes.Store(0)
	e.activeVUs.Store(0)
	e.startTime = time.Now()
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64            `json:"totalRequests"`
	Passed          int64            `json:"passed"`
	Failed          int64            `json:"failed"`
	Unscored        int64            `json:"unscored"`
	TransportErrors int64            `json:"transportErrors"`
	TotalBytes      int64            `json:"totalBytes"`
	Latency         LatencyStats     `json:"latency"`
	RPS             float64          `json:"rps"`
	FailRate        float64          `json:"failRate"`
	ActiveVUs       int              `json:"activeVUs"`
	Counters        map[string]int64 `json:"counters,omitempty"`
	RecentFailures  []string         `json:"recentFailures,omitempty"`
	Elapsed         time.Duration    `json:"elapsed"`
	StartTime       time.Time        `json:"startTime"`
	Timestamp       time.Time        `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// TaskStats contains per-task verdict and latency statistics.
type TaskStats struct {
	Name     string       `json:"name"`
	Passed   int64        `json:"passed"`
	Failed   int64        `json:"failed"`
	Unscored int64        `json:"unscored"`
	Latency  LatencyStats `json:"latency"`
}
