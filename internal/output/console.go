// Package output provides console output for drill execution.
package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill"
	"github.com/wafdrill/wafdrill/internal/drill/engine"
	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// ANSI escape codes for cursor control and colors
const (
	cursorUp  = "\033[%dA" // Move cursor up N lines
	clearLine = "\033[2K"  // Clear entire line

	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorRed     = "\033[31m"

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	// Progress tracking
	Progress  float64       // 0.0 to 1.0
	Elapsed   time.Duration // Time elapsed since drill start
	Remaining time.Duration // Estimated time remaining

	// VU stats
	ActiveVUs int // Current active virtual users
	TargetVUs int // Target virtual users

	// Request stats
	CurrentRPS    float64 // Current requests per second
	TotalRequests int64   // Total requests completed
	Failed        int64   // Failed verdicts
	FailRate      float64 // Failed verdict rate (0.0 to 1.0)

	// Security counters
	Blocked     int64 // Probes the WAF blocked
	Bypassed    int64 // Probes that got past the WAF
	RateLimited int64 // Requests that hit the rate limit

	// Latency stats
	LatencyP95 time.Duration
	LatencyAvg time.Duration
}

// ConsoleOutput manages live console output during drill execution.
//
// It also implements drill.EventSink so session events surface on the
// console as they happen.
type ConsoleOutput struct {
	drillName      string
	totalDuration  time.Duration
	updateInterval time.Duration
	writer         io.Writer
	isTTY          bool
	useColors      bool
	quiet          bool

	// State
	mu          sync.Mutex
	lastStats   *LiveStats
	linesOutput int // Number of lines in the live display
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	DrillName      string
	TotalDuration  time.Duration
	UpdateInterval time.Duration
	Writer         io.Writer
	Quiet          bool
	ForceColors    bool
	ForceTTY       bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.UpdateInterval == 0 {
		config.UpdateInterval = time.Second
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := config.ForceColors || (isTTY && supportsColors())

	return &ConsoleOutput{
		drillName:      config.DrillName,
		totalDuration:  config.TotalDuration,
		updateInterval: config.UpdateInterval,
		writer:         config.Writer,
		isTTY:          isTTY,
		useColors:      useColors,
		quiet:          config.Quiet,
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		if f == os.Stdout || f == os.Stderr {
			return checkIsTerminal(f)
		}
	}
	return false
}

// supportsColors checks if the terminal supports colors.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	if runtime.GOOS == "windows" {
		// Modern Windows terminals support ANSI colors
		return true
	}

	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}
	return true
}

// RunStarted implements drill.EventSink. It announces the start of the drill.
func (c *ConsoleOutput) RunStarted(name string) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	c.writeln(c.colorize(line, colorCyan))
	c.writeln(c.colorize(fmt.Sprintf("Starting WAF & rate-limit drill: %s", name), colorBold))
	c.writeln(c.colorize(line, colorCyan))
	c.writeln("")
}

// SessionStarted implements drill.EventSink. It reports login outcomes.
func (c *ConsoleOutput) SessionStarted(profile string, vuID int, v drill.Verdict) {
	if c.quiet || c.isTTY {
		// In TTY mode the live display owns the screen, skip per-VU lines.
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v.Outcome == drill.OutcomeFail {
		c.writeln(fmt.Sprintf("[%s] VU %d: %s", profile, vuID, c.colorize(v.Reason, colorRed)))
		return
	}
	c.writeln(fmt.Sprintf("[%s] VU %d: %s", profile, vuID,
		c.colorize(fmt.Sprintf("session started (%d)", v.StatusCode), colorGreen)))
}

// Update updates the live display with new statistics.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastStats = stats

	// Clear previous output
	if c.linesOutput > 0 {
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		for i := 0; i < c.linesOutput; i++ {
			c.write(clearLine)
			if i < c.linesOutput-1 {
				c.write("\n")
			}
		}
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	}

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)

	for _, line := range lines {
		c.writeln(line)
	}
}

// renderLiveStats renders the live statistics display.
func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	progressBar := c.renderProgressBar(stats.Progress, 40)
	progressPercent := fmt.Sprintf("%.0f%%", stats.Progress*100)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colorize(progressBar, colorGreen),
		c.colorize(progressPercent, colorBold),
		c.colorize(timeInfo, colorDim)))
	lines = append(lines, "")

	boxWidth := 55

	lines = append(lines, c.colorize(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight, colorDim))

	// VUs and Requests row
	vusStr := fmt.Sprintf("VUs:     %s / %s",
		c.colorize(fmt.Sprintf("%d", stats.ActiveVUs), colorCyan),
		fmt.Sprintf("%d", stats.TargetVUs))
	reqsStr := fmt.Sprintf("Requests:    %s", c.colorize(formatNumber(stats.TotalRequests), colorCyan))
	lines = append(lines, c.formatBoxRow(vusStr, reqsStr, boxWidth))

	// RPS and failed verdicts row
	rpsStr := fmt.Sprintf("RPS:     %s", c.colorize(fmt.Sprintf("%.1f", stats.CurrentRPS), colorGreen))
	failColor := colorGreen
	if stats.Failed > 0 {
		failColor = colorRed
	}
	failStr := fmt.Sprintf("Failed:      %s (%s)",
		c.colorize(fmt.Sprintf("%d", stats.Failed), failColor),
		c.colorize(fmt.Sprintf("%.1f%%", stats.FailRate*100), failColor))
	lines = append(lines, c.formatBoxRow(rpsStr, failStr, boxWidth))

	// Security counters row
	bypassColor := colorGreen
	if stats.Bypassed > 0 {
		bypassColor = colorRed
	}
	blockedStr := fmt.Sprintf("Blocked: %s", c.colorize(fmt.Sprintf("%d", stats.Blocked), colorMagenta))
	bypassStr := fmt.Sprintf("Bypassed:    %s", c.colorize(fmt.Sprintf("%d", stats.Bypassed), bypassColor))
	lines = append(lines, c.formatBoxRow(blockedStr, bypassStr, boxWidth))

	// Rate limit and latency row
	limitedStr := fmt.Sprintf("429s:    %s", c.colorize(formatNumber(stats.RateLimited), colorYellow))
	p95Str := fmt.Sprintf("P95:         %s", c.colorize(formatDurationShort(stats.LatencyP95), colorBlue))
	lines = append(lines, c.formatBoxRow(limitedStr, p95Str, boxWidth))

	lines = append(lines, c.colorize(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight, colorDim))

	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *ConsoleOutput) formatBoxRow(left, right string, boxWidth int) string {
	// Account for ANSI codes when calculating padding
	leftVisible := stripANSI(left)
	rightVisible := stripANSI(right)

	colWidth := (boxWidth - 4) / 2 // 4 = 2 borders + 2 padding

	leftPadding := colWidth - len(leftVisible)
	if leftPadding < 0 {
		leftPadding = 0
	}

	rightPadding := colWidth - len(rightVisible)
	if rightPadding < 0 {
		rightPadding = 0
	}

	return fmt.Sprintf("%s %s%s%s %s%s %s",
		c.colorize(boxVertical, colorDim),
		left, strings.Repeat(" ", leftPadding),
		c.colorize(boxVertical, colorDim),
		right, strings.Repeat(" ", rightPadding),
		c.colorize(boxVertical, colorDim))
}

// renderProgressBar renders a progress bar.
func (c *ConsoleOutput) renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, empty) + "]"
}

// PrintSummary prints the final drill summary.
func (c *ConsoleOutput) PrintSummary(result *engine.Result) {
	if c.quiet {
		// In quiet mode, just print passed/failed status
		if result.Passed {
			c.writeln(c.colorize("PASSED", colorGreen))
		} else {
			c.writeln(c.colorize("FAILED", colorRed))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Clear live output if we were in TTY mode
	if c.isTTY && c.linesOutput > 0 {
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		for i := 0; i < c.linesOutput; i++ {
			c.write(clearLine + "\n")
		}
		c.write(fmt.Sprintf(cursorUp, c.linesOutput))
		c.linesOutput = 0
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := "Defenses held ✓"
	statusColor := colorGreen
	if !result.Passed {
		status = "Defenses failed ✗"
		statusColor = colorRed
	}

	c.writeln("")
	c.writeln(c.colorize(line, colorCyan))
	c.writeln(fmt.Sprintf("%s - %s",
		c.colorize(result.Name, colorBold),
		c.colorize(status, statusColor)))
	c.writeln(c.colorize(line, colorCyan))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colorize(formatDuration(result.Duration), colorCyan)))
	if result.Metrics != nil {
		m := result.Metrics
		c.writeln(fmt.Sprintf("Total Reqs:    %s", c.colorize(formatNumber(m.TotalRequests), colorCyan)))
		c.writeln(fmt.Sprintf("Verdicts:      %s passed, %s failed, %s unscored",
			c.colorize(formatNumber(m.Passed), colorGreen),
			c.colorize(formatNumber(m.Failed), c.failCountColor(m.Failed)),
			c.colorize(formatNumber(m.Unscored), colorYellow)))
		if m.TransportErrors > 0 {
			c.writeln(fmt.Sprintf("Net Errors:    %s", c.colorize(formatNumber(m.TransportErrors), colorRed)))
		}
		c.writeln(fmt.Sprintf("Data:          %s", c.colorize(formatBytes(m.TotalBytes), colorCyan)))
	}
	c.writeln("")

	if result.Metrics != nil && len(result.Metrics.Counters) > 0 {
		c.printCounters(result.Metrics.Counters)
	}

	if result.Metrics != nil {
		c.writeln(c.colorize("Latency Distribution:", colorBold))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(result.Metrics.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(result.Metrics.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(result.Metrics.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(result.Metrics.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(result.Metrics.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(result.Metrics.Latency.Max)))
		c.writeln("")
	}

	if len(result.TaskStats) > 0 {
		c.printTaskStats(result.TaskStats)
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colorize("Thresholds:", colorBold))
		for _, t := range result.Thresholds {
			status := c.colorize("✓", colorGreen)
			if !t.Passed {
				status = c.colorize("✗", colorRed)
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", status, t.Metric, t.Expression, t.Value))
		}
		c.writeln("")
	}

	if result.Metrics != nil && len(result.Metrics.RecentFailures) > 0 && !result.Passed {
		c.writeln(c.colorize("Recent Failures:", colorBold))
		for _, f := range result.Metrics.RecentFailures {
			c.writeln(fmt.Sprintf("  %s", c.colorize(f, colorRed)))
		}
		c.writeln("")
	}
}

// printCounters prints the security counters in a stable order.
func (c *ConsoleOutput) printCounters(counters map[string]int64) {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	c.writeln(c.colorize("Security Counters:", colorBold))
	for _, name := range names {
		value := counters[name]
		valueColor := colorCyan
		switch name {
		case drill.CounterWAFBypass, drill.CounterNotLimited, drill.CounterLoginFailed:
			if value > 0 {
				valueColor = colorRed
			} else {
				valueColor = colorGreen
			}
		case drill.CounterWAFBlock, drill.CounterLimitHit:
			valueColor = colorGreen
		}
		c.writeln(fmt.Sprintf("  %-15s %s", name+":", c.colorize(formatNumber(value), valueColor)))
	}
	c.writeln("")
}

// printTaskStats prints a per-task verdict breakdown.
func (c *ConsoleOutput) printTaskStats(taskStats map[string]metrics.TaskStats) {
	names := make([]string, 0, len(taskStats))
	for name := range taskStats {
		names = append(names, name)
	}
	sort.Strings(names)

	c.writeln(c.colorize("Tasks:", colorBold))
	for _, name := range names {
		ts := taskStats[name]
		failStr := formatNumber(ts.Failed)
		if ts.Failed > 0 {
			failStr = c.colorize(failStr, colorRed)
		}
		c.writeln(fmt.Sprintf("  %-20s pass=%s fail=%s unscored=%s p95=%s",
			name,
			c.colorize(formatNumber(ts.Passed), colorGreen),
			failStr,
			formatNumber(ts.Unscored),
			formatDurationShort(ts.Latency.P95)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) failCountColor(failed int64) string {
	if failed > 0 {
		return colorRed
	}
	return colorGreen
}

// PrintNonInteractiveUpdate prints a non-interactive status update.
// Used when output is not a TTY (e.g., piped to a file or CI/CD).
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | VUs: %d | Reqs: %d | RPS: %.1f | Failed: %d | Bypassed: %d | 429s: %d | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Failed,
		stats.Bypassed,
		stats.RateLimited,
		formatDurationShort(stats.LatencyP95)))
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// write writes to the output without a newline.
func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// colorize wraps text in color codes if colors are enabled.
func (c *ConsoleOutput) colorize(text, color string) string {
	if !c.useColors {
		return text
	}
	return color + text + colorReset
}

// Helper functions

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}

// StatsFromSnapshot creates LiveStats from a metrics snapshot.
func StatsFromSnapshot(
	snapshot *metrics.Snapshot,
	progress float64,
	totalDuration time.Duration,
	targetVUs int,
) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:  progress,
			TargetVUs: targetVUs,
		}
	}

	elapsed := snapshot.Elapsed
	remaining := time.Duration(0)
	if progress > 0 && progress < 1 {
		remaining = time.Duration(float64(elapsed) * (1 - progress) / progress)
	} else if totalDuration > 0 {
		remaining = totalDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		CurrentRPS:    snapshot.RPS,
		TotalRequests: snapshot.TotalRequests,
		Failed:        snapshot.Failed,
		FailRate:      snapshot.FailRate,
		Blocked:       snapshot.Counters[drill.CounterWAFBlock],
		Bypassed:      snapshot.Counters[drill.CounterWAFBypass],
		RateLimited: snapshot.Counters[drill.CounterRateLimited] +
			snapshot.Counters[drill.CounterLimitHit],
		LatencyP95: snapshot.Latency.P95,
		LatencyAvg: snapshot.Latency.Mean,
	}
}
