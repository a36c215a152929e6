package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// Reserved threshold keys. Every other key names a security counter.
const (
	thresholdLatency  = "latency"
	thresholdFailRate = "fail_rate"
	thresholdRequests = "requests"
)

// evaluateThresholds evaluates all configured thresholds against the final
// metrics snapshot.
func (e *Engine) evaluateThresholds(snapshot *metrics.Snapshot) []ThresholdResult {
	if len(e.config.Thresholds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(e.config.Thresholds))
	for key := range e.config.Thresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var results []ThresholdResult
	for _, key := range keys {
		for _, expr := range e.config.Thresholds[key] {
			var result ThresholdResult
			switch key {
			case thresholdLatency:
				result = evaluateLatencyThreshold(expr, snapshot)
			case thresholdFailRate:
				result = evaluateFailRateThreshold(expr, snapshot)
			case thresholdRequests:
				result = evaluateRequestsThreshold(expr, snapshot)
			default:
				result = evaluateCounterThreshold(key, expr, snapshot)
			}
			results = append(results, result)
		}
	}

	return results
}

// evaluateLatencyThreshold evaluates a latency threshold expression.
func evaluateLatencyThreshold(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     thresholdLatency,
		Expression: expr,
	}

	// Parse expression like "p95 < 500ms"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var actualValue time.Duration
	switch metric {
	case "min":
		actualValue = snapshot.Latency.Min
	case "max":
		actualValue = snapshot.Latency.Max
	case "avg", "med":
		actualValue = snapshot.Latency.Mean
	case "p50":
		actualValue = snapshot.Latency.P50
	case "p90":
		actualValue = snapshot.Latency.P90
	case "p95":
		actualValue = snapshot.Latency.P95
	case "p99":
		actualValue = snapshot.Latency.P99
	default:
		result.Message = fmt.Sprintf("unknown latency metric: %s", metric)
		return result
	}

	thresholdValue, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actualValue.String()
	result.Passed = compareValues(float64(actualValue), op, float64(thresholdValue))

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, actualValue, op, thresholdValue)
	}

	return result
}

// evaluateFailRateThreshold evaluates a verdict failure rate expression.
func evaluateFailRateThreshold(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     thresholdFailRate,
		Expression: expr,
	}

	// Parse expression like "rate < 0.01"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	if metric != "rate" {
		result.Message = fmt.Sprintf("fail_rate only supports 'rate' metric, got: %s", metric)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = fmt.Sprintf("%.4f", snapshot.FailRate)
	result.Passed = compareValues(snapshot.FailRate, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("failure rate is %.4f, threshold: %s %.4f", snapshot.FailRate, op, thresholdValue)
	}

	return result
}

// evaluateRequestsThreshold evaluates a request count/rate expression.
func evaluateRequestsThreshold(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     thresholdRequests,
		Expression: expr,
	}

	// Parse expression like "count > 1000" or "rate > 100"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actualValue float64
	switch metric {
	case "count":
		actualValue = float64(snapshot.TotalRequests)
	case "rate":
		actualValue = snapshot.RPS
	default:
		result.Message = fmt.Sprintf("requests only supports 'count' or 'rate' metrics, got: %s", metric)
		return result
	}

	result.Value = fmt.Sprintf("%.2f", actualValue)
	result.Passed = compareValues(actualValue, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", metric, actualValue, op, thresholdValue)
	}

	return result
}

// evaluateCounterThreshold evaluates an expression against a named security
// counter, e.g. "count == 0" for waf_bypass or "count > 0" for limit_engaged.
// A counter that was never incremented evaluates as zero, so an absent
// waf_bypass counter still satisfies "count == 0".
func evaluateCounterThreshold(counter, expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     counter,
		Expression: expr,
	}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	if metric != "count" {
		result.Message = fmt.Sprintf("counter %s only supports 'count' metric, got: %s", counter, metric)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	actualValue := float64(snapshot.Counters[counter])

	result.Value = fmt.Sprintf("%.0f", actualValue)
	result.Passed = compareValues(actualValue, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s count is %.0f, threshold: %s %.0f", counter, actualValue, op, thresholdValue)
	}

	return result
}

// parseThresholdExpression parses an expression like "p95 < 500ms".
func parseThresholdExpression(expr string) (metric, op, value string, err error) {
	expr = strings.TrimSpace(expr)

	re := regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)
	matches := re.FindStringSubmatch(expr)
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %s", expr)
	}

	return matches[1], matches[2], strings.TrimSpace(matches[3]), nil
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
