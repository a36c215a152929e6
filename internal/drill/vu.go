package drill

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is actively running iterations.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is a single simulated session executing a traffic profile.
//
// Each VU has its own pseudo-random source for weighted task selection and
// its own login state. The auth header is only touched from the VU's
// goroutine, so it needs no locking.
type VirtualUser struct {
	// Unique identifier for this VU
	ID int

	// Profile defines the login and the weighted task set
	Profile *Profile

	// HTTP client for this VU (may be shared or per-VU)
	HTTPClient *http.Client

	// Metrics engine for recording results
	Metrics *metrics.Engine

	// Events receives session notifications
	Events EventSink

	// Lifecycle state (atomic for lock-free reads)
	state atomic.Int32

	// Stop signal
	stopCh chan struct{}

	// Done signal (closed when VU fully stops)
	doneCh chan struct{}

	// Iteration counter
	iteration atomic.Int64

	// Weighted task selection source
	rng *rand.Rand

	// Session state, owned by the VU goroutine
	sessionStarted bool
	authHeader     string
}

// NewVirtualUser creates a new Virtual User.
func NewVirtualUser(id int, profile *Profile, httpClient *http.Client, metricsEngine *metrics.Engine, events EventSink) *VirtualUser {
	if events == nil {
		events = NopSink{}
	}
	return &VirtualUser{
		ID:         id,
		Profile:    profile,
		HTTPClient: httpClient,
		Metrics:    metricsEngine,
		Events:     events,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(id)<<32)),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the current iteration number.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// StartSession performs the one-shot login of the profile, if any.
//
// The verdict is recorded and announced but never returned as an error:
// a failed login does not prevent subsequent tasks from running.
func (vu *VirtualUser) StartSession(ctx context.Context) {
	vu.sessionStarted = true

	login := vu.Profile.Login
	if login == nil {
		return
	}

	result := vu.execute(ctx, &login.Request, false)
	if result.err != nil {
		vu.Metrics.RecordError(login.Request.Name, result.duration)
		vu.Events.SessionStarted(vu.Profile.Name, vu.ID, Verdict{
			Outcome: OutcomeFail,
			Reason:  fmt.Sprintf("login error: %v", result.err),
		})
		return
	}

	verdict := login.Check.Evaluate(result.status)
	vu.recordVerdict(login.Request.Name, login.Check, verdict, result)

	if verdict.Outcome == OutcomePass && login.TokenPath != "" {
		if token := gjson.GetBytes(result.body, login.TokenPath); token.Exists() {
			vu.authHeader = "Bearer " + token.String()
		}
	}

	vu.Events.SessionStarted(vu.Profile.Name, vu.ID, verdict)
}

// RunIteration executes a single iteration: one weighted task of the
// profile, evaluated to a verdict. The first iteration of a session starts
// with the login.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	currentState := vu.GetState()
	if currentState == VUStateStopping || currentState == VUStateStopped {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}

	vu.state.Store(int32(VUStateRunning))
	vu.iteration.Add(1)

	if !vu.sessionStarted {
		vu.StartSession(ctx)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-vu.stopCh:
		return nil
	default:
	}

	task := vu.Profile.Pick(vu.rng)
	if task == nil {
		vu.state.Store(int32(VUStateIdle))
		return nil
	}

	result := vu.execute(ctx, &task.Request, true)
	if result.err != nil {
		// Transport failures carry no verdict; the run continues.
		vu.Metrics.RecordError(task.Request.Name, result.duration)
		vu.state.Store(int32(VUStateIdle))
		return nil
	}

	verdict := task.Check.Evaluate(result.status)
	vu.recordVerdict(task.Request.Name, task.Check, verdict, result)

	vu.state.Store(int32(VUStateIdle))
	return nil
}

// recordVerdict writes a verdict and its security counters to the engine.
func (vu *VirtualUser) recordVerdict(name string, check Check, v Verdict, r *requestResult) {
	switch v.Outcome {
	case OutcomePass:
		vu.Metrics.RecordPass(name, r.duration, r.bytes)
		vu.Metrics.Incr(check.CounterOnPass)
	case OutcomeFail:
		vu.Metrics.RecordFail(name, v.Reason, r.duration, r.bytes)
		vu.Metrics.Incr(check.CounterOnFail)
	default:
		vu.Metrics.RecordUnscored(name, r.duration, r.bytes)
	}
}

// requestResult contains the raw outcome of a single HTTP exchange.
type requestResult struct {
	status   int
	body     []byte
	bytes    int64
	duration time.Duration
	err      error
}

// execute issues a single HTTP request. When withAuth is set, the bearer
// token extracted at login (if any) is attached.
func (vu *VirtualUser) execute(ctx context.Context, spec *RequestSpec, withAuth bool) *requestResult {
	start := time.Now()
	result := &requestResult{}

	var body io.Reader
	if spec.Body != "" {
		body = strings.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		result.duration = time.Since(start)
		result.err = fmt.Errorf("failed to build request: %w", err)
		return result
	}

	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}
	if withAuth && vu.authHeader != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", vu.authHeader)
	}

	resp, err := vu.HTTPClient.Do(req)
	result.duration = time.Since(start)
	if err != nil {
		result.err = err
		return result
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		result.status = resp.StatusCode
		result.err = fmt.Errorf("failed to read response body: %w", err)
		return result
	}

	result.status = resp.StatusCode
	result.body = respBody
	result.bytes = int64(len(respBody))
	return result
}

// RequestStop signals the VU to stop after completing the current iteration.
func (vu *VirtualUser) RequestStop() {
	currentState := VUState(vu.state.Load())
	if currentState == VUStateStopped {
		return
	}

	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Should be called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	vu.state.Store(int32(VUStateStopped))
	select {
	case <-vu.doneCh:
		// Already closed
	default:
		close(vu.doneCh)
	}
}
