package drill

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// Scheduler manages the lifecycle of the Virtual Users of one profile.
//
// It provides VU pool management, shared HTTP client configuration, and
// graceful shutdown coordination. Executors use it to control VU counts.
type Scheduler struct {
	// Profile to execute
	profile *Profile

	// Metrics engine
	metrics *metrics.Engine

	// Event sink handed to spawned VUs
	events EventSink

	// HTTP client configuration
	clientConfig ClientConfig

	// Active VUs
	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	// VU ID counter
	nextVUID atomic.Int32

	// Shared HTTP client (if configured)
	sharedClient *http.Client

	// Shutdown coordination
	shutdownCh chan struct{}
	shutdownWg sync.WaitGroup
}

// ClientConfig contains HTTP client configuration.
type ClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification. Drill targets
	// commonly run behind self-signed certificates, so this defaults to on.
	InsecureSkipVerify bool

	// UseSharedClient indicates whether VUs share a single HTTP client
	UseSharedClient bool
}

// DefaultClientConfig returns sensible defaults for driving a drill target.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // Unlimited
		IdleConnTimeout:     90 * time.Second,
		InsecureSkipVerify:  true,
		UseSharedClient:     true, // Shared by default for connection pooling
	}
}

// NewScheduler creates a new VU scheduler for one profile.
func NewScheduler(profile *Profile, metricsEngine *metrics.Engine, clientConfig ClientConfig, events EventSink) *Scheduler {
	if events == nil {
		events = NopSink{}
	}

	s := &Scheduler{
		profile:      profile,
		metrics:      metricsEngine,
		events:       events,
		clientConfig: clientConfig,
		vus:          make(map[int]*VirtualUser),
		shutdownCh:   make(chan struct{}),
	}

	if clientConfig.UseSharedClient {
		s.sharedClient = s.newHTTPClient()
	}

	return s
}

// newHTTPClient creates an HTTP client with the configured settings.
func (s *Scheduler) newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        s.clientConfig.MaxIdleConns,
		MaxIdleConnsPerHost: s.clientConfig.MaxIdleConnsPerHost,
		MaxConnsPerHost:     s.clientConfig.MaxConnsPerHost,
		IdleConnTimeout:     s.clientConfig.IdleConnTimeout,
		DisableKeepAlives:   s.clientConfig.DisableKeepAlives,
	}

	if s.clientConfig.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   s.clientConfig.Timeout,
	}
}

// SpawnVU creates and returns a new Virtual User.
//
// The VU is registered with the scheduler but not started.
// The caller is responsible for running the VU.
func (s *Scheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))

	var client *http.Client
	if s.clientConfig.UseSharedClient {
		client = s.sharedClient
	} else {
		client = s.newHTTPClient()
	}

	vu := NewVirtualUser(id, s.profile, client, s.metrics, s.events)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *Scheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *Scheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// StopAllVUs requests all VUs to stop.
func (s *Scheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// RemoveVU removes a VU from the scheduler.
// The VU should be stopped before calling this.
func (s *Scheduler) RemoveVU(id int) {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()

	if vu, exists := s.vus[id]; exists {
		vu.MarkStopped()
		delete(s.vus, id)
	}
}

// RunVU runs a VU until it is stopped or the context is cancelled.
//
// This is a helper for executors: it runs iterations continuously and
// handles the VU lifecycle. Pacing applies between iterations; the
// authenticated profile's 100-500ms think time and the flood profile's
// zero pause both arrive through the pace function.
func (s *Scheduler) RunVU(ctx context.Context, vu *VirtualUser, pace func(context.Context)) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer vu.MarkStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if vu.GetState() == VUStateStopping || vu.GetState() == VUStateStopped {
			return
		}

		err := vu.RunIteration(ctx)
		if err != nil {
			if ctx.Err() != nil || vu.GetState() == VUStateStopping {
				return
			}
		}

		if pace != nil {
			pace(ctx)
		}
	}
}

// Shutdown gracefully shuts down all VUs.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}

	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	if s.sharedClient != nil {
		s.sharedClient.CloseIdleConnections()
	}
}

// UpdateMetrics updates the metrics engine with the current VU count.
func (s *Scheduler) UpdateMetrics() {
	s.metrics.SetActiveVUs(s.GetActiveVUCount())
}
