package drill_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill"
	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

func TestNewScheduler(t *testing.T) {
	metricsEngine := metrics.NewEngine()
	profile := &drill.Profile{Name: "test"}

	scheduler := drill.NewScheduler(profile, metricsEngine, drill.DefaultClientConfig(), nil)
	if scheduler == nil {
		t.Fatal("NewScheduler returned nil")
	}
	if scheduler.GetActiveVUCount() != 0 {
		t.Errorf("initial active VU count = %d, want 0", scheduler.GetActiveVUCount())
	}
}

func TestScheduler_SpawnVU(t *testing.T) {
	metricsEngine := metrics.NewEngine()
	profile := &drill.Profile{Name: "test"}
	scheduler := drill.NewScheduler(profile, metricsEngine, drill.DefaultClientConfig(), nil)

	vu1 := scheduler.SpawnVU()
	vu2 := scheduler.SpawnVU()

	if vu1.ID == vu2.ID {
		t.Errorf("spawned VUs share ID %d", vu1.ID)
	}
	if scheduler.GetActiveVUCount() != 2 {
		t.Errorf("active VU count = %d, want 2", scheduler.GetActiveVUCount())
	}
	if scheduler.GetVU(vu1.ID) != vu1 {
		t.Error("GetVU did not return the spawned VU")
	}
	if scheduler.GetVU(9999) != nil {
		t.Error("GetVU(9999) should return nil")
	}
}

func TestScheduler_SharedClient(t *testing.T) {
	metricsEngine := metrics.NewEngine()
	profile := &drill.Profile{Name: "test"}

	config := drill.DefaultClientConfig()
	config.UseSharedClient = true
	scheduler := drill.NewScheduler(profile, metricsEngine, config, nil)

	vu1 := scheduler.SpawnVU()
	vu2 := scheduler.SpawnVU()
	if vu1.HTTPClient != vu2.HTTPClient {
		t.Error("VUs should share the HTTP client when UseSharedClient is set")
	}

	config.UseSharedClient = false
	scheduler = drill.NewScheduler(profile, metricsEngine, config, nil)
	vu1 = scheduler.SpawnVU()
	vu2 = scheduler.SpawnVU()
	if vu1.HTTPClient == vu2.HTTPClient {
		t.Error("VUs should have separate HTTP clients when UseSharedClient is off")
	}
}

func TestScheduler_RemoveVU(t *testing.T) {
	metricsEngine := metrics.NewEngine()
	scheduler := drill.NewScheduler(&drill.Profile{Name: "test"}, metricsEngine, drill.DefaultClientConfig(), nil)

	vu := scheduler.SpawnVU()
	scheduler.RemoveVU(vu.ID)

	if scheduler.GetVU(vu.ID) != nil {
		t.Error("VU still registered after RemoveVU")
	}
	if vu.GetState() != drill.VUStateStopped {
		t.Errorf("removed VU state = %v, want stopped", vu.GetState())
	}
}

func TestScheduler_StopAllVUs(t *testing.T) {
	metricsEngine := metrics.NewEngine()
	scheduler := drill.NewScheduler(&drill.Profile{Name: "test"}, metricsEngine, drill.DefaultClientConfig(), nil)

	vus := []*drill.VirtualUser{scheduler.SpawnVU(), scheduler.SpawnVU(), scheduler.SpawnVU()}
	scheduler.StopAllVUs()

	for _, vu := range vus {
		state := vu.GetState()
		if state != drill.VUStateStopping && state != drill.VUStateStopped {
			t.Errorf("VU %d state = %v after StopAllVUs", vu.ID, state)
		}
	}
}

func TestScheduler_RunVU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metricsEngine := metrics.NewEngine()
	profile := &drill.Profile{
		Name: "test",
		Tasks: []drill.Task{
			{Request: drill.RequestSpec{Name: "get", Method: "GET", URL: server.URL}, Check: drill.CheckOK()},
		},
	}
	scheduler := drill.NewScheduler(profile, metricsEngine, drill.DefaultClientConfig(), nil)

	vu := scheduler.SpawnVU()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.RunVU(ctx, vu, nil)
		close(done)
	}()

	// Let it run a few iterations, then cancel.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunVU did not return after context cancellation")
	}

	if vu.GetState() != drill.VUStateStopped {
		t.Errorf("VU state after RunVU = %v, want stopped", vu.GetState())
	}
	if vu.GetIteration() == 0 {
		t.Error("VU ran no iterations")
	}
}

func TestScheduler_Shutdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metricsEngine := metrics.NewEngine()
	profile := &drill.Profile{
		Name: "test",
		Tasks: []drill.Task{
			{Request: drill.RequestSpec{Name: "get", Method: "GET", URL: server.URL}, Check: drill.CheckOK()},
		},
	}
	scheduler := drill.NewScheduler(profile, metricsEngine, drill.DefaultClientConfig(), nil)

	for i := 0; i < 3; i++ {
		vu := scheduler.SpawnVU()
		go scheduler.RunVU(context.Background(), vu, nil)
	}

	time.Sleep(100 * time.Millisecond)
	scheduler.Shutdown(5 * time.Second)

	// Shutdown is idempotent.
	scheduler.Shutdown(time.Second)

	scheduler.UpdateMetrics()
	if got := metricsEngine.GetActiveVUs(); got != 0 {
		t.Errorf("active VUs after shutdown = %d, want 0", got)
	}
}
