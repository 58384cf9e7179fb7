package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitHostPort(t *testing.T, rawURL string) (string, string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Hostname(), u.Port()
}

func TestProber_Probe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	p := newProber()

	passed, body := p.probe(context.Background(), "http", host, port)
	require.True(t, passed)
	assert.Equal(t, "ok", body["status"])
}

func TestProber_Probe_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	p := newProber()

	passed, _ := p.probe(context.Background(), "http", host, port)
	assert.False(t, passed)
}

func TestProber_Probe_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	p := newProber()

	passed, _ := p.probe(context.Background(), "http", host, port)
	assert.False(t, passed)
}

func TestProber_Probe_ConnectionRefused(t *testing.T) {
	p := newProber()
	passed, _ := p.probe(context.Background(), "http", "127.0.0.1", "1")
	assert.False(t, passed)
}

func TestProber_Probe_RespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	p := newProber()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	passed, _ := p.probe(ctx, "http", host, port)
	assert.False(t, passed, "a probe exceeding its TTL must count as a failure")
}

// TestSupervisor_RunCycle_UpdatesEngineFromLiveProbes runs one full cycle
// against real httptest servers standing in for instance /health endpoints,
// and checks the engine's view of health flips to match.
func TestSupervisor_RunCycle_UpdatesEngineFromLiveProbes(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer unhealthy.Close()

	e := newTestEngine(t)

	hHost, hPort := splitHostPort(t, healthy.URL)
	uHost, uPort := splitHostPort(t, unhealthy.URL)

	healthyCreds, err := e.Register(context.Background(), RegisterRequest{ServiceType: "svc", Host: hHost, Port: hPort}, testRegKey)
	require.NoError(t, err)
	unhealthyCreds, err := e.Register(context.Background(), RegisterRequest{ServiceType: "svc", Host: uHost, Port: uPort}, testRegKey)
	require.NoError(t, err)

	cfg := DefaultHealthSupervisorConfig()
	cfg.Scheme = "http"
	sup := NewSupervisor(e, cfg)

	sup.runCycle(context.Background())

	rec, ok := e.GetInstanceByID(healthyCreds.ID)
	require.True(t, ok)
	assert.True(t, rec.Healthy)

	rec, ok = e.GetInstanceByID(unhealthyCreds.ID)
	require.True(t, ok)
	assert.False(t, rec.Healthy)
}

func TestSupervisor_StartStop_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	cfg := DefaultHealthSupervisorConfig()
	cfg.Interval = time.Hour
	sup := NewSupervisor(e, cfg)

	ctx := context.Background()
	sup.Start(ctx)
	sup.Start(ctx) // second Start must be a no-op, not a second goroutine.

	sup.Stop()
	assert.NotPanics(t, func() { sup.Stop() }, "Stop must be safe to call more than once")
}

func TestSupervisor_Start_DisabledNeverProbes(t *testing.T) {
	var probed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed.Store(true)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	host, port := splitHostPort(t, srv.URL)
	_, err := e.Register(context.Background(), RegisterRequest{ServiceType: "svc", Host: host, Port: port}, testRegKey)
	require.NoError(t, err)

	cfg := DefaultHealthSupervisorConfig()
	cfg.Enabled = false
	cfg.Scheme = "http"
	cfg.Interval = 5 * time.Millisecond
	sup := NewSupervisor(e, cfg)

	sup.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sup.Stop()

	assert.False(t, probed.Load())
}

func TestSupervisor_RunBatch_ChunksConcurrency(t *testing.T) {
	var concurrent atomic.Int32
	var maxSeen atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := concurrent.Add(1)
		defer concurrent.Add(-1)
		for {
			cur := maxSeen.Load()
			if n <= cur || maxSeen.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	host, port := splitHostPort(t, srv.URL)
	for i := 0; i < 6; i++ {
		_, err := e.Register(context.Background(), RegisterRequest{ServiceType: "svc", Host: host, Port: port, Meta: map[string]interface{}{"n": strconv.Itoa(i)}}, testRegKey)
		require.NoError(t, err)
	}

	cfg := DefaultHealthSupervisorConfig()
	cfg.Scheme = "http"
	cfg.BatchSize = 6
	cfg.MaxConcurrent = 2
	sup := NewSupervisor(e, cfg)

	sup.runCycle(context.Background())

	assert.LessOrEqual(t, maxSeen.Load(), int32(2), "no chunk should exceed MaxConcurrent in-flight probes")
}

// TestSupervisor_WithSupervisorTelemetry_WrapsEachProbe exercises
// WithSupervisorTelemetry: a configured Telemetry must see one span per
// probed instance.
func TestSupervisor_WithSupervisorTelemetry_WrapsEachProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	host, port := splitHostPort(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := e.Register(context.Background(), RegisterRequest{ServiceType: "svc", Host: host, Port: port, Meta: map[string]interface{}{"n": strconv.Itoa(i)}}, testRegKey)
		require.NoError(t, err)
	}

	cfg := DefaultHealthSupervisorConfig()
	cfg.Scheme = "http"
	tel := &fakeTelemetry{}
	sup := NewSupervisor(e, cfg, WithSupervisorTelemetry(tel))

	sup.runCycle(context.Background())

	tel.mu.Lock()
	defer tel.mu.Unlock()
	assert.Equal(t, 3, tel.spanCount)
	assert.Equal(t, true, tel.attributes["probe.passed"])
}
