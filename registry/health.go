package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthSupervisorConfig configures the Health Supervisor (C5).
type HealthSupervisorConfig struct {
	Enabled       bool
	Interval      time.Duration
	BatchSize     int
	MaxConcurrent int
	TTL           time.Duration
	// Scheme is the URL scheme used to probe /health. Configurable rather
	// than hard-coded, defaulting to "https".
	Scheme string
}

// DefaultHealthSupervisorConfig returns the documented defaults.
func DefaultHealthSupervisorConfig() HealthSupervisorConfig {
	return HealthSupervisorConfig{
		Enabled:       true,
		Interval:      5 * time.Second,
		BatchSize:     100,
		MaxConcurrent: 10,
		TTL:           2 * time.Second,
		Scheme:        "https",
	}
}

func (c HealthSupervisorConfig) withDefaults() HealthSupervisorConfig {
	d := DefaultHealthSupervisorConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	if c.Scheme == "" {
		c.Scheme = d.Scheme
	}
	return c
}

// prober issues one GET /health probe per instance, using plain net/http
// the way core/redis_discovery.go's Ping does — http.Client with a
// context-scoped timeout, no HTTP client library. A probe passes iff the
// response status is 2xx and the body parses as a JSON object.
type prober struct {
	client *http.Client
}

func newProber() *prober {
	return &prober{
		client: &http.Client{
			// Per-probe cancellation is driven by the context deadline
			// the Supervisor attaches, not by a fixed client-wide timeout,
			// so no Timeout is set here.
		},
	}
}

// probe returns (passed, body) — body is only meaningful when passed is
// true. There is no error return: every probe failure (network, timeout,
// non-2xx, malformed or non-object body, URL construction) is reported as
// passed == false, because the Health Supervisor never propagates probe
// failures to registry callers.
func (p *prober) probe(ctx context.Context, scheme, host, port string) (bool, map[string]interface{}) {
	u := fmt.Sprintf("%s://%s:%s/health", scheme, host, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		// Invalid host/port counts as a failure with no network contacted.
		return false, nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body == nil {
		// A JSON null decodes without error into a nil map; it is not an object.
		return false, nil
	}
	return true, body
}

// Supervisor is the Health Supervisor (C5): a periodic, batched,
// bounded-concurrency poller over every registered instance. Grounded on
// orchestration/task_worker.go's worker-pool shape (sync.WaitGroup fan-out,
// a component-aware Logger, an explicit Start/Stop lifecycle guarded by a
// mutex) adapted from a long-lived dequeue loop into a fixed
// batch→chunk→probe cycle.
type Supervisor struct {
	engine    *Engine
	config    HealthSupervisorConfig
	prober    *prober
	logger    Logger
	telemetry Telemetry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// SupervisorOption configures a Supervisor at construction time.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger attaches a logger, tagging it "registry/health" if
// it supports component awareness.
func WithSupervisorLogger(logger Logger) SupervisorOption {
	return func(s *Supervisor) {
		if cal, ok := logger.(ComponentAwareLogger); ok {
			s.logger = cal.WithComponent("registry/health")
		} else {
			s.logger = logger
		}
	}
}

// WithSupervisorTelemetry attaches a Telemetry implementation, so each
// probe gets its own span the same way the Registry Core's mutations do.
func WithSupervisorTelemetry(t Telemetry) SupervisorOption {
	return func(s *Supervisor) { s.telemetry = t }
}

// NewSupervisor constructs a Health Supervisor bound to engine.
func NewSupervisor(engine *Engine, config HealthSupervisorConfig, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		engine:    engine,
		config:    config.withDefaults(),
		prober:    newProber(),
		logger:    NoOpLogger{},
		telemetry: NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the periodic probe cycle in a background goroutine. A
// second call while already running is a no-op. Does nothing at all if
// Enabled is false — disabled means never probe.
func (s *Supervisor) Start(ctx context.Context) {
	if !s.config.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx)
}

// Stop cancels the pending timer and any in-flight probes, and waits for
// the background loop to exit. Safe to call repeatedly, and safe to call
// on a Supervisor that was never started.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)

	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.Interval):
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// runCycle implements the cycle algorithm: snapshot, partition into
// sequential batches, partition each batch into sequential chunks, run
// every probe in a chunk concurrently, wait for the whole chunk before
// starting the next. A panic anywhere in the cycle is recovered and
// logged; it never prevents the next cycle from being scheduled.
func (s *Supervisor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("health check cycle panicked", map[string]interface{}{"panic": r})
		}
	}()

	instances := s.engine.listAll()
	if len(instances) == 0 {
		return
	}

	for batchStart := 0; batchStart < len(instances); batchStart += s.config.BatchSize {
		if ctx.Err() != nil {
			return
		}
		batchEnd := min(batchStart+s.config.BatchSize, len(instances))
		s.runBatch(ctx, instances[batchStart:batchEnd])
	}
}

func (s *Supervisor) runBatch(ctx context.Context, batch []Instance) {
	for chunkStart := 0; chunkStart < len(batch); chunkStart += s.config.MaxConcurrent {
		if ctx.Err() != nil {
			return
		}
		chunkEnd := min(chunkStart+s.config.MaxConcurrent, len(batch))
		s.runChunk(ctx, batch[chunkStart:chunkEnd])
	}
}

// runChunk probes every instance in the chunk concurrently and blocks
// until all have completed.
func (s *Supervisor) runChunk(ctx context.Context, chunk []Instance) {
	var wg sync.WaitGroup
	wg.Add(len(chunk))
	for _, inst := range chunk {
		go func(inst Instance) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("health check probe panicked", map[string]interface{}{"instance_id": inst.ID, "panic": r})
				}
			}()
			s.probeOne(ctx, inst)
		}(inst)
	}
	wg.Wait()
}

func (s *Supervisor) probeOne(ctx context.Context, inst Instance) {
	var span Span
	if s.telemetry != nil {
		ctx, span = s.telemetry.StartSpan(ctx, "registry.probeOne")
		defer span.End()
		span.SetAttribute("instance.id", inst.ID)
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.config.TTL)
	defer cancel()

	passed, body := s.prober.probe(probeCtx, s.config.Scheme, inst.Host, inst.Port)
	if span != nil {
		span.SetAttribute("probe.passed", passed)
	}
	if err := s.engine.applyHealthCheckResult(ctx, inst.ID, passed, body); err != nil {
		if span != nil {
			span.RecordError(err)
		}
		s.logger.Debug("instance unregistered mid-cycle", map[string]interface{}{"instance_id": inst.ID})
		return
	}

	if passed {
		s.logger.Debug("health check passed", map[string]interface{}{"instance_id": inst.ID})
	} else {
		s.logger.Warn("health check failed", map[string]interface{}{"instance_id": inst.ID})
	}
}
