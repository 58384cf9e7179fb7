package registry

import (
	"context"
	"strconv"
	"sync"
)

// RegisterRequest is the caller-supplied input to Register.
type RegisterRequest struct {
	ServiceType string
	Host        string
	Port        string
	Meta        map[string]interface{}
}

// Credentials is returned by a successful Register call.
type Credentials struct {
	ID    string
	Token string
}

// state is the engine's own lifecycle, independent of any one instance's
// health.
type engineState int

const (
	stateRunning engineState = iota
	stateDisposed
)

// Engine is the Registry Core (C4): the single owner of the dual index,
// serializing mutations against it and emitting lifecycle events after
// each committed change. Grounded on core/redis_registry.go's
// RedisRegistry for the shape of Register/Unregister/UpdateHealth, but
// the serialization primitive and backing store are entirely different —
// RedisRegistry delegates consistency to Redis transactions (TxPipeline);
// Engine owns a dualIndex directly and is the only writer of it, so a
// single mutex on top of the index (see dualIndex) already gives the
// atomicity required without needing a transaction concept.
type Engine struct {
	mu        sync.RWMutex // guards state only; dualIndex has its own lock
	state     engineState
	index     *dualIndex
	creds     *credentials
	events    *eventChannel
	logger    Logger
	telemetry Telemetry
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithLogger attaches a logger. If it implements ComponentAwareLogger,
// the engine tags its own log lines under "registry/engine".
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if cal, ok := logger.(ComponentAwareLogger); ok {
			e.logger = cal.WithComponent("registry/engine")
		} else {
			e.logger = logger
		}
	}
}

// WithTelemetry attaches a Telemetry implementation.
func WithTelemetry(t Telemetry) EngineOption {
	return func(e *Engine) { e.telemetry = t }
}

// NewEngine constructs a Registry Core. registrationKey is the required
// process-wide shared secret; an empty key is a fatal configuration error,
// since startup cannot proceed without it.
func NewEngine(registrationKey string, opts ...EngineOption) (*Engine, error) {
	if registrationKey == "" {
		return nil, newError("NewEngine", "configuration", "", ErrMissingConfiguration)
	}

	e := &Engine{
		state:     stateRunning,
		index:     newDualIndex(),
		creds:     newCredentials(registrationKey),
		logger:    NoOpLogger{},
		telemetry: NoOpTelemetry{},
	}
	e.events = newEventChannel(e.logger)

	for _, opt := range opts {
		opt(e)
	}
	// Re-seed the event channel logger in case WithLogger ran after
	// construction started, so subscriber panics log under the right sink.
	e.events = newEventChannel(e.logger)

	return e, nil
}

// Subscribe registers a handler for one of the four lifecycle events.
func (e *Engine) Subscribe(t EventType, h Handler) {
	e.events.Subscribe(t, h)
}

// Register verifies regKey, mints an id and token, inserts a new healthy
// Instance, emits instanceRegistered, and returns the new credentials.
//
// Algorithm: verify key → mint id/token → construct record
// (healthy=true, created=lastUpdated=now) → insert → emit → return.
func (e *Engine) Register(ctx context.Context, req RegisterRequest, regKey string) (Credentials, error) {
	var span Span
	if e.telemetry != nil {
		ctx, span = e.telemetry.StartSpan(ctx, "registry.Register")
		defer span.End()
		span.SetAttribute("service.type", req.ServiceType)
	}

	if e.isDisposed() {
		err := newError("Engine.Register", "disposed", "", ErrDisposed)
		if span != nil {
			span.RecordError(err)
		}
		return Credentials{}, err
	}
	if !e.creds.verifyRegistrationKey(regKey) {
		err := newError("Engine.Register", "authentication", "", ErrAuthentication)
		if span != nil {
			span.RecordError(err)
		}
		return Credentials{}, err
	}
	if err := validateRegisterRequest(req); err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return Credentials{}, err
	}

	id := mintID()
	token, err := mintToken()
	if err != nil {
		wrapped := newError("Engine.Register", "internal", id, err)
		if span != nil {
			span.RecordError(wrapped)
		}
		return Credentials{}, wrapped
	}

	now := nowMillis()
	rec := &Instance{
		ID:          id,
		ServiceType: req.ServiceType,
		Host:        req.Host,
		Port:        req.Port,
		Created:     now,
		LastUpdated: now,
		Healthy:     true,
		Meta:        req.Meta,
		token:       token,
	}

	e.index.insert(rec)

	if span != nil {
		span.SetAttribute("instance.id", id)
	}
	e.logger.Info("instance registered", map[string]interface{}{
		"instance_id":  id,
		"service_type": req.ServiceType,
	})
	e.events.emit(Event{Type: EventInstanceRegistered, Instance: rec.clone()})

	return Credentials{ID: id, Token: token}, nil
}

// validateRegisterRequest enforces: non-empty serviceType, non-empty
// host, and a port that parses as a non-negative integer even though
// it's carried as a string.
func validateRegisterRequest(req RegisterRequest) error {
	if req.ServiceType == "" {
		return newError("Engine.Register", "validation", "", ErrValidation)
	}
	if req.Host == "" {
		return newError("Engine.Register", "validation", "", ErrValidation)
	}
	if req.Port == "" {
		return newError("Engine.Register", "validation", "", ErrValidation)
	}
	if n, err := strconv.Atoi(req.Port); err != nil || n < 0 {
		return newError("Engine.Register", "validation", "", ErrValidation)
	}
	return nil
}

// Unregister removes id if present and emits instanceRemoved. Idempotent:
// unregistering an absent or already-removed id is a no-op, never an
// error.
func (e *Engine) Unregister(ctx context.Context, id string) error {
	var span Span
	if e.telemetry != nil {
		ctx, span = e.telemetry.StartSpan(ctx, "registry.Unregister")
		defer span.End()
		span.SetAttribute("instance.id", id)
	}

	if e.isDisposed() {
		err := newError("Engine.Unregister", "disposed", id, ErrDisposed)
		if span != nil {
			span.RecordError(err)
		}
		return err
	}

	rec, ok := e.index.getByID(id)
	if !ok {
		return nil
	}
	e.index.remove(id)

	e.logger.Info("instance unregistered", map[string]interface{}{"instance_id": id})
	e.events.emit(Event{Type: EventInstanceRemoved, Instance: rec})

	return nil
}

// GetInstanceByID returns the instance regardless of health, or false if
// absent. On a disposed engine it reports absence for every id, as on an
// empty registry; it never returns an error.
func (e *Engine) GetInstanceByID(id string) (Instance, bool) {
	if e.isDisposed() {
		return Instance{}, false
	}
	return e.index.getByID(id)
}

// GetInstancesByType returns a snapshot of every currently-healthy
// instance of the given type, or nil if none.
func (e *Engine) GetInstancesByType(serviceType string) []Instance {
	if e.isDisposed() {
		return nil
	}
	return e.index.listByType(serviceType)
}

// ValidateInstanceAuth reports whether id exists and presentedToken
// matches its bound token, in constant time.
func (e *Engine) ValidateInstanceAuth(id, presentedToken string) bool {
	if e.isDisposed() {
		return false
	}
	return e.index.validateToken(id, presentedToken)
}

// Stats reports a point-in-time summary (instanceCount, serviceCount).
func (e *Engine) Stats() (instanceCount, serviceCount int) {
	return e.index.stats()
}

// listAll exposes a snapshot of every registered instance for the Health
// Supervisor's cycle worklist. Unexported: this is an internal
// collaborator interface, not part of the public lookup API.
func (e *Engine) listAll() []Instance {
	return e.index.listAll()
}

// applyHealthCheckResult feeds a single probe outcome back into the dual
// index and emits the matching event. The probe itself has no knowledge
// of engine state; the Health Supervisor calls this once per completed
// probe. Returns ErrServiceNotFound, wrapped, if id was unregistered
// mid-cycle — the Health Supervisor treats that as expected and does not
// surface it, but the span (when telemetry is configured) still records
// it so a trace shows why the probe outcome was discarded.
func (e *Engine) applyHealthCheckResult(ctx context.Context, id string, passed bool, body map[string]interface{}) error {
	var span Span
	if e.telemetry != nil {
		ctx, span = e.telemetry.StartSpan(ctx, "registry.applyHealthCheckResult")
		defer span.End()
		span.SetAttribute("instance.id", id)
		span.SetAttribute("probe.passed", passed)
	}

	if _, ok := e.index.getByID(id); !ok {
		err := newError("Engine.applyHealthCheckResult", "not_found", id, ErrServiceNotFound)
		if span != nil {
			span.RecordError(err)
		}
		return err
	}

	if passed {
		e.index.markHealthy(id)
		updated, _ := e.index.getByID(id)
		e.events.emit(Event{Type: EventHealthCheckPassed, Instance: updated, ProbeBody: body})
	} else {
		e.index.markUnhealthy(id)
		updated, _ := e.index.getByID(id)
		e.events.emit(Event{Type: EventHealthCheckFailed, Instance: updated})
	}
	return nil
}

// Dispose stops the engine: mutating operations begin failing with
// ErrDisposed and lookups behave as on an empty registry. Idempotent.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = stateDisposed
}

// Init reverses Dispose, returning the engine to Running. Existing data
// in the dual index is untouched — Dispose never clears it, it only
// gates the public API.
func (e *Engine) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = stateRunning
}

func (e *Engine) isDisposed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == stateDisposed
}
