package registry

import (
	"context"
)

// Logger is the minimal structured logging contract used throughout this
// module. Implementations must be safe for concurrent use.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with component tagging so different
// parts of the engine (the Registry Core, the Health Supervisor) can log
// under distinct component names while sharing one underlying sink.
//
// Component naming convention used by this module:
//
//	"registry/engine"  - Registry Core (register/unregister/lookups)
//	"registry/health"  - Health Supervisor (probe cycles)
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is an optional tracing hook. NewEngine and NewSupervisor
// default to NoOpTelemetry; callers may supply a real implementation (e.g.
// one backed by OpenTelemetry) via WithTelemetry or WithSupervisorTelemetry.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is a single traced operation.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// NoOpLogger discards everything. Used when no logger is configured.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}

// NoOpTelemetry discards spans. Used when no telemetry is configured.
type NoOpTelemetry struct{}

func (NoOpTelemetry) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noOpSpan{}
}

type noOpSpan struct{}

func (noOpSpan) End()                                 {}
func (noOpSpan) SetAttribute(string, interface{})     {}
func (noOpSpan) RecordError(error)                    {}
