package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison via errors.Is().
var (
	// Configuration errors — fatal at process startup.
	ErrMissingConfiguration = errors.New("missing required configuration")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Authentication errors — wrong registration key, or wrong (id, token).
	ErrAuthentication = errors.New("authentication failed")

	// Validation errors — malformed register() input.
	ErrValidation = errors.New("validation failed")

	// Disposed — the engine has been stopped.
	ErrDisposed = errors.New("registry disposed")

	// ErrServiceNotFound is returned by applyHealthCheckResult when a probe
	// outcome arrives for an id that was unregistered mid-cycle. The Health
	// Supervisor treats it as expected and does not surface it to its
	// caller, but it still reaches any configured Span via RecordError.
	// GetInstanceByID/GetInstancesByType never return it — they report
	// absence via their bool/nil return instead.
	ErrServiceNotFound = errors.New("service not found")
)

// RegistryError carries structured context about a failed operation: an
// operation name, a kind, an optional id, and a wrapped cause.
type RegistryError struct {
	Op      string // e.g. "Engine.Register"
	Kind    string // e.g. "authentication", "validation", "disposed"
	ID      string // instance id, if applicable
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

func newError(op, kind, id string, err error) *RegistryError {
	return &RegistryError{Op: op, Kind: kind, ID: id, Err: err}
}

// IsAuthentication reports whether err is (or wraps) an authentication failure.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDisposed reports whether err is (or wraps) an operation-on-disposed-engine failure.
func IsDisposed(err error) bool {
	return errors.Is(err, ErrDisposed)
}

// IsConfigurationError reports whether err is (or wraps) a configuration failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingConfiguration) || errors.Is(err, ErrInvalidConfiguration)
}

// IsServiceNotFound reports whether err is (or wraps) a probe outcome
// discarded because its instance was unregistered mid-cycle.
func IsServiceNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}
