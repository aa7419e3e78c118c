package capability

import (
	"fmt"
	"time"
)

// ConfigurationError reports a registration that cannot be accepted.
type ConfigurationError struct {
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid provider registration %q: %s", e.Name, e.Reason)
}

// NotFoundError reports a lookup of a name that is not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// DisabledError reports an attempt to execute a disabled provider.
type DisabledError struct {
	Name string
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("provider %q is disabled", e.Name)
}

// ExecutionError wraps any failure raised while building or executing a
// provider. Err holds the underlying cause for errors.Is/As.
type ExecutionError struct {
	Provider string
	Elapsed  time.Duration
	Message  string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("provider %q failed after %s: %s", e.Provider, e.Elapsed.Round(time.Millisecond), e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
