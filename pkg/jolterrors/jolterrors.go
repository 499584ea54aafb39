// Package jolterrors defines the core's error taxonomy: typed, wrapped
// errors the executor can distinguish with errors.As instead of catching
// and re-raising generically.
package jolterrors

import "fmt"

// GraphError reports a cycle or an unknown task name encountered while
// building the DAG. Fatal at build time, before any task runs.
type GraphError struct {
	Reason string
	Cycle  []string
}

// NewGraphError constructs a GraphError. cycle may be nil when the error is
// not cycle-shaped (e.g. an unknown requirement name).
func NewGraphError(reason string, cycle []string) error {
	return &GraphError{Reason: reason, Cycle: cycle}
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("graph error: %s: cycle witness %v", e.Reason, e.Cycle)
	}
	return fmt.Sprintf("graph error: %s", e.Reason)
}

// IdentityError reports an influence provider that raised while computing a
// task's identity. Fatal; aborts the build before any task runs.
type IdentityError struct {
	TaskName string
	Err      error
}

// NewIdentityError constructs an IdentityError.
func NewIdentityError(taskName string, err error) error {
	return &IdentityError{TaskName: taskName, Err: err}
}

func (e *IdentityError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("identity error for %q: %v", e.TaskName, e.Err)
}

// Unwrap exposes the underlying error.
func (e *IdentityError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RunError reports a user run/publish callable that raised. Recorded on the
// proxy as failed; propagated to the executor, which cancels ancestors.
type RunError struct {
	TaskName string
	Err      error
}

// NewRunError constructs a RunError.
func NewRunError(taskName string, err error) error {
	return &RunError{TaskName: taskName, Err: err}
}

func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("run error for %q: %v", e.TaskName, e.Err)
}

// Unwrap exposes the underlying error.
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CacheError reports a cache download or upload failure. Download failures
// are non-fatal (the caller falls back to a local build); upload failures
// are fatal once the task completed successfully, since the artifact cannot
// be certified without it.
type CacheError struct {
	TaskName string
	Op       string // "download", "commit" or "upload"
	Fatal    bool
	Err      error
}

// NewCacheError constructs a CacheError.
func NewCacheError(taskName, op string, fatal bool, err error) error {
	return &CacheError{TaskName: taskName, Op: op, Fatal: fatal, Err: err}
}

func (e *CacheError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cache %s error for %q: %v", e.Op, e.TaskName, e.Err)
}

// Unwrap exposes the underlying error.
func (e *CacheError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvariantError reports a violated core invariant: re-completion of an
// already-completed proxy, or an attempt to run an extension in isolation.
// Always a fatal assertion failure, never recoverable.
type InvariantError struct {
	Message string
}

// NewInvariantError constructs an InvariantError.
func NewInvariantError(message string) error {
	return &InvariantError{Message: message}
}

func (e *InvariantError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invariant violated: %s", e.Message)
}
