package metrics

import "fmt"

// ErrNotInitialised is returned by Get when called before Initialize or after
// Terminate (spec.md §3 "Registry", §7 "NotInitialised").
var ErrNotInitialised = fmt.Errorf("metrics: registry not initialised — call metrics.Initialize() during application startup before accessing the shared registry")

// ErrAlreadyInitialised is returned by Initialize when called twice without
// an intervening Terminate.
var ErrAlreadyInitialised = fmt.Errorf("metrics: registry already initialised")

// CardinalityLimitPolicy ∈ {drop, warn, error} controls admission behavior
// once maxCardinality is reached (spec.md §3, §4.4).
type CardinalityLimitPolicy string

const (
	PolicyDrop  CardinalityLimitPolicy = "drop"
	PolicyWarn  CardinalityLimitPolicy = "warn"
	PolicyError CardinalityLimitPolicy = "error"
)

// CardinalityExceededError is returned (under PolicyError) or would have been
// raised (under PolicyDrop/PolicyWarn, where it is logged instead) when a new
// metric name is refused because the registry is at maxCardinality.
type CardinalityExceededError struct {
	Name string
	Max  int
}

func (e *CardinalityExceededError) Error() string {
	return fmt.Sprintf("metrics: cardinality limit reached (max=%d); refusing new metric %q", e.Max, e.Name)
}

// ServiceUnavailableError is returned by exposition endpoints when no
// Registry is attached to the request (spec.md §7 "ServiceNotAvailable").
type ServiceUnavailableError struct {
	Service    string
	Reason     string
	Suggestion string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Reason, e.Suggestion)
}

// SnapshotError wraps a failure that occurred while assembling, formatting,
// or rendering a snapshot inside an exposition endpoint (spec.md §7
// "SnapshotFailure"). Operation names one of "snapshot", "format", "render".
type SnapshotError struct {
	Operation string
	Err       error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("metrics: %s failed: %v", e.Operation, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}
