package typelens

// errors.go — error taxonomy for the facade and the supplier.
//
//	ConfigError   — no usable load backend; fatal, synchronous.
//	PipelineError — the load pipeline reported errors (warnings escalate).
//	ArgumentError — wrong construct category, or construct not addressable
//	                through the Domain in use; precondition violation.
//	errClosed     — internal marker for a close-induced pipeline exit;
//	                triggers one transparent rebuild, never surfaced by Get.

import (
	"errors"
	"fmt"
	"strings"
)

// errClosed marks a pipeline that exited because its handshake was
// released. It must never escape Supplier.Get.
var errClosed = errors.New("environment released")

// ConfigError means the pipeline could not start at all: no usable go
// driver, unresolvable load patterns, or an unusable workspace.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("typelens: %s: %v", e.Reason, e.Err)
	}
	return "typelens: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PipelineError aggregates the diagnostics of a failed load. Warnings
// are escalated: any diagnostic fails the pipeline.
type PipelineError struct {
	Diags []string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("typelens: load failed with %d diagnostic(s):\n%s",
		len(e.Diags), strings.Join(e.Diags, "\n"))
}

// ArgumentError reports a construct argument that cannot be used for the
// requested operation: wrong category, or owned by a different Domain.
// These are caller bugs, signaled synchronously and never retried.
type ArgumentError struct {
	Op     string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("typelens: %s: %s", e.Op, e.Reason)
}
