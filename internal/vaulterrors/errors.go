// Package vaulterrors defines the Vault's error taxonomy. Each kind is a
// sentinel that call sites can compare against with errors.Is, after the
// underlying cause has been wrapped with fmt.Errorf("...: %w", kind).
package vaulterrors

import "errors"

var (
	// ErrStore marks an invariant violation or DB failure. Never swallowed;
	// always surfaced to the caller.
	ErrStore = errors.New("store error")

	// ErrRetrieverNotAvailable marks a retriever that detected a missing
	// prerequisite (no API key, no index). Callers treat it as an empty result.
	ErrRetrieverNotAvailable = errors.New("retriever not available")

	// ErrRetrieverQuery marks a runtime failure inside a specific retriever.
	// retrieve_safe wrappers catch it and return an empty result set.
	ErrRetrieverQuery = errors.New("retriever query error")

	// ErrReranker marks an LLM failure or invalid JSON response during
	// reranking. Callers fall back to score-based ordering.
	ErrReranker = errors.New("reranker error")

	// ErrLLM marks a non-200 or timed-out chat completion. Callers return an
	// "Error: ..." answer with zero token/cost accounting.
	ErrLLM = errors.New("llm error")

	// ErrConfig marks a malformed vlt.toml or a missing required [project] key.
	ErrConfig = errors.New("config error")

	// ErrDaemonUnavailable marks a short-timeout connect failure to the local
	// sync daemon; callers fall back to a direct call or skip the step.
	ErrDaemonUnavailable = errors.New("daemon unavailable")
)

// Wrap attaches a taxonomy kind to an underlying error so that both
// errors.Is(err, kind) and errors.Unwrap(err) work.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return &taggedError{kind: kind, cause: cause}
}

type taggedError struct {
	kind  error
	cause error
}

func (e *taggedError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }
func (e *taggedError) Unwrap() []error { return []error{e.kind, e.cause} }
