// Package engineerr implements the error taxonomy of §7: a small set of
// sentinel values wrapped with caller-supplied context (a file path, a
// commit SHA), checked with errors.Is/errors.As. Grounded on the teacher's
// plain errors.New/fmt.Errorf("...: %w", err) style, generalized into a
// single wrapper type so every package in the module reports failures
// through the same five sentinels instead of ad hoc strings.
package engineerr

import (
	"errors"
	"fmt"
)

var (
	// DiffFailure marks a failure to compute or apply a diff.
	DiffFailure = errors.New("diff failure")
	// IoFailure marks a filesystem or git-plumbing I/O failure.
	IoFailure = errors.New("io failure")
	// SchemaFailure marks a wire-format or schema-version mismatch.
	SchemaFailure = errors.New("schema failure")
	// RewriteLineage marks a history-rewrite coordinator failure to
	// reconstruct or resolve a commit's lineage.
	RewriteLineage = errors.New("rewrite lineage failure")
	// Missing marks an absent resource. Never returned from authorship-log
	// read paths — those return an empty log instead — only from lookups
	// that have no sensible empty value (a commit, a blob).
	Missing = errors.New("missing")
)

// Error pairs one of the sentinels above with context and an optional
// underlying cause.
type Error struct {
	Sentinel error
	Context  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Context, e.Sentinel, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Context, e.Sentinel)
}

func (e *Error) Unwrap() error { return e.Sentinel }

// New builds a sentinel error carrying context with no underlying cause.
func New(sentinel error, context string) error {
	return &Error{Sentinel: sentinel, Context: context}
}

// Wrap builds a sentinel error carrying context and an underlying cause.
// If cause is nil, Wrap behaves like New.
func Wrap(sentinel error, context string, cause error) error {
	return &Error{Sentinel: sentinel, Context: context, Cause: cause}
}
