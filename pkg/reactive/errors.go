package reactive

import (
	"errors"
	"fmt"

	rxerrors "github.com/vango-dev/reactive/internal/errors"
)

var (
	// ErrStaleAccess is returned when a resource id no longer resolves to a
	// live arena slot.
	ErrStaleAccess = errors.New("reactive: stale resource access")

	// ErrTypeMismatch is returned by type-erased fetches that ask for a
	// different type than the one stored.
	ErrTypeMismatch = errors.New("reactive: resource type mismatch")

	// ErrDoubleDispose is returned when a resource is disposed after its
	// last reference was already released.
	ErrDoubleDispose = errors.New("reactive: resource disposed twice")

	// ErrEffectStackUnderflow reports a broken push/pop pairing on the
	// effect stack. It is only ever raised as a panic value.
	ErrEffectStackUnderflow = errors.New("reactive: effect stack underflow")

	// ErrBudgetExceeded is reported when an effect keeps re-triggering
	// itself or synchronous notifications nest too deeply.
	ErrBudgetExceeded = errors.New("reactive: budget exceeded")

	// ErrAlreadyManaged is returned when a resource is handed to a second scope.
	ErrAlreadyManaged = errors.New("reactive: resource already managed")

	// ErrScopeDisposed is returned when managing a resource in a scope that
	// has been torn down.
	ErrScopeDisposed = errors.New("reactive: scope disposed")
)

// ResourceError describes a failed arena operation.
type ResourceError struct {
	Op  string
	ID  ResourceID
	Err error

	// Want and Got are set for type mismatches.
	Want string
	Got  string
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("%s %s: %v (want %s, got %s)", e.Op, e.ID, e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the sentinel error.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

func newResourceError(op string, id ResourceID, err error) *ResourceError {
	return &ResourceError{Op: op, ID: id, Err: err}
}

// diagnosticCodes maps sentinels to their registered diagnostic codes.
var diagnosticCodes = []struct {
	err  error
	code string
}{
	{ErrStaleAccess, "R001"},
	{ErrTypeMismatch, "R002"},
	{ErrEffectStackUnderflow, "R003"},
	{ErrDoubleDispose, "R004"},
	{ErrBudgetExceeded, "R005"},
	{ErrAlreadyManaged, "R006"},
	{ErrScopeDisposed, "R007"},
}

// Diagnose converts a runtime error into a coded diagnostic.
// Errors that do not originate from this package are returned with an
// empty code.
func Diagnose(err error) *rxerrors.Diagnostic {
	if err == nil {
		return nil
	}
	for _, dc := range diagnosticCodes {
		if errors.Is(err, dc.err) {
			d := rxerrors.New(dc.code).Wrap(err)
			var re *ResourceError
			if errors.As(err, &re) {
				d.With("op", re.Op).With("resource", re.ID)
			}
			return d
		}
	}
	return rxerrors.Newf(rxerrors.CategoryRuntime, "unclassified runtime error").Wrap(err)
}
