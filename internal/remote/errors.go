package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Code is the machine-readable classification attached to every error the
// adapter returns. The sequence generator and sync manager branch on it.
type Code string

const (
	// CodeDuplicateKey: a unique constraint rejected an insert.
	CodeDuplicateKey Code = "duplicate_key"

	// CodeConflict: a conditional update matched no row because another
	// writer got there first; re-read and retry.
	CodeConflict Code = "conflict"

	// CodePermissionDenied: the backend's row-level policy rejected the call.
	CodePermissionDenied Code = "permission_denied"

	// CodeTransient: network failure, timeout, or a backend condition that
	// a later retry may not see.
	CodeTransient Code = "transient"

	// CodeNotFound: the requested row does not exist.
	CodeNotFound Code = "not_found"

	// CodeInternal: anything else.
	CodeInternal Code = "internal"
)

// Error wraps a backend failure with its classification and the operation
// that produced it.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the classification from err, falling back to a best-effort
// guess for errors that did not come through the adapter.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeTransient
	}
	return CodeInternal
}
