package domain

import "errors"

// ErrNormal is the exit reason of an owner that finished without failure.
var ErrNormal = errors.New("normal")

// IsNormal reports whether reason describes a normal exit.
// A nil reason is treated as normal.
func IsNormal(reason error) bool {
	return reason == nil || errors.Is(reason, ErrNormal)
}
