// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidFeedback indicates feedback that cannot be applied: an unknown
// enum value, a missing context, or an observed value outside the
// effectiveness range. Out-of-range values are rejected, never clamped.
var ErrInvalidFeedback = errors.New("invalid feedback")
