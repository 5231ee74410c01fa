package model

import "errors"

// Typed failures surfaced by the approval store and mapped onto HTTP
// statuses by the gateway. Transient backing-store errors are wrapped in
// ErrUnavailable so callers can retry at the transport layer; the store
// itself never retries.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already processed")
	ErrExpired     = errors.New("approval window expired")
	ErrUnavailable = errors.New("store unavailable")
)
