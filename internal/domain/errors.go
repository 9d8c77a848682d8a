package domain

import "errors"

// Sentinel errors shared by stores, services and handlers. Handlers map them to
// HTTP status codes with errors.Is; callers wrap them with context.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
