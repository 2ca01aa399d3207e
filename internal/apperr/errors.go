package apperr

import "errors"

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidRoom  = errors.New("invalid room id")
	ErrPersistence  = errors.New("persistence failure")
	ErrInternal     = errors.New("internal error")
	ErrRateLimited  = errors.New("rate limited")
)
