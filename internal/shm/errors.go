package shm

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAlreadyExists     = errors.New("region already exists")
	ErrNotFound          = errors.New("region not found")
	ErrInvalidHandle     = errors.New("invalid handle")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrTimeout           = errors.New("lock timeout")
)
