package entity

import "errors"

var (
	ErrMalformedOutput    = errors.New("malformed model output")
	ErrCompactionContract = errors.New("compaction contract violated")
	ErrToolNotFound       = errors.New("tool not found")
	ErrRunFatal           = errors.New("run failed")
	ErrCancelled          = errors.New("run cancelled")
	ErrRunNotFound        = errors.New("run not found")
	ErrRunExists          = errors.New("run already exists")
	ErrInvalidRunID       = errors.New("invalid run id")
)
