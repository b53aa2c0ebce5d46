package anim

import "errors"

var (
	ErrNegativeDelay = errors.New("anim: delay must be >= 0")
	ErrStopped       = errors.New("anim: scheduler shut down")
)
