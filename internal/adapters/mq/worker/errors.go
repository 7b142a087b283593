package worker

import "errors"

// ErrStopped marks a delivery abandoned because the worker was stopped.
var ErrStopped = errors.New("worker stopped")
