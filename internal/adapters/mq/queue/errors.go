package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrBackpressure = errors.New("replay queue is full")
	ErrQueueClosed  = errors.New("replay queue is closed")
)
