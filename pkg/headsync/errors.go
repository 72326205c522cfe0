package headsync

import "errors"

var (
	// ErrClosed is returned by operations on a closed Manager or EventLoop.
	ErrClosed = errors.New("headsync: closed")

	// ErrQueueFull is returned by EventLoop.Dispatch when its queue is full.
	ErrQueueFull = errors.New("headsync: dispatch queue full")
)
