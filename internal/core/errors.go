package core

import (
	"errors"
	"fmt"
)

// StateSource identifies which layer disagreed about connectivity when a
// stop operation found nothing to stop.
type StateSource int

const (
	// SourceState means the logical running flag was false.
	SourceState StateSource = iota
	// SourceTask means no background task handle was present.
	SourceTask
	// SourceHandle means no underlying connection handle was present.
	SourceHandle
)

func (s StateSource) String() string {
	switch s {
	case SourceState:
		return "state"
	case SourceTask:
		return "task"
	case SourceHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// NotConnectedError reports a stop operation on an instance that one of the
// three connectivity layers considers not connected.
type NotConnectedError struct {
	Source StateSource
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("instance is not connected [%s]", e.Source)
}

// IsNotConnected reports whether err is a NotConnectedError of any source.
func IsNotConnected(err error) bool {
	var nc *NotConnectedError
	return errors.As(err, &nc)
}

var (
	// ErrOffline rejects operations that need a running instance.
	ErrOffline = errors.New("instance offline")
	// ErrKillTimeout means the task outlived the soft-kill grace period and
	// did not stop even after the forced abort.
	ErrKillTimeout = errors.New("task cancellation timed out")
)
