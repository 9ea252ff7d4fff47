package session

import "sync/atomic"

// Shutdown is a one-way graceful stop signal shared by every task of a run.
// The zero value is ready to use.
type Shutdown struct {
	requested atomic.Bool
}

// NewShutdown creates a Shutdown that has not been triggered.
func NewShutdown() *Shutdown {
	return &Shutdown{}
}

// Trigger requests a graceful stop. It reports whether this call was the
// one that flipped the flag.
func (s *Shutdown) Trigger() bool {
	return s.requested.CompareAndSwap(false, true)
}

// Requested reports whether Trigger has been called.
func (s *Shutdown) Requested() bool {
	return s.requested.Load()
}
