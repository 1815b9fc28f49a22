//go:build !unix

package netpoll

import "time"

// deadlineBackend reports readiness immediately and leaves timeout
// enforcement to the socket read/write deadline set by the caller.
// Used on platforms without a usable select/poll surface.
type deadlineBackend struct{}

func (deadlineBackend) Name() string { return "deadline" }

func (deadlineBackend) Wait(fd int, want Event, deadline time.Time) (Event, error) {
	return want, nil
}
