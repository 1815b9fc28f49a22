//go:build unix

package netpoll

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type selectBackend struct{}

// NewSelectBackend returns a Backend built on select(2).
func NewSelectBackend() Backend {
	return selectBackend{}
}

func (selectBackend) Name() string { return "select" }

func (selectBackend) Wait(fd int, want Event, deadline time.Time) (Event, error) {
	// select cannot represent descriptors beyond the fixed set size.
	if fd < 0 || fd >= 1024 {
		return 0, fmt.Errorf("netpoll: fd %d out of range for select", fd)
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, os.ErrDeadlineExceeded
		}

		var rfds, wfds unix.FdSet
		var rp, wp *unix.FdSet
		if want&Readable != 0 {
			rfds.Zero()
			rfds.Set(fd)
			rp = &rfds
		}
		if want&Writable != 0 {
			wfds.Zero()
			wfds.Set(fd)
			wp = &wfds
		}

		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		n, err := unix.Select(fd+1, rp, wp, nil, &tv)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, os.NewSyscallError("select", err)
		}
		if n == 0 {
			// Timeval elapsed; the loop re-checks the deadline.
			continue
		}

		var got Event
		if rp != nil && rp.IsSet(fd) {
			got |= Readable
		}
		if wp != nil && wp.IsSet(fd) {
			got |= Writable
		}
		if got != 0 {
			return got, nil
		}
	}
}
