//go:build linux

package netpoll

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type pollBackend struct{}

// NewPollBackend returns a Backend built on poll(2). It has no
// descriptor limit, unlike select.
func NewPollBackend() Backend {
	return pollBackend{}
}

func (pollBackend) Name() string { return "poll" }

func (pollBackend) Wait(fd int, want Event, deadline time.Time) (Event, error) {
	var events int16
	if want&Readable != 0 {
		events |= unix.POLLIN
	}
	if want&Writable != 0 {
		events |= unix.POLLOUT
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timeoutMs := int(remaining.Milliseconds())
		if timeoutMs <= 0 {
			timeoutMs = 1
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, os.NewSyscallError("poll", err)
		}
		if n == 0 {
			continue
		}

		revents := fds[0].Revents
		var got Event
		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			got |= Readable
		}
		if revents&unix.POLLOUT != 0 {
			got |= Writable
		}
		if got != 0 {
			return got, nil
		}
	}
}
