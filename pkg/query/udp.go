// Package query sends DNS queries and receives validated responses
// over UDP. The receive path tolerates adversarial datagrams: anything
// that fails validation is either skipped or surfaced as a typed
// error, controlled by ReceiveOptions.
package query

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/miekg/dns"

	"github.com/nocta/stubres/pkg/dnsutils"
	"github.com/nocta/stubres/pkg/netpoll"
	"github.com/nocta/stubres/pkg/pool"
)

// RecvFunc waits for one datagram and returns it with its source.
// Implementations must respect the deadline.
type RecvFunc func(b []byte, deadline time.Time) (int, netip.AddrPort, error)

type ReceiveOptions struct {
	// IgnoreUnexpected skips datagrams from a non-matching source
	// instead of failing.
	IgnoreUnexpected bool

	// IgnoreErrors skips malformed datagrams and messages that do not
	// match the query instead of failing.
	IgnoreErrors bool

	// RaiseOnTruncation fails with ErrTruncated on a truncated
	// response instead of returning it as-is.
	RaiseOnTruncation bool

	// Backend overrides the process-wide polling backend.
	Backend netpoll.Backend

	// Recv replaces the wait-and-read step. Used by tests.
	Recv RecvFunc
}

// ReceiveUDP reads datagrams from conn until one decodes to a valid
// response to q from the expected source, or the deadline passes.
// Skipped datagrams do not extend the deadline. It returns the message
// and the time it was received.
//
// The expected source may be the zero AddrPort to disable the source
// check (e.g. on a connected socket).
func ReceiveUDP(conn net.PacketConn, expected netip.AddrPort, deadline time.Time,
	q *dns.Msg, opts ReceiveOptions) (*dns.Msg, time.Time, error) {

	recv := opts.Recv
	if recv == nil {
		backend := opts.Backend
		if backend == nil {
			backend = netpoll.Active()
		}
		recv = waitRecv(conn, backend)
	}

	buf := pool.GetBuf(dns.MaxMsgSize)
	defer buf.Release()
	b := buf.Bytes()

	for {
		if !time.Now().Before(deadline) {
			return nil, time.Time{}, ErrTimeout
		}

		n, src, err := recv(b, deadline)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, time.Time{}, ErrTimeout
			}
			return nil, time.Time{}, err
		}
		when := time.Now()

		m := pool.GetMsg()
		if err := m.Unpack(b[:n]); err != nil {
			pool.ReleaseMsg(m)
			if opts.IgnoreErrors {
				continue
			}
			return nil, time.Time{}, fmt.Errorf("cannot unpack response: %w", err)
		}

		if expected.IsValid() && !sameAddrPort(src, expected) {
			pool.ReleaseMsg(m)
			if opts.IgnoreUnexpected {
				continue
			}
			return nil, time.Time{}, fmt.Errorf("%w: %s", ErrUnexpectedSource, src)
		}

		// A wrong id makes the message not-a-response to q, even when
		// it carries the TC flag; truncation handling applies only to
		// matching responses.
		if !dnsutils.IsResponse(q, m) {
			pool.ReleaseMsg(m)
			if opts.IgnoreErrors {
				continue
			}
			return nil, time.Time{}, ErrBadResponse
		}

		if m.Truncated && opts.RaiseOnTruncation {
			return nil, time.Time{}, ErrTruncated
		}
		return m, when, nil
	}
}

// SendUDP packs and sends q to dest, waiting for socket writability
// first. The zero dest sends on the connected socket. It returns the
// number of bytes written and the send time.
func SendUDP(conn net.PacketConn, dest netip.AddrPort, q *dns.Msg,
	deadline time.Time, backend netpoll.Backend) (int, time.Time, error) {

	if backend == nil {
		backend = netpoll.Active()
	}

	wire, err := q.Pack()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("cannot pack query: %w", err)
	}

	if err := waitReady(conn, backend, netpoll.Writable, deadline); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, time.Time{}, ErrTimeout
		}
		return 0, time.Time{}, err
	}

	_ = conn.SetWriteDeadline(deadline)
	var n int
	if uc, ok := conn.(*net.UDPConn); ok && uc.RemoteAddr() != nil {
		n, err = uc.Write(wire)
	} else {
		n, err = conn.WriteTo(wire, net.UDPAddrFromAddrPort(dest))
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, time.Time{}, ErrTimeout
		}
		return 0, time.Time{}, err
	}
	return n, time.Now(), nil
}

// ExchangeUDP sends q to dest over conn and receives the matching
// response. Socket lifecycle belongs to the caller.
func ExchangeUDP(conn net.PacketConn, dest netip.AddrPort, q *dns.Msg,
	deadline time.Time, opts ReceiveOptions) (*dns.Msg, time.Time, error) {

	if _, _, err := SendUDP(conn, dest, q, deadline, opts.Backend); err != nil {
		return nil, time.Time{}, err
	}
	return ReceiveUDP(conn, dest, deadline, q, opts)
}

// waitRecv builds the default wait-then-read step: block on the
// polling backend until readable, then read one datagram.
func waitRecv(conn net.PacketConn, backend netpoll.Backend) RecvFunc {
	return func(b []byte, deadline time.Time) (int, netip.AddrPort, error) {
		if err := waitReady(conn, backend, netpoll.Readable, deadline); err != nil {
			return 0, netip.AddrPort{}, err
		}

		// The read deadline backs up the poll: a spurious wakeup must
		// not block past the caller's deadline.
		_ = conn.SetReadDeadline(deadline)
		n, addr, err := conn.ReadFrom(b)
		if err != nil {
			return 0, netip.AddrPort{}, err
		}
		return n, addrPortOf(addr), nil
	}
}

func waitReady(conn net.PacketConn, backend netpoll.Backend, want netpoll.Event, deadline time.Time) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil
	}

	var waitErr error
	if err := rc.Control(func(fd uintptr) {
		_, waitErr = backend.Wait(int(fd), want, deadline)
	}); err != nil {
		return nil
	}
	return waitErr
}

func sameAddrPort(a, b netip.AddrPort) bool {
	return a.Addr().Unmap() == b.Addr().Unmap() && a.Port() == b.Port()
}

func addrPortOf(addr net.Addr) netip.AddrPort {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.AddrPort()
	}
	ap, _ := netip.ParseAddrPort(addr.String())
	return ap
}
