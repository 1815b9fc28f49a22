package query

import "errors"

var (
	// ErrTimeout means the deadline elapsed while waiting for an
	// acceptable response.
	ErrTimeout = errors.New("dns operation timed out")

	// ErrUnexpectedSource means a datagram arrived from an address
	// other than the queried server.
	ErrUnexpectedSource = errors.New("response from unexpected source")

	// ErrBadResponse means the datagram decoded to a message that is
	// not a response to the query (wrong id or question).
	ErrBadResponse = errors.New("response does not match the query")

	// ErrTruncated means the response carries the TC flag and the
	// caller asked for truncation to fail.
	ErrTruncated = errors.New("response message is truncated")
)
