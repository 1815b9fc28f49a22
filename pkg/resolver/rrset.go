package resolver

import (
	"errors"

	"github.com/miekg/dns"
)

// ErrIndexOutOfRange is returned by indexed RRSet access outside
// [0, Len).
var ErrIndexOutOfRange = errors.New("rrset index out of range")

// RRSet is an ordered collection of resource records sharing an owner
// name, type and class. Indexed access outside the valid range is a
// typed error, never a panic.
type RRSet struct {
	rrs []dns.RR
}

func newRRSet(rrs []dns.RR) *RRSet {
	return &RRSet{rrs: rrs}
}

func (s *RRSet) Len() int {
	return len(s.rrs)
}

// Get returns the i-th record.
func (s *RRSet) Get(i int) (dns.RR, error) {
	if i < 0 || i >= len(s.rrs) {
		return nil, ErrIndexOutOfRange
	}
	return s.rrs[i], nil
}

// Delete removes the i-th record, preserving order.
func (s *RRSet) Delete(i int) error {
	if i < 0 || i >= len(s.rrs) {
		return ErrIndexOutOfRange
	}
	s.rrs = append(s.rrs[:i], s.rrs[i+1:]...)
	return nil
}

// RRs returns the records in order. The slice is shared; callers must
// not mutate it.
func (s *RRSet) RRs() []dns.RR {
	return s.rrs
}
