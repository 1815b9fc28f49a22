package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/nocta/stubres/pkg/dnsutils"
)

var (
	// ErrMergeBase means both merge operands are non-aggregated.
	ErrMergeBase = errors.New("cannot merge two non-aggregated nxdomain values")

	// ErrNotAggregate means an operation requiring qnames/responses was
	// called on a non-aggregated value.
	ErrNotAggregate = errors.New("aggregated nxdomain required")
)

// NXDomain is the "name does not exist" result. It has two variants:
// the base variant carries no detail and serves as a merge identity;
// the aggregated variant records every queried name together with the
// negative response message that produced it.
//
// NXDomain implements error. The message reflects the current state,
// so it is accurate after merges.
type NXDomain struct {
	// qnames is nil exactly when the value is the base variant.
	qnames    []string
	responses map[string]*dns.Msg
}

// NewNXDomain returns the base variant.
func NewNXDomain() *NXDomain {
	return &NXDomain{}
}

// NewNXDomainAggregate returns the aggregated variant. qnames must be
// non-empty and responses non-nil (it may lack entries for some
// qnames, and may carry extra names used only by CanonicalName).
// Duplicate qnames are dropped, keeping first occurrence order.
func NewNXDomainAggregate(qnames []string, responses map[string]*dns.Msg) (*NXDomain, error) {
	if len(qnames) == 0 {
		return nil, errors.New("nxdomain aggregate requires at least one qname")
	}
	if responses == nil {
		return nil, errors.New("nxdomain aggregate requires responses alongside qnames")
	}

	e := &NXDomain{
		qnames:    make([]string, 0, len(qnames)),
		responses: make(map[string]*dns.Msg, len(responses)),
	}
	seen := make(map[string]struct{}, len(qnames))
	for _, q := range qnames {
		c := dnsutils.CanonicalName(q)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		e.qnames = append(e.qnames, q)
	}
	for name, m := range responses {
		e.responses[dnsutils.CanonicalName(name)] = m
	}
	return e, nil
}

// IsAggregate reports whether e carries qnames/responses.
func (e *NXDomain) IsAggregate() bool {
	return e.qnames != nil
}

// QNames returns the queried names in order. Nil on the base variant.
func (e *NXDomain) QNames() []string {
	return e.qnames
}

// Response returns the negative response recorded for name.
func (e *NXDomain) Response(name string) (*dns.Msg, bool) {
	m, ok := e.responses[dnsutils.CanonicalName(name)]
	return m, ok
}

func (e *NXDomain) Error() string {
	switch len(e.qnames) {
	case 0:
		return "The DNS query name does not exist."
	case 1:
		return fmt.Sprintf("The DNS query name does not exist: %s", e.qnames[0])
	default:
		return fmt.Sprintf("None of DNS query names exist: %s", strings.Join(e.qnames, ", "))
	}
}

// MergeNXDomain combines two results from different servers or tried
// names. The base variant is a two-sided identity; merging two base
// values is an error. For two aggregates the left operand's name order
// is kept with the right's unseen names appended, and the right
// operand's responses win name collisions.
func MergeNXDomain(a, b *NXDomain) (*NXDomain, error) {
	switch {
	case !a.IsAggregate() && !b.IsAggregate():
		return nil, ErrMergeBase
	case !a.IsAggregate():
		return b, nil
	case !b.IsAggregate():
		return a, nil
	}

	merged := &NXDomain{
		qnames:    make([]string, 0, len(a.qnames)+len(b.qnames)),
		responses: make(map[string]*dns.Msg, len(a.responses)+len(b.responses)),
	}

	seen := make(map[string]struct{}, len(a.qnames))
	for _, q := range a.qnames {
		seen[dnsutils.CanonicalName(q)] = struct{}{}
		merged.qnames = append(merged.qnames, q)
	}
	for _, q := range b.qnames {
		c := dnsutils.CanonicalName(q)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		merged.qnames = append(merged.qnames, q)
	}

	for name, m := range a.responses {
		merged.responses[name] = m
	}
	for name, m := range b.responses {
		merged.responses[name] = m
	}
	return merged, nil
}

// CanonicalName walks CNAME/DNAME indirection through the recorded
// responses, starting from the first queried name, and returns the
// last name reached. It fails on the base variant.
//
// The walk is bounded by the number of recorded responses, so chains
// that are cyclic across merged responses terminate.
func (e *NXDomain) CanonicalName() (string, error) {
	if !e.IsAggregate() {
		return "", ErrNotAggregate
	}

	current := e.qnames[0]
	for i := 0; i <= len(e.responses); i++ {
		resp, ok := e.responses[dnsutils.CanonicalName(current)]
		if !ok {
			break
		}
		next, advanced := followIndirection(resp, current)
		if !advanced || dnsutils.EqualNames(next, current) {
			break
		}
		current = next
	}
	return current, nil
}

// followIndirection applies one step of indirection from the answer
// section: a DNAME owning an ancestor of name rewrites its suffix,
// otherwise a CNAME for name substitutes its target.
func followIndirection(resp *dns.Msg, name string) (string, bool) {
	for _, rr := range resp.Answer {
		if d, ok := rr.(*dns.DNAME); ok {
			if rewritten, ok := dnsutils.RewriteSuffix(name, d.Header().Name, d.Target); ok {
				return rewritten, true
			}
		}
	}
	for _, rr := range resp.Answer {
		if c, ok := rr.(*dns.CNAME); ok && dnsutils.EqualNames(c.Header().Name, name) {
			return c.Target, true
		}
	}
	return "", false
}
