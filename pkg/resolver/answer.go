package resolver

import (
	"errors"
	"time"

	"github.com/miekg/dns"

	"github.com/nocta/stubres/pkg/dnsutils"
)

// ErrNoAnswer means the response contains no records answering the
// question and the caller did not opt into empty answers.
var ErrNoAnswer = errors.New("response contains no answer to the question")

// Answer binds a decoded response message to the RRset that answers
// the query, following any CNAME chain from the query name. Its
// expiration is fixed at construction from the smallest TTL observed
// and never recomputed.
type Answer struct {
	// Name is the canonical query name.
	Name   string
	Qtype  uint16
	Qclass uint16

	// CanonicalName is the owner name of the matched RRset: the query
	// name after following CNAME indirection.
	CanonicalName string

	// Msg is the full response message.
	Msg *dns.Msg

	rrset      *RRSet
	expiration time.Time
}

// NewAnswer derives the RRset for (name, qtype, qclass) from msg.
// When no matching records exist it fails with ErrNoAnswer unless
// allowNoAnswer is set, in which case the RRset is empty and the
// expiration derives from the negative-caching SOA, if any.
func NewAnswer(name string, qtype, qclass uint16, msg *dns.Msg, allowNoAnswer bool) (*Answer, error) {
	qname := dnsutils.CanonicalName(name)
	owner := qname

	var matched []dns.RR
	for hop := 0; hop <= len(msg.Answer); hop++ {
		matched = matchSection(msg.Answer, owner, qtype, qclass)
		if len(matched) > 0 || qtype == dns.TypeCNAME {
			break
		}
		target, ok := followCNAME(msg.Answer, owner, qclass)
		if !ok {
			break
		}
		owner = dnsutils.CanonicalName(target)
	}

	a := &Answer{
		Name:          qname,
		Qtype:         qtype,
		Qclass:        qclass,
		CanonicalName: owner,
		Msg:           msg,
		rrset:         newRRSet(matched),
	}

	now := time.Now()
	if len(matched) > 0 {
		ttl, _ := dnsutils.MinimalTTL(matched)
		a.expiration = now.Add(time.Duration(ttl) * time.Second)
		return a, nil
	}

	if !allowNoAnswer {
		return nil, ErrNoAnswer
	}
	if ttl, ok := dnsutils.NegativeTTL(msg); ok {
		a.expiration = now.Add(time.Duration(ttl) * time.Second)
	} else {
		a.expiration = now
	}
	return a, nil
}

// NewCachedAnswer rebuilds an Answer from a cached message, keeping
// the expiration recorded when the message was first cached.
func NewCachedAnswer(name string, qtype, qclass uint16, msg *dns.Msg, expiration time.Time) (*Answer, error) {
	a, err := NewAnswer(name, qtype, qclass, msg, true)
	if err != nil {
		return nil, err
	}
	a.expiration = expiration
	return a, nil
}

// RRSet returns the matched records. It is empty only when the answer
// was constructed with allowNoAnswer.
func (a *Answer) RRSet() *RRSet {
	return a.rrset
}

func (a *Answer) Len() int {
	return a.rrset.Len()
}

func (a *Answer) Get(i int) (dns.RR, error) {
	return a.rrset.Get(i)
}

func (a *Answer) Delete(i int) error {
	return a.rrset.Delete(i)
}

// IsEmpty reports whether the answer holds no records.
func (a *Answer) IsEmpty() bool {
	return a.rrset.Len() == 0
}

// ExpiresAt returns the fixed expiration computed at construction.
func (a *Answer) ExpiresAt() time.Time {
	return a.expiration
}

func matchSection(rrs []dns.RR, owner string, qtype, qclass uint16) []dns.RR {
	var out []dns.RR
	for _, rr := range rrs {
		hdr := rr.Header()
		if hdr.Rrtype == qtype && hdr.Class == qclass && dnsutils.EqualNames(hdr.Name, owner) {
			out = append(out, rr)
		}
	}
	return out
}

func followCNAME(rrs []dns.RR, owner string, qclass uint16) (target string, ok bool) {
	for _, rr := range rrs {
		if cname, isCNAME := rr.(*dns.CNAME); isCNAME {
			hdr := cname.Header()
			if hdr.Class == qclass && dnsutils.EqualNames(hdr.Name, owner) {
				return cname.Target, true
			}
		}
	}
	return "", false
}
