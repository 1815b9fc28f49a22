package dnsutils

import (
	"strconv"

	"github.com/miekg/dns"
)

// IsResponse reports whether r is a response to query q: the QR bit is
// set, the id matches and the question section matches the query.
func IsResponse(q, r *dns.Msg) bool {
	if !r.Response {
		return false
	}
	if r.Id != q.Id {
		return false
	}
	if len(q.Question) != 1 || len(r.Question) != 1 {
		return false
	}

	q0 := q.Question[0]
	r0 := r.Question[0]
	return EqualNames(q0.Name, r0.Name) && q0.Qtype == r0.Qtype && q0.Qclass == r0.Qclass
}

// MinimalTTL returns the smallest TTL over rrs. ok is false when rrs is empty.
func MinimalTTL(rrs []dns.RR) (ttl uint32, ok bool) {
	ttl = ^uint32(0)
	for _, rr := range rrs {
		if hdr := rr.Header(); hdr.Ttl < ttl {
			ttl = hdr.Ttl
		}
	}
	if len(rrs) == 0 {
		return 0, false
	}
	return ttl, true
}

// NegativeTTL returns the TTL a negative result may be cached for,
// taken from the SOA record in the authority section per RFC 2308.
// ok is false when the message carries no SOA.
func NegativeTTL(m *dns.Msg) (ttl uint32, ok bool) {
	for _, rr := range m.Ns {
		if soa, isSOA := rr.(*dns.SOA); isSOA {
			ttl = soa.Hdr.Ttl
			if soa.Minttl < ttl {
				ttl = soa.Minttl
			}
			return ttl, true
		}
	}
	return 0, false
}

func QtypeToString(u uint16) string {
	return uint16Conv(u, dns.TypeToString)
}

func QclassToString(u uint16) string {
	return uint16Conv(u, dns.ClassToString)
}

func uint16Conv(u uint16, m map[uint16]string) string {
	if s, ok := m[u]; ok {
		return s
	}
	return strconv.Itoa(int(u))
}
