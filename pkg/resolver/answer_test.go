package resolver

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func newA(name string, ttl uint32, ip byte) dns.RR {
	return &dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   []byte{192, 0, 2, ip},
	}
}

func newCNAME(name, target string, ttl uint32) dns.RR {
	return &dns.CNAME{
		Hdr:    dns.RR_Header{Name: name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: ttl},
		Target: target,
	}
}

func newReply(qname string, qtype uint16, answer ...dns.RR) *dns.Msg {
	q := new(dns.Msg)
	q.SetQuestion(qname, qtype)
	r := new(dns.Msg)
	r.SetReply(q)
	r.Answer = answer
	return r
}

func TestNewAnswer(t *testing.T) {
	r := require.New(t)

	m := newReply("example.com.", dns.TypeA, newA("example.com.", 300, 1), newA("example.com.", 60, 2))
	a, err := NewAnswer("example.com.", dns.TypeA, dns.ClassINET, m, false)
	r.NoError(err)
	r.Equal("example.com.", a.CanonicalName)
	r.Equal(2, a.Len())
	r.False(a.IsEmpty())

	// Expiration comes from the smallest ttl.
	d := time.Until(a.ExpiresAt())
	r.Greater(d, 59*time.Second)
	r.LessOrEqual(d, 60*time.Second)
}

func TestNewAnswer_cnameChain(t *testing.T) {
	r := require.New(t)

	m := newReply("www.example.com.", dns.TypeA,
		newCNAME("www.example.com.", "web.example.com.", 300),
		newCNAME("web.example.com.", "host.example.net.", 300),
		newA("host.example.net.", 300, 1),
	)
	a, err := NewAnswer("www.example.com.", dns.TypeA, dns.ClassINET, m, false)
	r.NoError(err)
	r.Equal("host.example.net.", a.CanonicalName)
	r.Equal(1, a.Len())
	rr, err := a.Get(0)
	r.NoError(err)
	r.Equal(dns.TypeA, rr.Header().Rrtype)
}

func TestNewAnswer_qtypeCNAME(t *testing.T) {
	r := require.New(t)

	// Asking for the CNAME itself must not follow the chain.
	m := newReply("www.example.com.", dns.TypeCNAME,
		newCNAME("www.example.com.", "web.example.com.", 300),
		newCNAME("web.example.com.", "host.example.net.", 300),
	)
	a, err := NewAnswer("www.example.com.", dns.TypeCNAME, dns.ClassINET, m, false)
	r.NoError(err)
	r.Equal("www.example.com.", a.CanonicalName)
	r.Equal(1, a.Len())
}

func TestNewAnswer_noAnswer(t *testing.T) {
	r := require.New(t)

	m := newReply("example.com.", dns.TypeA)
	_, err := NewAnswer("example.com.", dns.TypeA, dns.ClassINET, m, false)
	r.ErrorIs(err, ErrNoAnswer)

	m.Ns = append(m.Ns, &dns.SOA{
		Hdr:    dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Minttl: 300,
	})
	a, err := NewAnswer("example.com.", dns.TypeA, dns.ClassINET, m, true)
	r.NoError(err)
	r.True(a.IsEmpty())
	r.Equal(0, a.RRSet().Len())

	// Negative caching uses the soa minimum.
	d := time.Until(a.ExpiresAt())
	r.Greater(d, 299*time.Second)
	r.LessOrEqual(d, 300*time.Second)
}

func TestNewCachedAnswer(t *testing.T) {
	r := require.New(t)

	m := newReply("example.com.", dns.TypeA, newA("example.com.", 300, 1))
	expiration := time.Now().Add(42 * time.Second)
	a, err := NewCachedAnswer("example.com.", dns.TypeA, dns.ClassINET, m, expiration)
	r.NoError(err)
	r.Equal(expiration, a.ExpiresAt())
}

func TestRRSet(t *testing.T) {
	r := require.New(t)

	s := newRRSet([]dns.RR{newA("a.", 1, 1), newA("b.", 1, 2), newA("c.", 1, 3)})
	r.Equal(3, s.Len())

	_, err := s.Get(3)
	r.ErrorIs(err, ErrIndexOutOfRange)
	_, err = s.Get(-1)
	r.ErrorIs(err, ErrIndexOutOfRange)
	r.ErrorIs(s.Delete(3), ErrIndexOutOfRange)

	r.NoError(s.Delete(1))
	r.Equal(2, s.Len())
	rr, err := s.Get(1)
	r.NoError(err)
	r.Equal("c.", rr.Header().Name)
}

func TestRRSet_empty(t *testing.T) {
	r := require.New(t)

	s := newRRSet(nil)
	r.Equal(0, s.Len())
	r.Empty(s.RRs())
	_, err := s.Get(0)
	r.ErrorIs(err, ErrIndexOutOfRange)
	r.ErrorIs(s.Delete(0), ErrIndexOutOfRange)
}
