package resolver

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/nocta/stubres/pkg/cache"
	"github.com/nocta/stubres/pkg/query"
)

func testResolver(t *testing.T, cfg Config, exchange ExchangeFunc) *Resolver {
	t.Helper()
	if len(cfg.Nameservers) == 0 {
		cfg.Nameservers = []string{"198.51.100.1"}
	}
	r, err := NewResolver(ResolverOpts{
		Config:   cfg,
		Cache:    cache.NewLRUCache[*Answer](16, nil),
		Exchange: exchange,
	})
	require.NoError(t, err)
	return r
}

func TestResolver_resolve(t *testing.T) {
	r := require.New(t)

	var calls int32
	res := testResolver(t, Config{}, func(_ context.Context, _ netip.AddrPort, q *dns.Msg, _ time.Time) (*dns.Msg, error) {
		atomic.AddInt32(&calls, 1)
		m := new(dns.Msg)
		m.SetReply(q)
		m.Answer = []dns.RR{newA(q.Question[0].Name, 300, 1)}
		return m, nil
	})

	a, err := res.Resolve(context.Background(), "example.com", dns.TypeA)
	r.NoError(err)
	r.Equal("example.com.", a.CanonicalName)
	r.Equal(1, a.Len())

	// Second lookup is served from the cache.
	_, err = res.Resolve(context.Background(), "example.com", dns.TypeA)
	r.NoError(err)
	r.Equal(int32(1), atomic.LoadInt32(&calls))

	addrs, err := res.LookupA(context.Background(), "example.com")
	r.NoError(err)
	r.Equal([]netip.Addr{netip.MustParseAddr("192.0.2.1")}, addrs)
}

func TestResolver_searchList(t *testing.T) {
	r := require.New(t)

	var tried []string
	res := testResolver(t, Config{Search: []string{"corp.example", "example"}},
		func(_ context.Context, _ netip.AddrPort, q *dns.Msg, _ time.Time) (*dns.Msg, error) {
			qname := q.Question[0].Name
			tried = append(tried, qname)
			m := new(dns.Msg)
			if qname == "www.example." {
				m.SetReply(q)
				m.Answer = []dns.RR{newA(qname, 300, 1)}
			} else {
				m.SetRcode(q, dns.RcodeNameError)
			}
			return m, nil
		})

	a, err := res.Resolve(context.Background(), "www", dns.TypeA)
	r.NoError(err)
	r.Equal("www.example.", a.Name)
	r.Equal([]string{"www.corp.example.", "www.example."}, tried)
}

func TestResolver_nxdomainAggregation(t *testing.T) {
	r := require.New(t)

	res := testResolver(t, Config{Search: []string{"corp.example", "example"}},
		func(_ context.Context, _ netip.AddrPort, q *dns.Msg, _ time.Time) (*dns.Msg, error) {
			m := new(dns.Msg)
			m.SetRcode(q, dns.RcodeNameError)
			return m, nil
		})

	_, err := res.Resolve(context.Background(), "www", dns.TypeA)
	var nx *NXDomain
	r.ErrorAs(err, &nx)
	r.Equal([]string{"www.corp.example.", "www.example.", "www."}, nx.QNames())
	r.Equal("None of DNS query names exist: www.corp.example., www.example., www.", nx.Error())

	// Each tried name carries its negative response.
	for _, qname := range nx.QNames() {
		m, ok := nx.Response(qname)
		r.True(ok)
		r.Equal(dns.RcodeNameError, m.Rcode)
	}
}

func TestResolver_allServersFail(t *testing.T) {
	r := require.New(t)

	res := testResolver(t, Config{Nameservers: []string{"198.51.100.1", "198.51.100.2"}},
		func(_ context.Context, _ netip.AddrPort, q *dns.Msg, _ time.Time) (*dns.Msg, error) {
			m := new(dns.Msg)
			m.SetRcode(q, dns.RcodeServerFailure)
			return m, nil
		})

	_, err := res.Resolve(context.Background(), "example.com.", dns.TypeA)
	r.ErrorIs(err, ErrNoNameservers)
}

func TestResolver_lifetime(t *testing.T) {
	r := require.New(t)

	res := testResolver(t, Config{Timeout: 10 * time.Millisecond, Lifetime: 50 * time.Millisecond},
		func(_ context.Context, _ netip.AddrPort, _ *dns.Msg, deadline time.Time) (*dns.Msg, error) {
			time.Sleep(time.Until(deadline))
			return nil, query.ErrTimeout
		})

	start := time.Now()
	_, err := res.Resolve(context.Background(), "example.com.", dns.TypeA)
	r.ErrorIs(err, query.ErrTimeout)
	r.Less(time.Since(start), time.Second)
}

func TestResolver_invalidInput(t *testing.T) {
	r := require.New(t)

	_, err := NewResolver(ResolverOpts{})
	r.Error(err)

	_, err = NewResolver(ResolverOpts{Config: Config{Nameservers: []string{"not an address"}}})
	r.Error(err)

	res := testResolver(t, Config{}, func(_ context.Context, _ netip.AddrPort, _ *dns.Msg, _ time.Time) (*dns.Msg, error) {
		t.Fatal("exchange reached with an invalid name")
		return nil, nil
	})
	_, err = res.Resolve(context.Background(), "bad name.example.", dns.TypeA)
	r.Error(err)
}
