// Package resolver turns name/type queries into validated, cached
// answers, tolerating unreliable transport and anomalous servers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/sync/singleflight"

	"github.com/nocta/stubres/pkg/cache"
	"github.com/nocta/stubres/pkg/cache/redis_cache"
	"github.com/nocta/stubres/pkg/query"
)

const (
	defaultPort     = 53
	defaultTimeout  = 2 * time.Second
	defaultLifetime = 5 * time.Second
)

// ErrNoNameservers means every configured server failed or answered
// with a non-recoverable error rcode.
var ErrNoNameservers = errors.New("all nameservers failed to answer the query")

type Config struct {
	// Nameservers are server addresses, with or without a port.
	Nameservers []string `yaml:"nameservers"`

	// Port applies to nameservers given without one. Default 53.
	Port uint16 `yaml:"port"`

	// Search domains tried for relative names, in order, before the
	// name itself.
	Search []string `yaml:"search"`

	// Timeout bounds a single server attempt. Default 2s.
	Timeout time.Duration `yaml:"timeout"`

	// Lifetime bounds a whole resolution across servers and retries.
	// Default 5s.
	Lifetime time.Duration `yaml:"lifetime"`
}

// ExchangeFunc performs one query/response exchange with one server.
type ExchangeFunc func(ctx context.Context, server netip.AddrPort, q *dns.Msg, deadline time.Time) (*dns.Msg, error)

type ResolverOpts struct {
	Config Config

	// Cache is the in-process answer cache. Optional.
	Cache cache.Cache[*Answer]

	// Redis is a shared second-level cache. Optional.
	Redis *redis_cache.RedisCache

	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// Exchange replaces the UDP transport. Used by tests.
	Exchange ExchangeFunc
}

type Resolver struct {
	cfg      Config
	servers  []netip.AddrPort
	cache    cache.Cache[*Answer]
	redis    *redis_cache.RedisCache
	logger   *zap.Logger
	exchange ExchangeFunc

	sf singleflight.Group
}

func NewResolver(opts ResolverOpts) (*Resolver, error) {
	cfg := opts.Config
	if len(cfg.Nameservers) == 0 {
		return nil, errors.New("no nameservers configured")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}

	servers := make([]netip.AddrPort, 0, len(cfg.Nameservers))
	for _, ns := range cfg.Nameservers {
		if ap, err := netip.ParseAddrPort(ns); err == nil {
			servers = append(servers, ap)
			continue
		}
		addr, err := netip.ParseAddr(ns)
		if err != nil {
			return nil, fmt.Errorf("invalid nameserver %q: %w", ns, err)
		}
		servers = append(servers, netip.AddrPortFrom(addr, cfg.Port))
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exchange := opts.Exchange
	if exchange == nil {
		exchange = exchangeUDP
	}

	return &Resolver{
		cfg:      cfg,
		servers:  servers,
		cache:    opts.Cache,
		redis:    opts.Redis,
		logger:   logger,
		exchange: exchange,
	}, nil
}

// Resolve looks up (name, qtype) in class IN. Negative results across
// all tried names are aggregated into a single *NXDomain error.
func (r *Resolver) Resolve(ctx context.Context, name string, qtype uint16) (*Answer, error) {
	qname, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(r.cfg.Lifetime)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	nx := NewNXDomain()
	for _, candidate := range r.qnamesToTry(qname) {
		key := cache.NewKey(candidate, qtype, dns.ClassINET)

		if r.cache != nil {
			if a, ok := r.cache.Get(key); ok {
				return a, nil
			}
		}

		a, err := r.lookup(ctx, key, deadline)
		if err != nil {
			var nxa *NXDomain
			if errors.As(err, &nxa) {
				merged, mergeErr := MergeNXDomain(nx, nxa)
				if mergeErr != nil {
					return nil, mergeErr
				}
				nx = merged
				continue
			}
			return nil, err
		}
		return a, nil
	}

	if nx.IsAggregate() {
		return nil, nx
	}
	return nil, ErrNoNameservers
}

// LookupA resolves a name to its IPv4 addresses.
func (r *Resolver) LookupA(ctx context.Context, name string) ([]netip.Addr, error) {
	a, err := r.Resolve(ctx, name, dns.TypeA)
	if err != nil {
		return nil, err
	}
	var out []netip.Addr
	for _, rr := range a.RRSet().RRs() {
		if v, ok := rr.(*dns.A); ok {
			if addr, ok := netip.AddrFromSlice(v.A); ok {
				out = append(out, addr.Unmap())
			}
		}
	}
	return out, nil
}

// LookupAAAA resolves a name to its IPv6 addresses.
func (r *Resolver) LookupAAAA(ctx context.Context, name string) ([]netip.Addr, error) {
	a, err := r.Resolve(ctx, name, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	var out []netip.Addr
	for _, rr := range a.RRSet().RRs() {
		if v, ok := rr.(*dns.AAAA); ok {
			if addr, ok := netip.AddrFromSlice(v.AAAA); ok {
				out = append(out, addr)
			}
		}
	}
	return out, nil
}

// lookup resolves one fully qualified candidate name, deduplicating
// concurrent identical lookups.
func (r *Resolver) lookup(ctx context.Context, key cache.Key, deadline time.Time) (*Answer, error) {
	v, err, _ := r.sf.Do(key.Pack(), func() (interface{}, error) {
		return r.lookupMiss(ctx, key, deadline)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Answer), nil
}

func (r *Resolver) lookupMiss(ctx context.Context, key cache.Key, deadline time.Time) (*Answer, error) {
	if r.redis != nil {
		if m, expiration, ok := r.redis.Get(key); ok {
			a, err := NewCachedAnswer(key.Name, key.Qtype, key.Qclass, m, expiration)
			if err == nil {
				r.cachePut(key, a)
				return a, nil
			}
		}
	}

	q := new(dns.Msg)
	q.SetQuestion(key.Name, key.Qtype)

	servers := append([]netip.AddrPort(nil), r.servers...)
	for len(servers) > 0 {
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("resolution lifetime expired: %w", query.ErrTimeout)
		}

		// Servers that merely timed out are retried on the next round;
		// ones that failed or answered with an error rcode are dropped.
		var retry []netip.AddrPort
		for _, server := range servers {
			attemptDeadline := time.Now().Add(r.cfg.Timeout)
			if attemptDeadline.After(deadline) {
				attemptDeadline = deadline
			}

			m, err := r.exchange(ctx, server, q, attemptDeadline)
			if err != nil {
				if errors.Is(err, query.ErrTimeout) {
					r.logger.Debug("nameserver timed out",
						zap.Stringer("server", server), zap.String("key", key.String()))
					retry = append(retry, server)
					continue
				}
				r.logger.Warn("nameserver exchange failed",
					zap.Stringer("server", server), zap.Error(err))
				continue
			}

			switch m.Rcode {
			case dns.RcodeNameError:
				return nil, r.nxdomainFor(key, m)
			case dns.RcodeSuccess:
				a, err := NewAnswer(key.Name, key.Qtype, key.Qclass, m, false)
				if err != nil {
					return nil, fmt.Errorf("%w for %s", err, key)
				}
				r.cachePut(key, a)
				if r.redis != nil {
					r.redis.Store(key, m, a.ExpiresAt())
				}
				return a, nil
			default:
				r.logger.Warn("nameserver returned error rcode",
					zap.Stringer("server", server),
					zap.String("rcode", dns.RcodeToString[m.Rcode]))
				continue
			}
		}
		servers = retry
	}
	return nil, ErrNoNameservers
}

func (r *Resolver) nxdomainFor(key cache.Key, m *dns.Msg) error {
	nxa, err := NewNXDomainAggregate(
		[]string{key.Name}, map[string]*dns.Msg{key.Name: m})
	if err != nil {
		return err
	}
	return nxa
}

func (r *Resolver) cachePut(key cache.Key, a *Answer) {
	if r.cache != nil && a.ExpiresAt().After(time.Now()) {
		r.cache.Put(key, a)
	}
}

// qnamesToTry expands a relative name through the search list. An
// absolute name is tried as-is.
func (r *Resolver) qnamesToTry(name string) []string {
	if dns.IsFqdn(name) {
		return []string{name}
	}
	out := make([]string, 0, len(r.cfg.Search)+1)
	for _, domain := range r.cfg.Search {
		out = append(out, name+"."+dns.Fqdn(domain))
	}
	return append(out, dns.Fqdn(name))
}

// normalizeName IDNA-encodes name, preserving whether it was fully
// qualified.
func normalizeName(name string) (string, error) {
	if name == "." {
		return ".", nil
	}
	fqdn := dns.IsFqdn(name)
	puny, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return "", fmt.Errorf("invalid domain name %q: %w", name, err)
	}
	if fqdn {
		return dns.Fqdn(puny), nil
	}
	return puny, nil
}

// exchangeUDP is the default transport: one connected UDP socket per
// attempt, closed when the attempt ends.
func exchangeUDP(ctx context.Context, server netip.AddrPort, q *dns.Msg, deadline time.Time) (*dns.Msg, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "udp", server.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	pc, ok := conn.(net.PacketConn)
	if !ok {
		return nil, fmt.Errorf("udp conn %T is not a PacketConn", conn)
	}
	m, _, err := query.ExchangeUDP(pc, server, q, deadline, query.ReceiveOptions{})
	return m, err
}
