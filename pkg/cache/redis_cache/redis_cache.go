// Package redis_cache persists packed answers in redis so several
// processes can share one response cache.
package redis_cache

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/nocta/stubres/pkg/cache"
	"github.com/nocta/stubres/pkg/pool"
)

var nopLogger = zap.NewNop()

type RedisCacheOpts struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when RedisCache.Close is called.
	// Optional.
	ClientCloser io.Closer

	// ClientTimeout specifies the timeout for read and write operations.
	// Default is 1s.
	ClientTimeout time.Duration

	// Logger is the *zap.Logger for this RedisCache.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

func (opts *RedisCacheOpts) init() error {
	if opts.Client == nil {
		return errors.New("nil client")
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return nil
}

type RedisCache struct {
	opts           RedisCacheOpts
	clientDisabled uint32
}

func NewRedisCache(opts RedisCacheOpts) (*RedisCache, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &RedisCache{opts: opts}, nil
}

func (r *RedisCache) disabled() bool {
	return atomic.LoadUint32(&r.clientDisabled) != 0
}

// disableClient pauses redis usage and starts a ping loop that
// re-enables the client once the server is reachable again.
func (r *RedisCache) disableClient() {
	if atomic.CompareAndSwapUint32(&r.clientDisabled, 0, 1) {
		r.opts.Logger.Warn("redis temporarily disabled")
		go func() {
			const maxBackoff = time.Second * 30
			backoff := time.Millisecond * 100
			for {
				time.Sleep(backoff)
				ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*500)
				err := r.opts.Client.Ping(ctx).Err()
				cancel()
				if err != nil {
					if backoff >= maxBackoff {
						backoff = maxBackoff
					} else {
						backoff += time.Duration(rand.Intn(1000))*time.Millisecond + time.Second
					}
					r.opts.Logger.Warn("redis ping failed", zap.Error(err), zap.Duration("next_ping", backoff))
					continue
				}
				atomic.StoreUint32(&r.clientDisabled, 0)
				return
			}
		}()
	}
}

// Get returns the stored message and its expiration time. ok is false
// on a miss, on an expired entry or while the client is disabled.
func (r *RedisCache) Get(key cache.Key) (m *dns.Msg, expiration time.Time, ok bool) {
	if r.disabled() {
		return nil, time.Time{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()
	b, err := r.opts.Client.Get(ctx, key.Pack()).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.opts.Logger.Warn("redis get", zap.Error(err))
			r.disableClient()
		}
		return nil, time.Time{}, false
	}

	expiration, wire, err := unpackRedisValue(b)
	if err != nil {
		r.opts.Logger.Warn("redis data unpack error", zap.Error(err))
		return nil, time.Time{}, false
	}
	if !time.Now().Before(expiration) {
		return nil, time.Time{}, false
	}

	m = new(dns.Msg)
	if err := m.Unpack(wire); err != nil {
		r.opts.Logger.Warn("redis data msg unpack error", zap.Error(err))
		return nil, time.Time{}, false
	}
	return m, expiration, true
}

// Store caches m until expiration. Messages that fail to pack or that
// are already expired are silently skipped.
func (r *RedisCache) Store(key cache.Key, m *dns.Msg, expiration time.Time) {
	if r.disabled() {
		return
	}
	ttl := time.Until(expiration)
	if ttl <= 0 {
		return
	}

	wire, err := m.Pack()
	if err != nil {
		return
	}
	data := packRedisData(expiration, wire)
	defer data.Release()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()
	if err := r.opts.Client.Set(ctx, key.Pack(), data.Bytes(), ttl).Err(); err != nil {
		r.opts.Logger.Warn("redis set", zap.Error(err))
		r.disableClient()
	}
}

func (r *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()
	i, err := r.opts.Client.DBSize(ctx).Result()
	if err != nil {
		r.opts.Logger.Error("dbsize", zap.Error(err))
		return 0
	}
	return int(i)
}

// Close closes the redis client.
func (r *RedisCache) Close() error {
	if f := r.opts.ClientCloser; f != nil {
		return f.Close()
	}
	return nil
}

// packRedisData packs expiration and wire into one buffer. The returned
// buffer must be released by the caller.
func packRedisData(expiration time.Time, wire []byte) *pool.Buffer {
	buf := pool.GetBuf(8 + len(wire))
	b := buf.Bytes()
	binary.BigEndian.PutUint64(b[:8], uint64(expiration.Unix()))
	copy(b[8:], wire)
	return buf
}

func unpackRedisValue(b []byte) (expiration time.Time, wire []byte, err error) {
	if len(b) < 8 {
		return time.Time{}, nil, errors.New("value is too short")
	}
	expiration = time.Unix(int64(binary.BigEndian.Uint64(b[:8])), 0)
	return expiration, b[8:], nil
}
