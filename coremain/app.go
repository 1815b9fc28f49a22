package coremain

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nocta/stubres/mlog"
	"github.com/nocta/stubres/pkg/cache"
	"github.com/nocta/stubres/pkg/cache/redis_cache"
	"github.com/nocta/stubres/pkg/resolver"
)

const defaultCacheSize = 1024

// App wires a resolver together with its caches and the optional
// metrics/pprof http server.
type App struct {
	logger   *zap.Logger
	resolver *resolver.Resolver

	cache cache.Cache[*resolver.Answer]
	redis *redis_cache.RedisCache

	httpAPIMux    *http.ServeMux
	httpAPIServer *http.Server

	metricsReg *prometheus.Registry
}

func NewApp(cfg *Config) (*App, error) {
	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	mlog.SetL(lg)

	a := &App{
		logger:     lg,
		httpAPIMux: http.NewServeMux(),
		metricsReg: newMetricsReg(),
	}

	a.httpAPIMux.Handle("/metrics", promhttp.HandlerFor(a.metricsReg, promhttp.HandlerOpts{}))
	a.httpAPIMux.HandleFunc("/debug/pprof/", pprof.Index)
	a.httpAPIMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	a.httpAPIMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	a.httpAPIMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	a.httpAPIMux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	cacheMetrics := cache.NewMetrics(a.GetMetricsReg())
	switch cfg.Cache.Kind {
	case "", "lru":
		size := cfg.Cache.Size
		if size <= 0 {
			size = defaultCacheSize
		}
		a.cache = cache.NewLRUCache[*resolver.Answer](size, cacheMetrics)
	case "expiring":
		a.cache = cache.NewExpiringCache[*resolver.Answer](cfg.Cache.CleanerInterval, cacheMetrics)
	case "none":
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Cache.Kind)
	}

	if len(cfg.Redis.URL) > 0 {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opt)
		a.redis, err = redis_cache.NewRedisCache(redis_cache.RedisCacheOpts{
			Client:        client,
			ClientCloser:  client,
			ClientTimeout: cfg.Redis.Timeout,
			Logger:        lg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
	}

	r, err := resolver.NewResolver(resolver.ResolverOpts{
		Config: cfg.Resolver,
		Cache:  a.cache,
		Redis:  a.redis,
		Logger: lg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init resolver: %w", err)
	}
	a.resolver = r

	if httpAddr := cfg.API.HTTP; len(httpAddr) > 0 {
		a.httpAPIServer = &http.Server{
			Addr:    httpAddr,
			Handler: a.httpAPIMux,
		}
		go func() {
			a.logger.Info("starting api http server", zap.String("addr", httpAddr))
			if err := a.httpAPIServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("api http server exited", zap.Error(err))
			}
		}()
	}

	return a, nil
}

func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

func (a *App) GetMetricsReg() prometheus.Registerer {
	return prometheus.WrapRegistererWithPrefix("stubres_", a.metricsReg)
}

func (a *App) GetHTTPAPIMux() *http.ServeMux {
	return a.httpAPIMux
}

func (a *App) Close() error {
	if a.httpAPIServer != nil {
		a.httpAPIServer.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
