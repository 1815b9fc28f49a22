package coremain

import (
	"time"

	"github.com/nocta/stubres/mlog"
	"github.com/nocta/stubres/pkg/resolver"
)

type Config struct {
	Log      mlog.LogConfig  `yaml:"log"`
	Resolver resolver.Config `yaml:"resolver"`
	Cache    CacheConfig     `yaml:"cache"`
	Redis    RedisConfig     `yaml:"redis"`
	API      APIConfig       `yaml:"api"`
}

type CacheConfig struct {
	// Kind selects the in-process cache: "lru" (default), "expiring",
	// or "none".
	Kind string `yaml:"kind"`

	// Size is the lru capacity. Default 1024.
	Size int `yaml:"size"`

	// CleanerInterval is the expiring cache sweep interval. <= 0
	// disables the cleaner.
	CleanerInterval time.Duration `yaml:"cleaner_interval"`
}

type RedisConfig struct {
	// URL enables the shared redis cache, e.g. redis://localhost:6379/0.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type APIConfig struct {
	// HTTP is the listen address for metrics and pprof. Empty disables
	// the api server.
	HTTP string `yaml:"http"`
}
