// Package config centralises runtime configuration helpers for objpool.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// DefaultPoolName names the pool used when no pool is configured.
const DefaultPoolName = "counters"

// PoolSettings sizes one pool.
type PoolSettings struct {
	Name         string `yaml:"name"`
	InitialCount int    `yaml:"initialCount"`
	MaxSize      int    `yaml:"maxSize"`
	// InitialValue is forwarded to every constructed counter.
	InitialValue int `yaml:"initialValue"`
}

// TelemetryConfig configures OTLP exporters.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// WorkloadSettings configures the demo workload.
type WorkloadSettings struct {
	Workers         int           `yaml:"workers"`
	Iterations      int           `yaml:"iterations"`
	RatePerSecond   float64       `yaml:"ratePerSecond"`
	MaxRetryElapsed time.Duration `yaml:"maxRetryElapsed"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Settings contains the configuration tree loaded from defaults and overrides.
type Settings struct {
	Environment Environment      `yaml:"environment"`
	Pools       []PoolSettings   `yaml:"pools"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Workload    WorkloadSettings `yaml:"workload"`
}

// Default returns the default configuration: the reference pool of two
// counters starting at five.
func Default() Settings {
	return Settings{
		Environment: EnvDev,
		Pools: []PoolSettings{
			{Name: DefaultPoolName, InitialCount: 0, MaxSize: 2, InitialValue: 5},
		},
		Telemetry: TelemetryConfig{OTLPEndpoint: "", ServiceName: "objpool"},
		Workload: WorkloadSettings{
			Workers:         8,
			Iterations:      100,
			RatePerSecond:   0,
			MaxRetryElapsed: 2 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// ApplyEnv overrides values from environment variables.
func ApplyEnv(base Settings) Settings {
	cfg := base.clone()
	if env := strings.TrimSpace(os.Getenv("OBJPOOL_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_SERVICE_NAME")); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_MAX_SIZE")); v != "" && len(cfg.Pools) > 0 {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pools[0].MaxSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_INITIAL_COUNT")); v != "" && len(cfg.Pools) > 0 {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pools[0].InitialCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workload.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OBJPOOL_SHUTDOWN_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Workload.ShutdownTimeout = dur
		}
	}
	return cfg
}

// FromEnv loads defaults overridden by environment variables.
func FromEnv() Settings {
	return ApplyEnv(Default())
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithPool adds or replaces the pool with the same name.
func WithPool(pool PoolSettings) Option {
	pool.Name = strings.TrimSpace(pool.Name)
	return func(s *Settings) {
		if pool.Name == "" {
			return
		}
		for i := range s.Pools {
			if s.Pools[i].Name == pool.Name {
				s.Pools[i] = pool
				return
			}
		}
		s.Pools = append(s.Pools, pool)
	}
}

// WithWorkload overrides the worker count and iterations when positive.
func WithWorkload(workers, iterations int) Option {
	return func(s *Settings) {
		if workers > 0 {
			s.Workload.Workers = workers
		}
		if iterations > 0 {
			s.Workload.Iterations = iterations
		}
	}
}

// WithTelemetryEndpoint overrides the OTLP endpoint.
func WithTelemetryEndpoint(endpoint string) Option {
	endpoint = strings.TrimSpace(endpoint)
	return func(s *Settings) {
		if endpoint != "" {
			s.Telemetry.OTLPEndpoint = endpoint
		}
	}
}

// Pool returns the named pool settings if present.
func (s Settings) Pool(name string) (PoolSettings, bool) {
	name = strings.TrimSpace(name)
	for _, p := range s.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return PoolSettings{}, false
}

func (s Settings) clone() Settings {
	clone := s
	if s.Pools != nil {
		clone.Pools = append([]PoolSettings(nil), s.Pools...)
	}
	return clone
}
