package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/objpool/errs"
)

func TestDefaultMatchesReferencePool(t *testing.T) {
	cfg := Default()
	require.Equal(t, EnvDev, cfg.Environment)
	pool, ok := cfg.Pool(DefaultPoolName)
	require.True(t, ok)
	require.Equal(t, PoolSettings{Name: DefaultPoolName, InitialCount: 0, MaxSize: 2, InitialValue: 5}, pool)
	require.NoError(t, cfg.Validate(context.Background()))
}

func TestFromEnvOverridesValues(t *testing.T) {
	t.Setenv("OBJPOOL_ENV", "STAGING")
	t.Setenv("OBJPOOL_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OBJPOOL_SERVICE_NAME", "pool-svc")
	t.Setenv("OBJPOOL_MAX_SIZE", "9")
	t.Setenv("OBJPOOL_INITIAL_COUNT", "3")
	t.Setenv("OBJPOOL_WORKERS", "4")
	t.Setenv("OBJPOOL_SHUTDOWN_TIMEOUT", "250ms")

	cfg := FromEnv()
	require.Equal(t, EnvStaging, cfg.Environment)
	require.Equal(t, "http://collector:4318", cfg.Telemetry.OTLPEndpoint)
	require.Equal(t, "pool-svc", cfg.Telemetry.ServiceName)
	require.Equal(t, 9, cfg.Pools[0].MaxSize)
	require.Equal(t, 3, cfg.Pools[0].InitialCount)
	require.Equal(t, 4, cfg.Workload.Workers)
	require.Equal(t, 250*time.Millisecond, cfg.Workload.ShutdownTimeout)
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OBJPOOL_MAX_SIZE", "lots")
	cfg := FromEnv()
	require.Equal(t, 2, cfg.Pools[0].MaxSize)
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	base := Default()
	cfg := Apply(base,
		WithEnvironment(EnvProd),
		WithPool(PoolSettings{Name: DefaultPoolName, MaxSize: 8}),
		WithPool(PoolSettings{Name: " buffers ", MaxSize: 4, InitialCount: 1}),
		WithPool(PoolSettings{Name: " "}),
		WithWorkload(2, 0),
		WithTelemetryEndpoint(" http://otel:4318 "),
		nil,
	)

	require.Equal(t, EnvProd, cfg.Environment)
	require.Len(t, cfg.Pools, 2)
	require.Equal(t, 8, cfg.Pools[0].MaxSize)
	buffers, ok := cfg.Pool("buffers")
	require.True(t, ok)
	require.Equal(t, 4, buffers.MaxSize)
	require.Equal(t, 2, cfg.Workload.Workers)
	require.Equal(t, 100, cfg.Workload.Iterations)
	require.Equal(t, "http://otel:4318", cfg.Telemetry.OTLPEndpoint)

	require.Equal(t, EnvDev, base.Environment)
	require.Len(t, base.Pools, 1)
	require.Equal(t, 2, base.Pools[0].MaxSize)
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "objpool.yaml")
	doc := `
environment: prod
pools:
  - name: counters
    initialCount: 1
    maxSize: 4
    initialValue: 10
  - name: scratch
    maxSize: 2
telemetry:
  serviceName: pooldemo
workload:
  workers: 3
  iterations: 50
  ratePerSecond: 200
  maxRetryElapsed: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Len(t, cfg.Pools, 2)
	require.Equal(t, PoolSettings{Name: "counters", InitialCount: 1, MaxSize: 4, InitialValue: 10}, cfg.Pools[0])
	require.Equal(t, "pooldemo", cfg.Telemetry.ServiceName)
	require.Equal(t, 3, cfg.Workload.Workers)
	require.Equal(t, float64(200), cfg.Workload.RatePerSecond)
	require.Equal(t, time.Second, cfg.Workload.MaxRetryElapsed)
	require.Equal(t, 5*time.Second, cfg.Workload.ShutdownTimeout)
}

func TestLoadRejectsCapacityViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pools:\n  - name: p\n    initialCount: 3\n    maxSize: 2\n"), 0o600))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	code, ok := errs.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, errs.CodeCapacity, code)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pools: [\n"), 0o600))

	_, err := Load(context.Background(), path)
	require.ErrorContains(t, err, "unmarshal config")
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, loaded, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, Default().Pools, cfg.Pools)
}

func TestValidateRejectsBadPools(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		pools []PoolSettings
		code  errs.Code
	}{
		"empty":     {pools: nil, code: errs.CodeInvalid},
		"unnamed":   {pools: []PoolSettings{{MaxSize: 1}}, code: errs.CodeInvalid},
		"duplicate": {pools: []PoolSettings{{Name: "a", MaxSize: 1}, {Name: "a", MaxSize: 1}}, code: errs.CodeConflict},
		"negative":  {pools: []PoolSettings{{Name: "a", MaxSize: -1}}, code: errs.CodeInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Pools = tc.pools
			code, ok := errs.CodeOf(cfg.Validate(ctx))
			require.True(t, ok)
			require.Equal(t, tc.code, code)
		})
	}

	cfg := Default()
	cfg.Workload.Workers = 0
	require.Error(t, cfg.Validate(ctx))
}
