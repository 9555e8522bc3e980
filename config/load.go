package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/objpool/errs"
)

// Load reads a YAML document from disk on top of the defaults, applies
// environment overrides and validates the result.
func Load(ctx context.Context, path string) (Settings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv("OBJPOOL_CONFIG")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Settings{}, fmt.Errorf("config path required")
	}

	file, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return Settings{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	return decode(ctx, file)
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist. The boolean reports whether the file was read.
func LoadOrDefault(ctx context.Context, path string) (Settings, bool, error) {
	cfg, err := Load(ctx, path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Settings{}, false, err
	}
	cfg = FromEnv()
	if err := cfg.Validate(ctx); err != nil {
		return Settings{}, false, err
	}
	return cfg, false, nil
}

func decode(ctx context.Context, r io.Reader) (Settings, error) {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if len(strings.TrimSpace(string(bytes))) > 0 {
		if err := yaml.Unmarshal(bytes, &cfg); err != nil {
			return Settings{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg = ApplyEnv(cfg)

	if err := cfg.Validate(ctx); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Validate performs semantic validation on the configuration.
func (s Settings) Validate(ctx context.Context) error {
	_ = ctx
	if len(s.Pools) == 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("at least one pool required"))
	}
	seen := make(map[string]struct{}, len(s.Pools))
	for i, p := range s.Pools {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return errs.New("", errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("pools[%d]: name required", i)))
		}
		if _, dup := seen[name]; dup {
			return errs.New(name, errs.CodeConflict, errs.WithMessage(fmt.Sprintf("pools[%d]: duplicate name", i)))
		}
		seen[name] = struct{}{}
		if p.MaxSize < 0 || p.InitialCount < 0 {
			return errs.New(name, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("pools[%d]: counts must be >=0", i)))
		}
		if p.InitialCount > p.MaxSize {
			return errs.New(name, errs.CodeCapacity,
				errs.WithMessage(fmt.Sprintf("pools[%d]: initialCount exceeds maxSize", i)),
				errs.WithIntField("initial", p.InitialCount),
				errs.WithIntField("max", p.MaxSize))
		}
	}
	if s.Workload.Workers <= 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("workload workers must be >0"))
	}
	if s.Workload.Iterations < 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("workload iterations must be >=0"))
	}
	if s.Workload.RatePerSecond < 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("workload ratePerSecond must be >=0"))
	}
	return nil
}
