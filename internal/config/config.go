package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrNoTracers is returned when a configuration declares no tracer.
var ErrNoTracers = errors.New("no tracers configured")

// Config is the reqtrace configuration file.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tracers  []TracerConfig `mapstructure:"tracers"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	AdminAddr string `mapstructure:"admin_addr"`
}

// RedisConfig enables the shared trace registry when Addr is set.
type RedisConfig struct {
	Addr   string        `mapstructure:"addr"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// TracerConfig declares one tracing profile.
type TracerConfig struct {
	Name     string         `mapstructure:"name"`
	Callback string         `mapstructure:"callback"`
	Args     map[string]any `mapstructure:"args"`
	Match    []any          `mapstructure:"match"`
}

// Profile is a TracerConfig resolved against a registry.
type Profile struct {
	Name     string
	Spec     match.Spec
	Callback domain.Callback
}

// Options returns the stream options carrying the profile.
func (p Profile) Options() domain.Options {
	return domain.Options{
		domain.KeyMatchSpec: p.Spec,
		domain.KeyCallback:  p.Callback,
	}
}

// Default returns the configuration used for unset keys.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:      ":8080",
			AdminAddr: ":9090",
		},
		Redis: RedisConfig{
			Prefix: "reqtrace:owner:",
		},
	}
}

// Load reads a configuration file (YAML or JSON, chosen by extension).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return Decode(raw)
}

// Decode maps generic decoded data onto a Config, starting from Default.
func Decode(raw map[string]any) (Config, error) {
	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural rules that do not need a registry.
func (c Config) Validate() error {
	if len(c.Tracers) == 0 {
		return ErrNoTracers
	}
	seen := make(map[string]bool, len(c.Tracers))
	for i, t := range c.Tracers {
		if t.Name == "" {
			return fmt.Errorf("tracer %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tracer %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		if t.Callback == "" {
			return fmt.Errorf("tracer %q: callback is required", t.Name)
		}
	}
	return nil
}

// Profiles resolves every tracer's match spec and callback through reg.
func (c Config) Profiles(reg *registry.Registry) ([]Profile, error) {
	profiles := make([]Profile, 0, len(c.Tracers))
	for _, t := range c.Tracers {
		spec, err := match.Decode(t.Match, reg)
		if err != nil {
			return nil, fmt.Errorf("tracer %q: %w", t.Name, err)
		}
		cb, err := reg.Callback(t.Callback, t.Args)
		if err != nil {
			return nil, fmt.Errorf("tracer %q: %w", t.Name, err)
		}
		profiles = append(profiles, Profile{Name: t.Name, Spec: spec, Callback: cb})
	}
	return profiles, nil
}
