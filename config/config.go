// Package config loads the yds configuration from a YAML or JSON file with
// YDS_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/infra/cache"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/infra/monitoring"
	"github.com/kilianp07/yds/infra/mqtt"
	"github.com/kilianp07/yds/infra/tracing"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. YDS_SCHEDULER__WORKERS=4.
const EnvPrefix = "YDS_"

type Config struct {
	Scheduler SchedulerConfig   `json:"scheduler"`
	Logging   logger.Config     `json:"logging"`
	Metrics   metrics.Config    `json:"metrics"`
	Store     StoreConfig       `json:"store"`
	Cache     cache.Config      `json:"cache"`
	MQTT      mqtt.Config       `json:"mqtt"`
	Sentry    monitoring.Config `json:"sentry"`
	Tracing   tracing.Config    `json:"tracing"`
	Server    ServerConfig      `json:"server"`
}

// SchedulerConfig tunes the scheduling run.
type SchedulerConfig struct {
	// Workers bounds parallel candidate evaluation. Values below 2 keep the
	// evaluation sequential.
	Workers int `json:"workers"`
	// Verify checks every computed schedule against its input.
	Verify bool `json:"verify"`
	// Tolerance is the absolute and relative slack used by verification.
	Tolerance float64 `json:"tolerance"`
}

// SetDefaults applies sane defaults.
func (c *SchedulerConfig) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
}

// Validate checks mandatory fields.
func (c SchedulerConfig) Validate() error {
	if c.Tolerance >= 1 {
		return fmt.Errorf("scheduler tolerance %g too large", c.Tolerance)
	}
	return nil
}

// StoreConfig locates the run history database. An empty path disables it.
type StoreConfig struct {
	Path string `json:"path"`
}

// Enabled reports whether runs are persisted.
func (c StoreConfig) Enabled() bool { return c.Path != "" }

// ServerConfig controls the HTTP API of the serve command.
type ServerConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on every API request.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Load reads path, applies environment overrides, defaults and validation.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	if c.Cache.Enabled() {
		c.Cache.SetDefaults()
	}
	if c.Tracing.Enabled() {
		c.Tracing.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Tracing.Validate()
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
