// Package config loads the node configuration: an optional CUE file unified
// with the embedded schema, then environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded node configuration.
type Config struct {
	Node struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"node"`
	Host struct {
		URL string `json:"url"`
	} `json:"host"`
	Bus struct {
		Device  string `json:"device"`
		Address int    `json:"address"`
	} `json:"bus"`
	Sample struct {
		Interval   string `json:"interval"`
		WaterLevel bool   `json:"water_level"`
	} `json:"sample"`
	Journal struct {
		DSN string `json:"dsn"`
	} `json:"journal"`
	Status struct {
		Port int `json:"port"`
	} `json:"status"`
}

// Load reads the CUE file at path (skipped when path is empty), applies the
// schema defaults and environment overrides, and validates the result.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		data = b
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse unifies CUE source with the schema and decodes it.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := val.Err(); err != nil {
		return Config{}, fmt.Errorf("building config schema: %w", err)
	}
	if len(data) > 0 {
		if filename == "" {
			filename = "config.cue"
		}
		file := ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
		val = val.Unify(file)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	var cfg Config
	if err := val.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PROBE_NODE_ID"); v != "" {
		c.Node.ID = v
	}
	if v := os.Getenv("PROBE_HOST_URL"); v != "" {
		c.Host.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Journal.DSN = v
	}
	if v := os.Getenv("PROBE_STATUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROBE_STATUS_PORT: %w", err)
		}
		c.Status.Port = port
	}
	return nil
}

// Validate checks fields the schema cannot express.
func (c Config) Validate() error {
	if c.Host.URL == "" {
		return errors.New("host.url required")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if c.Node.ID != "" {
		if _, err := uuid.Parse(c.Node.ID); err != nil {
			return fmt.Errorf("node.id: %w", err)
		}
	}
	if c.Status.Port <= 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port %d out of range", c.Status.Port)
	}
	return nil
}

// Interval returns the parsed sampling interval.
func (c Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Sample.Interval)
	if err != nil {
		return 0, fmt.Errorf("sample.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("sample.interval must be positive, got %s", d)
	}
	return d, nil
}

// NodeID returns the configured node identity, or a fresh one if none is
// configured.
func (c Config) NodeID() uuid.UUID {
	if id, err := uuid.Parse(c.Node.ID); err == nil {
		return id
	}
	return uuid.New()
}
