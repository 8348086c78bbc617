// Package config loads tool settings and topology files and opens the
// backends they name.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/netform/internal/domain"
)

const EnvPrefix = "NETFORM_"

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

type StateConfig struct {
	Backend string `yaml:"backend"`
	// Path is the JSON file of the file backend.
	Path   string `yaml:"path,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type Config struct {
	Region  string      `yaml:"region,omitempty"`
	Profile string      `yaml:"profile,omitempty"`
	RoleARN string      `yaml:"role_arn,omitempty"`
	State   StateConfig `yaml:"state"`

	Concurrency int           `yaml:"concurrency"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	RateLimit   float64       `yaml:"rate_limit,omitempty"`
	RateBurst   int           `yaml:"rate_burst,omitempty"`

	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json,omitempty"`
}

func Default() Config {
	return Config{
		State:       StateConfig{Backend: BackendFile, Path: "netform.state.json", Prefix: "netform/"},
		Concurrency: 4,
		CallTimeout: 2 * time.Minute,
		LogLevel:    "info",
	}
}

// Load reads path (optional) over the defaults, then applies NETFORM_*
// environment variables.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"REGION":        &c.Region,
		"PROFILE":       &c.Profile,
		"ROLE_ARN":      &c.RoleARN,
		"STATE_BACKEND": &c.State.Backend,
		"STATE_PATH":    &c.State.Path,
		"STATE_BUCKET":  &c.State.Bucket,
		"STATE_PREFIX":  &c.State.Prefix,
		"STATE_DSN":     &c.State.DSN,
		"METRICS_ADDR":  &c.MetricsAddr,
		"LOG_LEVEL":     &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	var errs []error
	parse := func(name string, fn func(string) error) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
		}
	}
	parse("CONCURRENCY", func(v string) (err error) {
		c.Concurrency, err = strconv.Atoi(v)
		return err
	})
	parse("CALL_TIMEOUT", func(v string) (err error) {
		c.CallTimeout, err = time.ParseDuration(v)
		return err
	})
	parse("RATE_LIMIT", func(v string) (err error) {
		c.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("RATE_BURST", func(v string) (err error) {
		c.RateBurst, err = strconv.Atoi(v)
		return err
	})
	parse("LOG_JSON", func(v string) (err error) {
		c.LogJSON, err = strconv.ParseBool(v)
		return err
	})
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	switch c.State.Backend {
	case BackendMemory:
	case BackendFile:
		if c.State.Path == "" {
			errs = append(errs, errors.New("state.path is required for the file backend"))
		}
	case BackendS3:
		if c.State.Bucket == "" {
			errs = append(errs, errors.New("state.bucket is required for the s3 backend"))
		}
	case BackendPostgres:
		if c.State.DSN == "" {
			errs = append(errs, errors.New("state.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	return errors.Join(errs...)
}

// LoadTopology reads a YAML (or JSON) topology file. Unknown keys are
// rejected so a misspelt field never silently drops a subnet.
func LoadTopology(path string) (domain.TopologySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.TopologySpec{}, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

func ParseTopology(data []byte) (domain.TopologySpec, error) {
	var spec domain.TopologySpec
	if len(strings.TrimSpace(string(data))) == 0 {
		return spec, errors.New("topology file is empty")
	}
	if err := decodeStrict(data, &spec); err != nil {
		return spec, fmt.Errorf("parse topology: %w", err)
	}
	return spec, nil
}
