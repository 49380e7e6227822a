// Package config resolves settings from defaults, an optional YAML file and
// KMERWALK_* environment variables, in that order. Command-line flags are
// applied on top by the CLI, which then calls Validate.
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

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kmerwalk/internal/kmer"
)

// Config holds every tunable of the client.
type Config struct {
	Server            string        `yaml:"server" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	PageSize          int           `yaml:"page_size" validate:"gte=1"`
	RetryInitial      time.Duration `yaml:"retry_initial" validate:"gt=0"`
	RetryMax          time.Duration `yaml:"retry_max" validate:"gte=0"` // 0 = no ceiling
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Parallelism       int           `yaml:"parallelism" validate:"gte=1"`
	LogLevel          string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogJSON           bool          `yaml:"log_json"`
	Listen            string        `yaml:"listen" validate:"required"`
	EventBuffer       int           `yaml:"event_buffer" validate:"gte=1"`
	Tracing           bool          `yaml:"tracing"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server:       "http://localhost:8080",
		PageSize:     1000,
		RetryInitial: time.Second,
		Parallelism:  1,
		LogLevel:     "info",
		Listen:       "127.0.0.1:8090",
		EventBuffer:  256,
	}
}

// Getenv looks up an environment variable; os.Getenv in production.
type Getenv func(string) string

// Load resolves defaults, then path (skipped when empty), then environment.
func Load(path string, getenv Getenv) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"KMERWALK_SERVER", func(c *Config, v string) error { c.Server = v; return nil }},
	{"KMERWALK_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Timeout, v) }},
	{"KMERWALK_PAGE_SIZE", func(c *Config, v string) error { return setInt(&c.PageSize, v) }},
	{"KMERWALK_RETRY_INITIAL", func(c *Config, v string) error { return setDuration(&c.RetryInitial, v) }},
	{"KMERWALK_RETRY_MAX", func(c *Config, v string) error { return setDuration(&c.RetryMax, v) }},
	{"KMERWALK_RPS", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.RequestsPerSecond = f
		return err
	}},
	{"KMERWALK_PARALLEL", func(c *Config, v string) error { return setInt(&c.Parallelism, v) }},
	{"KMERWALK_LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = strings.ToLower(v); return nil }},
	{"KMERWALK_LOG_JSON", func(c *Config, v string) error { return setBool(&c.LogJSON, v) }},
	{"KMERWALK_LISTEN", func(c *Config, v string) error { c.Listen = v; return nil }},
	{"KMERWALK_EVENT_BUFFER", func(c *Config, v string) error { return setInt(&c.EventBuffer, v) }},
	{"KMERWALK_TRACING", func(c *Config, v string) error { return setBool(&c.Tracing, v) }},
}

func (c *Config) applyEnv(getenv Getenv) error {
	var bad []string
	for _, ev := range envVars {
		v := strings.TrimSpace(getenv(ev.name))
		if v == "" {
			continue
		}
		if err := ev.set(c, v); err != nil {
			bad = append(bad, ev.name+"="+v)
		}
	}
	if len(bad) > 0 {
		return &kmer.ValidationError{Field: "environment", Reason: "unparsable value", Values: bad}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and reports every failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	bad := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		bad = append(bad, fmt.Sprintf("%s (%s%s)", fe.Field(), fe.Tag(), paramSuffix(fe.Param())))
	}
	return &kmer.ValidationError{Field: "configuration", Reason: "constraint failed", Values: bad}
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
