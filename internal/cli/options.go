// internal/cli/options.go
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kmerwalk/internal/config"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/output"
)

// Global holds the flags shared by every subcommand.
type Global struct {
	ConfigPath string
	Server     string
	Timeout    time.Duration
	LogLevel   string
	LogJSON    bool
	Quiet      bool
	Tracing    bool
}

// BatchOptions holds `kmerwalk batch` flags.
type BatchOptions struct {
	Input     string
	FASTA     bool
	Delimiter string
	Column    int
	Labels    int
	Header    bool
	Datasets  []string
	Count     string
	Mode      string
	Layout    string
	Output    string // text | json

	PageSize          int
	Parallel          int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	RequestsPerSecond float64
}

// WalkOptions holds `kmerwalk walk` flags.
type WalkOptions struct {
	Dataset   string
	Seed      string
	Threshold string
	Depth     int
	MaxNodes  int
	Chain     string // comma-separated node IDs
	Output    string
	Header    bool // true unless --no-header
}

// ServeOptions holds `kmerwalk serve` flags.
type ServeOptions struct {
	Listen      string
	EventBuffer int
}

// UsageError marks bad command-line input (exit code 2).
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Validate checks flag combinations that do not need the server.
func (o BatchOptions) Validate() error {
	switch {
	case o.Input == "":
		return usagef("--input is required (use - for stdin)")
	case len(o.Datasets) == 0:
		return usagef("at least one --dataset is required")
	case o.Column < 1:
		return usagef("--column must be ≥ 1")
	case o.Labels < 0:
		return usagef("--labels must be ≥ 0")
	case o.FASTA && (o.Labels > 0 || o.Header):
		return usagef("--labels and --header do not apply to --fasta input")
	case o.Output != output.FormatText && o.Output != output.FormatJSON:
		return usagef("--output must be text or json for batch, got %q", o.Output)
	case o.Parallel < 0:
		return usagef("--parallel must be ≥ 0")
	}
	return nil
}

// Validate checks walk flags.
func (o WalkOptions) Validate() error {
	switch {
	case o.Dataset == "":
		return usagef("--dataset is required")
	case o.Seed == "":
		return usagef("--seed is required")
	case o.Threshold == "":
		return usagef("--threshold is required")
	case o.Depth < 0 || o.MaxNodes < 0:
		return usagef("--depth and --max-nodes must be ≥ 0")
	case !output.ValidFormat(o.Output):
		return usagef("--output must be one of %s, got %q", strings.Join(output.Formats, " | "), o.Output)
	case o.Output == output.FormatFASTA && o.Chain == "":
		return usagef("--output fasta needs --chain")
	}
	return nil
}

// ChainIDs splits --chain into trimmed, non-empty IDs.
func (o WalkOptions) ChainIDs() []string {
	var ids []string
	for _, s := range strings.Split(o.Chain, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

// ParseThreshold accepts a non-negative integer.
func ParseThreshold(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, kmer.Invalid("threshold", "must be a non-negative integer", s)
	}
	return n, nil
}

// Changed reports whether the named flag was set on the command line.
type Changed func(name string) bool

// Resolve applies command-line overrides on top of the file/env config and
// validates the result.
func Resolve(cfg config.Config, g Global, changed Changed, apply func(*config.Config)) (config.Config, error) {
	if changed("server") {
		cfg.Server = g.Server
	}
	if changed("timeout") {
		cfg.Timeout = g.Timeout
	}
	if changed("log-level") {
		cfg.LogLevel = g.LogLevel
	}
	if changed("log-json") {
		cfg.LogJSON = g.LogJSON
	}
	if changed("tracing") {
		cfg.Tracing = g.Tracing
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// errNoCommand is returned when the root command runs without a subcommand.
var errNoCommand = errors.New("a subcommand is required: batch, walk, serve or version")
