// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kmerwalk/internal/config"
	"kmerwalk/internal/dispatch"
	"kmerwalk/internal/output"
	"kmerwalk/internal/version"
)

// Handlers run the parsed subcommands with the resolved configuration.
type Handlers struct {
	Batch func(ctx context.Context, cfg config.Config, g Global, o BatchOptions) error
	Walk  func(ctx context.Context, cfg config.Config, g Global, o WalkOptions) error
	Serve func(ctx context.Context, cfg config.Config, g Global, o ServeOptions) error

	// Getenv defaults to os.Getenv.
	Getenv config.Getenv
}

// NewRootCommand builds the kmerwalk command tree. Output goes to stdout;
// cobra's own messages (help, usage) too.
func NewRootCommand(h Handlers, stdout, stderr io.Writer) *cobra.Command {
	var g Global

	root := &cobra.Command{
		Use:   "kmerwalk",
		Short: "Explore a k-mer index server",
		Long: `kmerwalk queries a BWT k-mer index server.

  batch   count many k-mers in one or more datasets
  walk    grow the k-mer graph around a seed and assemble a path
  serve   expose an interactive exploration session over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return &UsageError{Err: errNoCommand}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.ConfigPath, "config", "", "YAML config file")
	pf.StringVar(&g.Server, "server", "", "index server base URL (default from config: http://localhost:8080)")
	pf.DurationVar(&g.Timeout, "timeout", 0, "per-request HTTP timeout (0 = none)")
	pf.StringVar(&g.LogLevel, "log-level", "info", "log level: debug | info | warn | error")
	pf.BoolVar(&g.LogJSON, "log-json", false, "log as JSON lines")
	pf.BoolVarP(&g.Quiet, "quiet", "q", false, "only log warnings and errors")
	pf.BoolVar(&g.Tracing, "tracing", false, "write OpenTelemetry spans to stderr")

	resolve := func(cmd *cobra.Command, apply func(*config.Config)) (config.Config, error) {
		cfg, err := config.Load(g.ConfigPath, h.Getenv)
		if err != nil {
			return cfg, err
		}
		return Resolve(cfg, g, cmd.Flags().Changed, apply)
	}

	root.AddCommand(
		newBatchCommand(h, &g, resolve),
		newWalkCommand(h, &g, resolve),
		newServeCommand(h, &g, resolve),
		newVersionCommand(),
	)
	return root
}

type resolver func(cmd *cobra.Command, apply func(*config.Config)) (config.Config, error)

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no positional arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

func newBatchCommand(h Handlers, g *Global, resolve resolver) *cobra.Command {
	var o BatchOptions
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Count k-mers from a delimited or FASTA file in one or more datasets",
		Example: `  kmerwalk batch --input queries.csv --column 2 --header --dataset 0-reads=Reads
  kmerwalk batch --input probes.fa --fasta --dataset 0-a --dataset 0-b --mode full`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			f := cmd.Flags()
			cfg, err := resolve(cmd, func(c *config.Config) {
				if f.Changed("page-size") {
					c.PageSize = o.PageSize
				}
				if f.Changed("parallel") {
					c.Parallelism = o.Parallel
				}
				if f.Changed("retry-initial") {
					c.RetryInitial = o.RetryInitial
				}
				if f.Changed("retry-max") {
					c.RetryMax = o.RetryMax
				}
				if f.Changed("rps") {
					c.RequestsPerSecond = o.RequestsPerSecond
				}
			})
			if err != nil {
				return err
			}
			return h.Batch(cmd.Context(), cfg, *g, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.Input, "input", "i", "", "query file: delimited text or FASTA, .gz/.zst ok, - = stdin [*]")
	fs.BoolVar(&o.FASTA, "fasta", false, "read --input as FASTA (record ID = label)")
	fs.StringVar(&o.Delimiter, "delimiter", "csv", "input delimiter: csv | tab")
	fs.IntVar(&o.Column, "column", 1, "1-based column holding the k-mers")
	fs.IntVar(&o.Labels, "labels", 0, "1-based column holding labels (0 = label with the k-mer)")
	fs.BoolVar(&o.Header, "header", false, "first line is a header")
	fs.StringArrayVarP(&o.Datasets, "dataset", "d", nil, "dataset ID, optionally ID=LABEL (repeatable) [*]")
	fs.StringVar(&o.Count, "count", "both", "orientations: both | forward | rc")
	fs.StringVar(&o.Mode, "mode", dispatch.ModePaged.String(), "full (one batchQuery) | paged (massQuery pages)")
	fs.StringVar(&o.Layout, "layout", "auto", "output layout: auto | wide | long")
	fs.StringVarP(&o.Output, "output", "o", output.FormatText, "output format: text | json")
	fs.IntVar(&o.PageSize, "page-size", dispatch.DefaultPageSize, "k-mers per page in paged mode")
	fs.IntVar(&o.Parallel, "parallel", 1, "datasets streamed concurrently in paged mode")
	fs.DurationVar(&o.RetryInitial, "retry-initial", 0, "first retry delay, doubled per failure (default from config: 1s)")
	fs.DurationVar(&o.RetryMax, "retry-max", 0, "ceiling for the retry delay (0 = none)")
	fs.Float64Var(&o.RequestsPerSecond, "rps", 0, "client-side request rate limit (0 = unlimited)")
	return cmd
}

func newWalkCommand(h Handlers, g *Global, resolve resolver) *cobra.Command {
	var (
		o        WalkOptions
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Grow the k-mer graph from a seed and print it",
		Example: `  kmerwalk walk --dataset 0-reads --seed ACGTACGTACGTACGTACGTA --threshold 5 --depth 3
  kmerwalk walk --dataset 0-reads --seed ACGT... --threshold 5 --chain n0,n1,n4 -o fasta`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.Header = !noHeader
			if err := o.Validate(); err != nil {
				return err
			}
			cfg, err := resolve(cmd, nil)
			if err != nil {
				return err
			}
			return h.Walk(cmd.Context(), cfg, *g, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.Dataset, "dataset", "d", "", "dataset ID [*]")
	fs.StringVarP(&o.Seed, "seed", "s", "", "seed k-mer over ACGT; its length sets k [*]")
	fs.StringVarP(&o.Threshold, "threshold", "t", "", "minimum combined count for an extension [*]")
	fs.IntVar(&o.Depth, "depth", 0, "expand nodes shallower than this (0 = no limit)")
	fs.IntVar(&o.MaxNodes, "max-nodes", 0, "stop expanding at this many nodes (0 = no limit)")
	fs.StringVar(&o.Chain, "chain", "", "comma-separated node IDs to assemble, e.g. n0,n1,n4")
	fs.StringVarP(&o.Output, "output", "o", output.FormatText, "output format: text | json | jsonl | fasta")
	fs.BoolVar(&noHeader, "no-header", false, "suppress the header line in text output")
	return cmd
}

func newServeCommand(h Handlers, g *Global, resolve resolver) *cobra.Command {
	var o ServeOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an interactive exploration session over HTTP and WebSocket",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			cfg, err := resolve(cmd, func(c *config.Config) {
				if f.Changed("listen") {
					c.Listen = o.Listen
				}
				if f.Changed("event-buffer") {
					c.EventBuffer = o.EventBuffer
				}
			})
			if err != nil {
				return err
			}
			o.Listen, o.EventBuffer = cfg.Listen, cfg.EventBuffer
			return h.Serve(cmd.Context(), cfg, *g, o)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.Listen, "listen", "l", "", "listen address (default from config: 127.0.0.1:8090)")
	fs.IntVar(&o.EventBuffer, "event-buffer", 0, "events queued per WebSocket subscriber (default from config: 256)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "kmerwalk version %s\n", version.Version)
			return err
		},
	}
}
