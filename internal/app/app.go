// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"

	"kmerwalk/internal/cli"
	"kmerwalk/internal/config"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/writers"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitNoResults   = 1
	ExitUsage       = 2
	ExitIO          = 3
	ExitInterrupted = 130
)

// errNoResults ends a run that produced nothing useful (exit 1).
var errNoResults = errors.New("no results")

func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)

	h := cli.Handlers{
		Batch: func(ctx context.Context, cfg config.Config, g cli.Global, o cli.BatchOptions) error {
			return withRuntime(cfg, g, stderr, func(rt *runtime) error { return runBatch(ctx, rt, cfg, o, outw) })
		},
		Walk: func(ctx context.Context, cfg config.Config, g cli.Global, o cli.WalkOptions) error {
			return withRuntime(cfg, g, stderr, func(rt *runtime) error { return runWalk(ctx, rt, cfg, o, outw) })
		},
		Serve: func(ctx context.Context, cfg config.Config, g cli.Global, o cli.ServeOptions) error {
			return withRuntime(cfg, g, stderr, func(rt *runtime) error { return runServe(ctx, rt, o) })
		},
	}
	root := cli.NewRootCommand(h, outw, stderr)
	if argv == nil {
		argv = []string{}
	}
	root.SetArgs(argv)

	err := root.ExecuteContext(parent)
	code := exitCode(parent, err)
	switch {
	case code == ExitUsage:
		_, _ = fmt.Fprintln(stderr, "kmerwalk:", err)
		_, _ = fmt.Fprintln(stderr, "Run 'kmerwalk --help' for usage.")
	case code != ExitOK && code != ExitInterrupted:
		_, _ = fmt.Fprintln(stderr, "kmerwalk:", err)
	}

	if e := outw.Flush(); writers.IsBrokenPipe(e) {
		return code
	} else if e != nil {
		_, _ = fmt.Fprintln(stderr, e)
		return ExitIO
	}
	return code
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// exitCode maps a command error to the process exit status.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		ue *cli.UsageError
		ve *kmer.ValidationError
		te *oracle.TransportError
		pe *fs.PathError
		ne net.Error
	)
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return ExitInterrupted
	case writers.IsBrokenPipe(err):
		return ExitOK
	case errors.Is(err, errNoResults):
		return ExitNoResults
	case errors.As(err, &ue), errors.As(err, &ve):
		return ExitUsage
	case errors.As(err, &te), errors.As(err, &pe), errors.As(err, &ne):
		return ExitIO
	}
	// cobra's own errors (unknown command, missing subcommand) are usage errors.
	return ExitUsage
}
