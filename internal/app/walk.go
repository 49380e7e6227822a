// internal/app/walk.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kmerwalk/internal/assembly"
	"kmerwalk/internal/cli"
	"kmerwalk/internal/config"
	"kmerwalk/internal/graph"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/output"
	"kmerwalk/internal/writers"
)

func runWalk(ctx context.Context, rt *runtime, cfg config.Config, o cli.WalkOptions, out io.Writer) (err error) {
	threshold, err := cli.ParseThreshold(o.Threshold)
	if err != nil {
		return err
	}
	sid := uuid.New().String()
	eng := graph.New(rt.client, graph.Config{Metrics: rt.metrics}, rt.logger)

	if o.Output == output.FormatJSONL {
		events, cancel := eng.Subscribe(cfg.EventBuffer)
		in, done := writers.StartEventJSONLWriter(out, 64, sid)
		go func() {
			for ev := range events {
				in <- ev
			}
			close(in)
		}()
		defer func() {
			cancel()
			if werr := <-done; werr != nil && err == nil {
				err = werr
			}
			if n := eng.DroppedEvents(); n > 0 {
				rt.logger.Warn("event stream fell behind", zap.Uint64("dropped", n))
			}
		}()
	}

	if _, err := eng.Seed(o.Seed, o.Dataset, threshold); err != nil {
		return err
	}
	stats, err := eng.Walk(ctx, graph.WalkLimits{MaxDepth: o.Depth, MaxNodes: o.MaxNodes})
	if err != nil {
		return err
	}
	if stats.Expanded == 0 {
		var te *oracle.TransportError
		if errors.As(stats.FirstErr, &te) {
			return fmt.Errorf("the seed could not be expanded: %w", stats.FirstErr)
		}
		return fmt.Errorf("%w: the seed could not be expanded (%d failed attempts)", errNoResults, stats.Failed)
	}

	var chain *assembly.Chain
	if ids := o.ChainIDs(); len(ids) > 0 {
		chain = assembly.New(eng)
		nodes := make([]graph.NodeID, 0, len(ids))
		for _, s := range ids {
			id, err := graph.ParseNodeID(s)
			if err != nil {
				return kmer.Invalid("chain", "want node IDs like n0,n1", s)
			}
			nodes = append(nodes, id)
		}
		if err := chain.SelectAll(nodes); err != nil {
			return &cli.UsageError{Err: err}
		}
		rt.logger.Info("assembled", zap.Int("nodes", len(nodes)), zap.Int("length", len(chain.Sequence())))
	}

	if o.Output == output.FormatJSONL {
		return nil
	}
	return writers.WriteWalk(o.Output, out, writers.WalkResult{
		SessionID: sid,
		Snapshot:  eng.Snapshot(),
		Chain:     chain,
		Header:    o.Header,
	})
}
