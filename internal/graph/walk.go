package graph

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// WalkLimits bound an automatic walk. Zero means unlimited.
type WalkLimits struct {
	MaxDepth int // only nodes shallower than this are expanded; the seed is depth 0
	MaxNodes int // stop expanding once the graph holds this many nodes
}

// WalkStats summarizes a walk.
type WalkStats struct {
	Expanded int
	Failed   int
	Nodes    int
	Edges    int

	// FirstErr is the first failed expansion, nil when none failed.
	FirstErr error
}

// Walk expands the frontier breadth-first from the seed. A failed expansion
// is logged and its node stays UNEXPLORED; the walk goes on. Walk stops
// early when ctx ends or the graph is re-seeded.
func (e *Engine) Walk(ctx context.Context, lim WalkLimits) (WalkStats, error) {
	sess, ok := e.Session()
	if !ok {
		return WalkStats{}, ErrNoSession
	}

	type item struct {
		id    NodeID
		depth int
	}
	var (
		stats  WalkStats
		queue  = []item{{id: sess.SeedID}}
		queued = map[NodeID]bool{sess.SeedID: true}
	)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return e.finish(stats), err
		}
		it := queue[0]
		queue = queue[1:]

		if lim.MaxDepth > 0 && it.depth >= lim.MaxDepth {
			continue
		}
		if lim.MaxNodes > 0 && e.nodeCount() >= lim.MaxNodes {
			e.logger.Info("node limit reached", zap.Int("max_nodes", lim.MaxNodes))
			break
		}

		n, err := e.Expand(ctx, it.id)
		switch {
		case err == nil:
			stats.Expanded++
		case errors.Is(err, ErrStale):
			return e.finish(stats), err
		case errors.Is(err, ErrNotExpandable):
			if n, ok = e.Node(it.id); !ok {
				continue
			}
		case ctx.Err() != nil:
			return e.finish(stats), ctx.Err()
		default:
			stats.Failed++
			if stats.FirstErr == nil {
				stats.FirstErr = err
			}
			e.logger.Warn("expansion failed", zap.Stringer("node", it.id), zap.Error(err))
			continue
		}

		for _, child := range n.Children {
			if queued[child] {
				continue
			}
			queued[child] = true
			queue = append(queue, item{id: child, depth: it.depth + 1})
		}
	}
	return e.finish(stats), nil
}

func (e *Engine) nodeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.nodes)
}

func (e *Engine) finish(s WalkStats) WalkStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s.Nodes = len(e.nodes)
	s.Edges = len(e.edges)
	return s
}
