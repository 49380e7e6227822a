// Package graph grows a converging k-mer graph from followPath results.
// Nodes are unique per k-mer; a rediscovered k-mer only gains a back-edge.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/kmer"
	"kmerwalk/internal/metrics"
	"kmerwalk/internal/oracle"
)

// Config tunes an Engine.
type Config struct {
	Metrics *metrics.Metrics
}

// Engine owns the node/edge model. All mutation happens under mu, and a
// result is applied only if its epoch is still current inside that same
// critical section.
type Engine struct {
	oracle  oracle.Oracle
	logger  *zap.Logger
	metrics *metrics.Metrics

	guard epoch.Guard
	hub   hub

	mu        sync.RWMutex
	session   *Session
	nextNode  NodeID
	nextEdge  EdgeID
	nodes     map[NodeID]*Node
	nodeOrder []NodeID
	edges     []Edge
	out       map[NodeID][]int // node -> indexes into edges
	byKmer    map[string]NodeID
}

// New builds an engine that queries o.
func New(o oracle.Oracle, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		oracle:  o,
		logger:  logger.Named("graph"),
		metrics: cfg.Metrics,
	}
}

// Seed validates the seed k-mer and threshold, supersedes any previous
// session and starts a new graph holding only the seed node.
func (e *Engine) Seed(raw, dataset string, threshold int) (Node, error) {
	seed, err := kmer.ValidateSeed(raw)
	if err != nil {
		return Node{}, err
	}
	if dataset == "" {
		return Node{}, kmer.Invalid("dataset", "a dataset is required")
	}
	if threshold < 0 {
		return Node{}, kmer.Invalid("threshold", "must be a non-negative integer", fmt.Sprint(threshold))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ep := e.guard.Advance()
	e.nodes = make(map[NodeID]*Node)
	e.nodeOrder = nil
	e.edges = nil
	e.out = make(map[NodeID][]int)
	e.byKmer = make(map[string]NodeID)

	e.session = &Session{
		Epoch:     ep,
		Dataset:   dataset,
		Seed:      seed,
		Threshold: threshold,
		K:         len(seed),
	}
	sess := *e.session
	e.hub.publish(Event{Type: EventReset, Epoch: ep, Session: &sess})

	n := e.addNodeLocked(seed, Root)
	n.Color = ColorSeed
	e.session.SeedID = n.ID
	e.publishNodeLocked(EventNodeAdded, n)
	e.metrics.GraphSize(len(e.nodes), len(e.edges))

	e.logger.Info("graph initialized",
		zap.Uint64("epoch", uint64(ep)),
		zap.String("dataset", dataset),
		zap.Int("k", len(seed)),
		zap.Int("threshold", threshold),
	)
	return n.clone(), nil
}

// Expand queries the oracle for node id and folds the result into the graph.
// Only UNEXPLORED nodes can be expanded; others yield ErrNotExpandable. On a
// transport error the node returns to UNEXPLORED and the error is returned.
// If the graph was re-seeded meanwhile the result is dropped with ErrStale.
func (e *Engine) Expand(ctx context.Context, id NodeID) (Node, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Node{}, ErrNoSession
	}
	n, ok := e.nodes[id]
	if !ok {
		e.mu.Unlock()
		return Node{}, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if n.State != Unexplored {
		st := n.State
		e.mu.Unlock()
		return Node{}, fmt.Errorf("%w: %s is %s", ErrNotExpandable, id, st)
	}
	if err := e.transitionLocked(n, onExpand); err != nil {
		e.mu.Unlock()
		return Node{}, err
	}
	sess := *e.session
	text := n.Kmer
	e.mu.Unlock()

	e.logger.Debug("requesting path", zap.Stringer("node", id), zap.String("kmer", text))
	res, err := e.oracle.FollowPath(ctx, text, sess.Dataset, sess.Threshold)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.guard.Stale(sess.Epoch) {
		e.metrics.Stale("graph")
		e.metrics.Expansion("stale")
		e.logger.Debug("dropping stale path result", zap.Stringer("node", id), zap.Uint64("epoch", uint64(sess.Epoch)))
		return Node{}, ErrStale
	}
	n = e.nodes[id]
	if err != nil {
		e.metrics.Expansion("error")
		e.logger.Warn("server error", zap.Stringer("node", id), zap.Error(err))
		if terr := e.transitionLocked(n, onError); terr != nil {
			return Node{}, errors.Join(err, terr)
		}
		return Node{}, err
	}
	if err := e.foldLocked(n, sess, res); err != nil {
		e.metrics.Expansion("precondition")
		if terr := e.transitionLocked(n, onError); terr != nil {
			return Node{}, errors.Join(err, terr)
		}
		return Node{}, err
	}
	e.metrics.Expansion("ok")
	e.metrics.GraphSize(len(e.nodes), len(e.edges))
	return n.clone(), nil
}

type extension struct {
	symbol byte
	count  int
	kmer   string
}

// foldLocked applies one followPath result to n. Every candidate is computed
// before anything is mutated, so a short path leaves the graph unchanged.
func (e *Engine) foldLocked(n *Node, sess Session, res oracle.PathResult) error {
	overlap := sess.K - 1
	var exts []extension
	for s, sym := range kmer.Symbols {
		combined := res.NextForward[s] + res.NextRevComp[s]
		if combined < sess.Threshold {
			continue
		}
		if len(res.Path) < overlap {
			return &PreconditionViolation{Op: "expand", Node: n.ID, Need: overlap, Have: len(res.Path)}
		}
		exts = append(exts, extension{
			symbol: sym,
			count:  combined,
			kmer:   res.Path[len(res.Path)-overlap:] + string(sym),
		})
	}

	n.Path = res.Path
	n.Forward = append([]int(nil), res.Forward...)
	n.RevComp = append([]int(nil), res.RevComp...)
	n.NextForward = res.NextForward
	n.NextRevComp = res.NextRevComp

	for _, x := range exts {
		target, found := e.byKmer[x.kmer]
		if !found {
			child := e.addNodeLocked(x.kmer, n.ID)
			e.publishNodeLocked(EventNodeAdded, child)
			target = child.ID
		}
		e.addEdgeLocked(n, target, x.symbol, x.count)
	}

	switch {
	case n.ID == sess.SeedID:
		n.Color = ColorSeed
	case len(exts) == 0:
		n.Color = ColorTerminal
	default:
		n.Color = ColorInternal
	}
	if err := e.transitionLocked(n, onResult); err != nil {
		return err
	}
	e.logger.Info("node expanded",
		zap.Stringer("node", n.ID),
		zap.Int("path_len", len(n.Path)),
		zap.Int("extensions", len(exts)),
		zap.String("color", string(n.Color)),
	)
	return nil
}

func (e *Engine) addNodeLocked(k string, parent NodeID) *Node {
	n := &Node{ID: e.nextNode, Kmer: k, State: Unexplored, Parent: parent}
	e.nextNode++
	e.nodes[n.ID] = n
	e.nodeOrder = append(e.nodeOrder, n.ID)
	e.byKmer[k] = n.ID
	return n
}

func (e *Engine) addEdgeLocked(src *Node, target NodeID, sym byte, count int) {
	ed := Edge{ID: e.nextEdge, Source: src.ID, Target: target, Symbol: sym, Count: count}
	e.nextEdge++
	e.out[src.ID] = append(e.out[src.ID], len(e.edges))
	e.edges = append(e.edges, ed)
	src.Children = append(src.Children, target)
	e.hub.publish(Event{Type: EventEdgeAdded, Epoch: e.session.Epoch, Edge: &ed})
}

func (e *Engine) transitionLocked(n *Node, t trigger) error {
	to, err := next(n.State, t)
	if err != nil {
		return fmt.Errorf("%s: %w", n.ID, err)
	}
	n.State = to
	e.publishNodeLocked(EventNodeUpdated, n)
	return nil
}

func (e *Engine) publishNodeLocked(t EventType, n *Node) {
	c := n.clone()
	e.hub.publish(Event{Type: t, Epoch: e.session.Epoch, Node: &c})
}

// Subscribe returns a channel of graph events and a cancel func that
// unsubscribes and closes it. buffer <= 0 selects DefaultEventBuffer.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.hub.subscribe(buffer)
}

// DroppedEvents counts events not delivered to slow subscribers.
func (e *Engine) DroppedEvents() uint64 { return e.hub.dropped.Load() }

// Epoch returns the current seed epoch (0 before the first Seed).
func (e *Engine) Epoch() epoch.Epoch { return e.guard.Current() }

// Session returns the active seed parameters.
func (e *Engine) Session() (Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// Node returns a copy of node id.
func (e *Engine) Node(id NodeID) (Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// OutEdges returns the edges whose source is id, in discovery order.
func (e *Engine) OutEdges(id NodeID) []Edge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.out[id]
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, e.edges[i])
	}
	return out
}

// NodeIDs returns every node ID in creation order.
func (e *Engine) NodeIDs() []NodeID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]NodeID(nil), e.nodeOrder...)
}

// Snapshot copies the whole graph.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var s Snapshot
	if e.session != nil {
		s.Session = *e.session
	}
	s.Nodes = make([]Node, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		s.Nodes = append(s.Nodes, e.nodes[id].clone())
	}
	s.Edges = append([]Edge(nil), e.edges...)
	return s
}
