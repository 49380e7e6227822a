// Package assembly builds one consensus sequence by walking a user-chosen
// chain of adjacent, expanded graph nodes.
package assembly

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"kmerwalk/internal/epoch"
	"kmerwalk/internal/fasta"
	"kmerwalk/internal/graph"
)

var (
	// ErrNotCandidate is returned when the node is not adjacent to the tail.
	ErrNotCandidate = errors.New("assembly: node does not follow the chain tail")
	// ErrNotReady is returned for nodes that have no path yet.
	ErrNotReady = errors.New("assembly: node has not been expanded")
)

// Graph is the read-only view of the engine the chain needs.
type Graph interface {
	Epoch() epoch.Epoch
	Session() (graph.Session, bool)
	Node(id graph.NodeID) (graph.Node, bool)
	OutEdges(id graph.NodeID) []graph.Edge
	NodeIDs() []graph.NodeID
}

// Chain is an append-only path through the graph. It is bound to one seed:
// once the graph is re-seeded the chain starts over.
type Chain struct {
	g Graph

	mu    sync.Mutex
	epoch epoch.Epoch
	ids   []graph.NodeID
	seq   []byte
}

// New binds a chain to g.
func New(g Graph) *Chain {
	return &Chain{g: g, epoch: g.Epoch()}
}

func (c *Chain) syncLocked() {
	if e := c.g.Epoch(); e != c.epoch {
		c.epoch = e
		c.resetLocked()
	}
}

func (c *Chain) resetLocked() {
	c.ids = nil
	c.seq = nil
}

// Reset clears the chain.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = c.g.Epoch()
	c.resetLocked()
}

// Candidates lists the nodes SelectNext accepts. Any node may start an empty
// chain; afterwards only targets of the tail's edges qualify.
func (c *Chain) Candidates() []graph.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked()
	if len(c.ids) == 0 {
		return c.g.NodeIDs()
	}
	return c.targetsLocked()
}

func (c *Chain) targetsLocked() []graph.NodeID {
	tail := c.ids[len(c.ids)-1]
	seen := map[graph.NodeID]bool{}
	var out []graph.NodeID
	for _, e := range c.g.OutEdges(tail) {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// SelectNext appends id. The first node contributes its whole path; each
// later node contributes its path minus the k-1 symbols it shares with the
// previous one.
func (c *Chain) SelectNext(id graph.NodeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked()

	sess, ok := c.g.Session()
	if !ok {
		return graph.ErrNoSession
	}
	n, ok := c.g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrUnknownNode, id)
	}
	if len(c.ids) > 0 {
		adjacent := false
		for _, t := range c.targetsLocked() {
			if t == id {
				adjacent = true
				break
			}
		}
		if !adjacent {
			return fmt.Errorf("%w: %s after %s", ErrNotCandidate, id, c.ids[len(c.ids)-1])
		}
	}
	if n.State != graph.ResultsReady {
		return fmt.Errorf("%w: %s is %s", ErrNotReady, id, n.State)
	}

	if len(c.ids) == 0 {
		c.seq = append(c.seq[:0], n.Path...)
	} else {
		overlap := sess.K - 1
		if len(n.Path) < overlap {
			return &graph.PreconditionViolation{Op: "assemble", Node: id, Need: overlap, Have: len(n.Path)}
		}
		c.seq = append(c.seq, n.Path[overlap:]...)
	}
	c.ids = append(c.ids, id)
	return nil
}

// IDs returns the chain in selection order.
func (c *Chain) IDs() []graph.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked()
	return append([]graph.NodeID(nil), c.ids...)
}

// Sequence returns the assembled sequence.
func (c *Chain) Sequence() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked()
	return string(c.seq)
}

// Header is "dataset:seed:threshold:length".
func (c *Chain) Header() string {
	seq := c.Sequence()
	sess, _ := c.g.Session()
	return sess.Dataset + ":" + sess.Seed + ":" + strconv.Itoa(sess.Threshold) + ":" + strconv.Itoa(len(seq))
}

// WriteFASTA writes the assembly as one record wrapped at fasta.LineWidth.
func (c *Chain) WriteFASTA(w io.Writer) error {
	return fasta.Write(w, c.Header(), c.Sequence(), fasta.LineWidth)
}

// SelectAll appends ids in order, stopping at the first error.
func (c *Chain) SelectAll(ids []graph.NodeID) error {
	for _, id := range ids {
		if err := c.SelectNext(id); err != nil {
			return err
		}
	}
	return nil
}
