// Package epoch tracks which user-initiated query is current. Every
// asynchronous result captures the epoch it was issued under and is applied
// only while that epoch is still current; anything else is stale.
package epoch

import "sync/atomic"

// Epoch identifies one user-initiated query action. The zero value means
// "nothing submitted yet" and is never current once Advance has been called.
type Epoch uint64

// Guard is a monotonically increasing epoch counter, safe for concurrent use.
type Guard struct {
	cur atomic.Uint64
}

// Advance starts a new epoch and returns it. All earlier epochs become stale.
func (g *Guard) Advance() Epoch {
	return Epoch(g.cur.Add(1))
}

// Current returns the active epoch.
func (g *Guard) Current() Epoch {
	return Epoch(g.cur.Load())
}

// IsCurrent reports whether e is still the active epoch.
func (g *Guard) IsCurrent(e Epoch) bool {
	return g.Current() == e
}

// Stale reports whether e has been superseded.
func (g *Guard) Stale(e Epoch) bool {
	return !g.IsCurrent(e)
}
