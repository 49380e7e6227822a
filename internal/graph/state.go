package graph

import (
	"errors"
	"fmt"
)

// State is a node's exploration lifecycle.
type State int

const (
	Unexplored State = iota
	Waiting
	ResultsReady
)

func (s State) String() string {
	switch s {
	case Unexplored:
		return "unexplored"
	case Waiting:
		return "waiting"
	case ResultsReady:
		return "results_ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type trigger int

const (
	onExpand trigger = iota
	onResult
	onError
)

func (t trigger) String() string {
	return [...]string{"expand", "result", "error"}[t]
}

// ErrInvalidTransition is returned for a trigger the current state does not accept.
var ErrInvalidTransition = errors.New("graph: invalid state transition")

// transitions is the only place node states change. ResultsReady has no
// outgoing edge: a node is expanded at most once.
var transitions = map[State]map[trigger]State{
	Unexplored: {onExpand: Waiting},
	Waiting:    {onResult: ResultsReady, onError: Unexplored},
}

func next(s State, t trigger) (State, error) {
	if to, ok := transitions[s][t]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, t, s)
}
