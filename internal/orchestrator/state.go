package orchestrator

import "fmt"

// state is the orchestrator's position within one turn.
type state int

const (
	stateIdle state = iota
	statePlanning
	stateGenerating
	stateValidating
	stateFixing
	stateComplete
	stateError
	stateCancelled
)

var stateNames = [...]string{"idle", "planning", "generating", "validating", "fixing", "complete", "error", "cancelled"}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s state) terminal() bool {
	return s == stateComplete || s == stateError || s == stateCancelled
}

// advance moves forward. Error and cancelled are reachable from any
// non-terminal state; every other move must go to a later state. A backward
// move or a move out of a terminal state is a programming error and panics.
func (s *state) advance(to state) {
	from := *s
	switch {
	case from.terminal():
		panic(fmt.Sprintf("orchestrator: transition %s -> %s out of terminal state", from, to))
	case to == stateError || to == stateCancelled:
	case to <= from:
		panic(fmt.Sprintf("orchestrator: backward transition %s -> %s", from, to))
	}
	*s = to
}
