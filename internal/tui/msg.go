package tui

import "github.com/bleue740/huggy-code-haven-sub000/internal/events"

// MsgEvent carries one pipeline event into the program.
type MsgEvent struct {
	Event events.Event
}

// MsgTurnEnded is sent once the turn's event stream has been drained.
// Err is the error returned by the turn, if any.
type MsgTurnEnded struct {
	Err error
}
