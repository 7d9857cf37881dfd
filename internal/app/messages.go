package app

import "github.com/sadopc/sqlharbor/internal/catalog"

// Messages private to the app. Messages shared with widgets live in
// internal/msg.

// actionConfirmedMsg runs an interaction's statement after the user said
// yes.
type actionConfirmedMsg struct {
	action catalog.Action
}

// actionDoneMsg reports a finished interaction statement.
type actionDoneMsg struct {
	action  catalog.Action
	err     error
	connGen uint64
}

// connClosedMsg reports the result of closing a replaced connection.
type connClosedMsg struct {
	name string
	err  error
}

// historySavedMsg reports a failed history write; successful writes send
// nothing.
type historySavedMsg struct {
	err error
}
