package adapter

import (
	"errors"
	"fmt"
)

// Kind classifies adapter errors.
type Kind int

const (
	KindConnection Kind = iota + 1
	KindQuery
	KindCopy
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	case KindCopy:
		return "copy"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is raised at the connection and cursor boundary. Msg keeps the
// native diagnostic verbatim; Title is a short human summary.
type Error struct {
	Kind  Kind
	Title string
	Msg   string
	Err   error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, title string, err error) *Error {
	e := &Error{Kind: kind, Title: title, Err: err}
	if err != nil {
		e.Msg = err.Error()
	}
	return e
}

func NewConnectionError(title string, err error) *Error {
	return newError(KindConnection, title, err)
}

func NewQueryError(title string, err error) *Error {
	return newError(KindQuery, title, err)
}

func NewCopyError(title string, err error) *Error {
	return newError(KindCopy, title, err)
}

func NewConfigError(title string, err error) *Error {
	return newError(KindConfig, title, err)
}

// Errorf builds an Error of kind with a formatted message and no native
// cause.
func Errorf(kind Kind, title, format string, args ...any) *Error {
	return &Error{Kind: kind, Title: title, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Title returns the title of the first *Error in err's chain, or fallback.
func Title(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Title != "" {
		return e.Title
	}
	return fallback
}

const (
	// ConfigErrorTitle is used for option decoding and validation failures.
	ConfigErrorTitle = "sqlharbor could not initialize the selected adapter."
	// CopyErrorTitle is used for export failures.
	CopyErrorTitle = "sqlharbor could not export your data."
)

// ErrEmptyCopy and ErrNoRowsCopy are returned by Copy for sources that
// cannot be exported.
var (
	ErrEmptyCopy  = Errorf(KindCopy, CopyErrorTitle, "Cannot export the results of an empty query.")
	ErrNoRowsCopy = Errorf(KindCopy, CopyErrorTitle, "Query did not return any rows to export.")
)
