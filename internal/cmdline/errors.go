package cmdline

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is wrapped by every error caused by user input.
	ErrSyntax = errors.New("syntax error")
	// ErrInvalidDef reports a command definition that breaks the option
	// ordering rules. It indicates a programming error.
	ErrInvalidDef = errors.New("invalid command definition")
)

// Error is a parse or option error whose message is shown to the user
// verbatim.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return ErrSyntax
}

func errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
