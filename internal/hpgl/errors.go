package hpgl

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-instruction failures. All kinds are
// recoverable: a real plotter keeps drawing after a bad command, so the
// default policy is to skip the instruction and continue. Transport
// failures are not a CommandError; they propagate from the underlying
// reader unchanged and terminate the job.
type ErrorKind int

const (
	// ErrMalformed means the tokenizer could not form a well-formed
	// instruction (bad mnemonic or unparseable parameter).
	ErrMalformed ErrorKind = iota
	// ErrUnsupported means a recognized two-letter code with no handler.
	ErrUnsupported
	// ErrBadParameters means a handler-level parameter count or value
	// mismatch.
	ErrBadParameters
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformed:
		return "malformed instruction"
	case ErrUnsupported:
		return "unsupported instruction"
	case ErrBadParameters:
		return "bad parameters"
	default:
		return "unknown error"
	}
}

// CommandError reports a recoverable failure tied to one instruction.
type CommandError struct {
	Kind     ErrorKind
	Mnemonic string
	Detail   string
}

func (e *CommandError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %q", e.Kind, e.Mnemonic)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Mnemonic, e.Detail)
}

func cmdErrorf(kind ErrorKind, mnemonic, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Mnemonic: mnemonic, Detail: fmt.Sprintf(format, args...)}
}

// IsRecoverable reports whether err is a per-instruction error that the
// interpreter may skip in non-strict mode.
func IsRecoverable(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}
