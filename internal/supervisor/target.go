package supervisor

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNoProgram is returned when no target program was given.
var ErrNoProgram = errors.New("no program given: usage: reaper [flags] <program> [args...]")

// LaunchErrorKind classifies launch failures.
type LaunchErrorKind string

const (
	KindNoProgram LaunchErrorKind = "no_program"
	KindNotFound  LaunchErrorKind = "not_found"
	KindStart     LaunchErrorKind = "start"
)

// LaunchError reports why the target program could not be started.
type LaunchError struct {
	Kind    LaunchErrorKind
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	switch e.Kind {
	case KindNoProgram:
		return e.Err.Error()
	case KindNotFound:
		return fmt.Sprintf("resolve program %s: %v", e.Program, e.Err)
	default:
		return fmt.Sprintf("start program %s: %v", e.Program, e.Err)
	}
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Target is the program launched as the primary child.
type Target struct {
	// Path is the program exactly as it was given on the command line.
	Path string
	// Args are passed through to the program unchanged.
	Args []string
}

// ParseTarget builds a Target from the positional arguments following the
// supervisor's own flags. The first argument is the program.
func ParseTarget(args []string) (Target, error) {
	if len(args) == 0 || args[0] == "" {
		return Target{}, &LaunchError{Kind: KindNoProgram, Err: ErrNoProgram}
	}
	target := Target{Path: args[0]}
	if len(args) > 1 {
		target.Args = append([]string(nil), args[1:]...)
	}
	return target, nil
}

// Argv returns the argument vector handed to the program: the base name of
// the program followed by the arguments verbatim.
func (t Target) Argv() []string {
	argv := make([]string, 0, len(t.Args)+1)
	argv = append(argv, filepath.Base(t.Path))
	return append(argv, t.Args...)
}
