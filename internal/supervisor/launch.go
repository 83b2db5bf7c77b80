package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// ProcAttrs tune how the primary child is started.
type ProcAttrs struct {
	// NewProcessGroup places the child in its own process group so terminal
	// generated signals reach it only through the relay.
	NewProcessGroup bool
	// ParentDeathSignal is delivered to the child if the supervisor dies
	// first. Zero disables it. Linux only.
	ParentDeathSignal syscall.Signal
}

// Launch starts the target program and returns its pid. Program names without
// a slash are resolved through PATH. The child inherits the supervisor's
// environment and standard streams.
//
// A failed exec in the child is reported back to the parent by the runtime;
// the child has already exited by the time Launch returns the error.
func Launch(target Target, attrs ProcAttrs) (int, error) {
	if target.Path == "" {
		return 0, &LaunchError{Kind: KindNoProgram, Err: ErrNoProgram}
	}

	path, err := exec.LookPath(target.Path)
	if err != nil {
		return 0, &LaunchError{Kind: KindNotFound, Program: target.Path, Err: err}
	}

	cmd := &exec.Cmd{
		Path:   path,
		Args:   target.Argv(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	configureCmdSysProcAttr(cmd, attrs)

	if err := cmd.Start(); err != nil {
		return 0, &LaunchError{Kind: KindStart, Program: target.Path, Err: err}
	}

	pid := cmd.Process.Pid
	// The pid is waited on through the process table, not through cmd.
	_ = cmd.Process.Release()
	return pid, nil
}
