// Package proctable exposes the kernel process table as an explicit
// capability so process lifecycle code can be exercised against a fake.
package proctable

import (
	"fmt"
	"syscall"
)

// Table is the subset of process-table operations the supervisor relies on.
// Every call observes the live kernel state; nothing is cached.
type Table interface {
	// ChildrenOf returns the direct children of pid at the instant of the
	// call, in ascending order.
	ChildrenOf(pid int) ([]int, error)

	// Signal delivers sig to pid.
	Signal(pid int, sig syscall.Signal) error

	// Await blocks until pid terminates but leaves it uncollected, so the pid
	// cannot be recycled until Wait or TryWait reaps it.
	Await(pid int) error

	// Wait blocks until pid terminates and collects its exit status.
	Wait(pid int) (Status, error)

	// TryWait collects pid only if it has already terminated. The boolean
	// reports whether a status was collected.
	TryWait(pid int) (Status, bool, error)
}

// Status describes how a process terminated.
type Status struct {
	// ExitCode is the exit code of a normally exited process, or -1 when the
	// process was terminated by a signal.
	ExitCode int
	// Signal is the terminating signal, zero for a normal exit.
	Signal syscall.Signal
}

// Signaled reports whether the process was terminated by a signal.
func (s Status) Signaled() bool {
	return s.Signal != 0
}

func (s Status) String() string {
	if s.Signaled() {
		return fmt.Sprintf("signal: %s", s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.ExitCode)
}

// FromWaitStatus converts a raw wait status.
func FromWaitStatus(ws syscall.WaitStatus) Status {
	if ws.Signaled() {
		return Status{ExitCode: -1, Signal: ws.Signal()}
	}
	return Status{ExitCode: ws.ExitStatus()}
}
