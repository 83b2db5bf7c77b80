//go:build unix && !linux

package proctable

import (
	"errors"
	"runtime"
	"syscall"
)

// DefaultRoot is the mount point of procfs.
const DefaultRoot = "/proc"

// ErrUnsupported is returned on platforms without a readable process table.
var ErrUnsupported = errors.New("process table is not supported on " + runtime.GOOS)

// Proc is a stub Table for platforms without procfs.
type Proc struct{}

// New returns a stub table; every operation fails with ErrUnsupported.
func New(string) *Proc {
	return &Proc{}
}

func (p *Proc) ChildrenOf(int) ([]int, error) {
	return nil, ErrUnsupported
}

func (p *Proc) Signal(int, syscall.Signal) error {
	return ErrUnsupported
}

func (p *Proc) Await(int) error {
	return ErrUnsupported
}

func (p *Proc) Wait(int) (Status, error) {
	return Status{}, ErrUnsupported
}

func (p *Proc) TryWait(int) (Status, bool, error) {
	return Status{}, false, ErrUnsupported
}

func (p *Proc) Exists(int) bool {
	return false
}
