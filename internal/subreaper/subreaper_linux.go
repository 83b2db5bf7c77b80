//go:build linux

package subreaper

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set configures the calling process as a child subreaper. Calling it more
// than once has no additional effect.
func Set() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl PR_SET_CHILD_SUBREAPER: %w", err)
	}
	return nil
}

// Get reports whether the calling process is a child subreaper.
func Get() (bool, error) {
	var flag int32
	if err := unix.Prctl(unix.PR_GET_CHILD_SUBREAPER, uintptr(unsafe.Pointer(&flag)), 0, 0, 0); err != nil {
		return false, fmt.Errorf("prctl PR_GET_CHILD_SUBREAPER: %w", err)
	}
	return flag != 0, nil
}
