// Package subreaper marks the calling process as the adoption point for
// orphaned descendants.
//
// When a process is a child subreaper, any descendant whose parent exits is
// reparented to the nearest living subreaper ancestor instead of the
// namespace's init process. The subreaper then receives SIGCHLD for those
// orphans and is responsible for waiting on them.
package subreaper

import "errors"

// ErrUnsupported is returned on platforms without child subreaper support.
var ErrUnsupported = errors.New("child subreaper is not supported on this platform")
