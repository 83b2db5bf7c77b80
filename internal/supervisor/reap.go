package supervisor

import (
	"fmt"
	"syscall"
)

// reap kills and collects the supervisor's children until a scan finds none.
//
// Every batch is followed by a fresh scan: a killed process may have left
// orphans behind, and any orphan reparented between scans must be caught.
// There is no iteration cap. A batch that reaped nothing backs
// off before rescanning so a stuck entry does not turn into a busy loop.
func (s *Supervisor) reap() (reaped, scans int, err error) {
	backoff := reapBackoffMin
	for {
		children, err := s.table.ChildrenOf(s.self)
		scans++
		if err != nil {
			return reaped, scans, fmt.Errorf("scan children of %d: %w", s.self, err)
		}
		s.emit(Event{Type: EventTypeScan, PID: s.self, Count: len(children)})
		if len(children) == 0 {
			return reaped, scans, nil
		}

		progressed := false
		for _, pid := range children {
			if err := s.table.Signal(pid, syscall.SIGKILL); err != nil {
				s.emit(Event{Type: EventTypeKillFailed, PID: pid, Signal: syscall.SIGKILL, Err: err})
			} else {
				s.emit(Event{Type: EventTypeKilled, PID: pid, Signal: syscall.SIGKILL})
			}

			status, err := s.table.Wait(pid)
			if err != nil {
				s.emit(Event{Type: EventTypeReapFailed, PID: pid, Err: err})
				continue
			}
			reaped++
			progressed = true
			s.emit(Event{Type: EventTypeReaped, PID: pid, Status: &status})
		}

		if progressed {
			backoff = reapBackoffMin
			continue
		}
		s.sleep(backoff)
		backoff *= 2
		if backoff > reapBackoffMax {
			backoff = reapBackoffMax
		}
	}
}
