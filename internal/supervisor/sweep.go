package supervisor

import "os"

// sweep collects orphans that have already exited while the primary child is
// still running. Each SIGCHLD triggers a fresh listing; only listed children
// other than the primary are collected, and only if they are already dead.
func (s *Supervisor) sweep(sigs <-chan os.Signal, stop <-chan struct{}, primary int) int {
	total := 0
	for {
		select {
		case <-stop:
			return total
		case <-sigs:
			total += s.sweepOnce(primary)
		}
	}
}

func (s *Supervisor) sweepOnce(primary int) int {
	children, err := s.table.ChildrenOf(s.self)
	if err != nil {
		s.emit(Event{Type: EventTypeSweepFailed, PID: s.self, Err: err})
		return 0
	}
	swept := 0
	for _, pid := range children {
		if pid == primary {
			continue
		}
		status, done, err := s.table.TryWait(pid)
		if err != nil {
			s.emit(Event{Type: EventTypeSweepFailed, PID: pid, Err: err})
			continue
		}
		if !done {
			continue
		}
		swept++
		s.emit(Event{Type: EventTypeSwept, PID: pid, Status: &status})
	}
	return swept
}
