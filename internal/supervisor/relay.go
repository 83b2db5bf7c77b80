package supervisor

import (
	"context"
	"os"
)

// relay forwards the graceful signal to the primary child for every received
// relay signal, and once if ctx is cancelled. It never touches other
// descendants: stopping the primary child is expected to cascade through the
// application. A nil sigs channel disables signal relaying.
func (s *Supervisor) relay(ctx context.Context, sigs <-chan os.Signal, stop <-chan struct{}, primary int) {
	done := ctx.Done()
	for {
		select {
		case <-stop:
			return
		case sig := <-sigs:
			s.forward(primary, sig.String())
		case <-done:
			done = nil
			s.forward(primary, "context cancelled")
		}
	}
}

func (s *Supervisor) forward(primary int, cause string) {
	if err := s.table.Signal(primary, s.opts.GracefulSignal); err != nil {
		s.emit(Event{Type: EventTypeRelayFailed, PID: primary, Signal: s.opts.GracefulSignal, Message: cause, Err: err})
		return
	}
	s.emit(Event{Type: EventTypeRelayed, PID: primary, Signal: s.opts.GracefulSignal, Message: cause})
}
