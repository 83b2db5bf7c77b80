package supervisor

import (
	"syscall"
	"time"

	"github.com/Paintersrp/reaper/internal/proctable"
)

// EventType captures the lifecycle notifications emitted while supervising.
type EventType string

const (
	EventTypeSubreaper     EventType = "subreaper"
	EventTypeLaunched      EventType = "launched"
	EventTypeLaunchFailed  EventType = "launch_failed"
	EventTypeRelayed       EventType = "relayed"
	EventTypeRelayFailed   EventType = "relay_failed"
	EventTypePrimaryExited EventType = "primary_exited"
	EventTypeWaitFailed    EventType = "wait_failed"
	EventTypeSwept         EventType = "swept"
	EventTypeSweepFailed   EventType = "sweep_failed"
	EventTypeScan          EventType = "scan"
	EventTypeKilled        EventType = "killed"
	EventTypeKillFailed    EventType = "kill_failed"
	EventTypeReaped        EventType = "reaped"
	EventTypeReapFailed    EventType = "reap_failed"
	EventTypeDone          EventType = "done"
)

// Event is a single lifecycle notification. Only the fields relevant to the
// event type are populated.
type Event struct {
	Timestamp time.Time
	Type      EventType
	PID       int
	Signal    syscall.Signal
	Status    *proctable.Status
	Count     int
	Message   string
	Err       error
}

// Failed reports whether the event describes a failed operation.
func (e Event) Failed() bool {
	return e.Err != nil
}

func (s *Supervisor) emit(evt Event) {
	if s.opts.Events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	s.opts.Events <- evt
}
