// Package supervisor runs a single target program as the primary child of a
// subreaper and guarantees that no descendant outlives the supervisor.
//
// The lifecycle is strictly sequential: register as subreaper, launch the
// target, wait for it while relaying interrupts and sweeping exited orphans,
// then kill and reap every remaining descendant until a scan of the
// supervisor's children comes back empty.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Paintersrp/reaper/internal/proctable"
	"github.com/Paintersrp/reaper/internal/subreaper"
)

const (
	defaultGracefulSignal = syscall.SIGTERM
	reapBackoffMin        = 10 * time.Millisecond
	reapBackoffMax        = 250 * time.Millisecond
)

// Options configure a Supervisor.
type Options struct {
	// RelayInterrupt installs a handler for RelaySignals that forwards
	// GracefulSignal to the primary child. When false no handler is
	// installed and the signals keep their default disposition.
	RelayInterrupt bool
	RelaySignals   []os.Signal
	GracefulSignal syscall.Signal

	// SweepZombies collects already exited orphans on SIGCHLD while the
	// primary child is still running.
	SweepZombies bool

	ProcAttrs ProcAttrs

	// Events receives lifecycle notifications. Sends block, so the consumer
	// must drain the channel until Run returns.
	Events chan<- Event
}

// Result summarises a completed supervision run.
type Result struct {
	PrimaryPID    int
	PrimaryStatus *proctable.Status
	Swept         int
	Reaped        int
	Scans         int
}

// Supervisor drives one supervision run.
type Supervisor struct {
	opts  Options
	table proctable.Table
	self  int

	register   func() error
	launch     func(Target, ProcAttrs) (int, error)
	notify     func(chan<- os.Signal, ...os.Signal)
	stopNotify func(chan<- os.Signal)
	sleep      func(time.Duration)
}

// New returns a Supervisor operating on table.
func New(table proctable.Table, opts Options) *Supervisor {
	if opts.GracefulSignal == 0 {
		opts.GracefulSignal = defaultGracefulSignal
	}
	if opts.RelayInterrupt && len(opts.RelaySignals) == 0 {
		opts.RelaySignals = []os.Signal{os.Interrupt}
	}
	return &Supervisor{
		opts:       opts,
		table:      table,
		self:       os.Getpid(),
		register:   subreaper.Set,
		launch:     Launch,
		notify:     signal.Notify,
		stopNotify: signal.Stop,
		sleep:      time.Sleep,
	}
}

// Run supervises target until the primary child and every descendant are
// gone.
//
// Cancelling ctx before the primary child exits has the same effect as a
// relayed interrupt. Once the primary child has exited, the reap loop always
// runs to completion regardless of ctx.
//
// A launch failure is returned after the reap loop has run; a failure to list
// the supervisor's children aborts the reap loop and is returned immediately.
func (s *Supervisor) Run(ctx context.Context, target Target) (Result, error) {
	if target.Path == "" {
		return Result{}, &LaunchError{Kind: KindNoProgram, Err: ErrNoProgram}
	}

	if err := s.register(); err != nil {
		s.emit(Event{Type: EventTypeSubreaper, PID: s.self, Err: err})
	} else {
		s.emit(Event{Type: EventTypeSubreaper, PID: s.self, Message: "registered as child subreaper"})
	}

	// Handlers are installed before the fork so an interrupt arriving right
	// after it is buffered instead of hitting the default disposition. The
	// relay subscription is held until Run returns: once the relay goroutine
	// has stopped, further relay signals fill the buffer and are dropped, so
	// an interrupt can never cut the reap loop short.
	var relayCh, sweepCh chan os.Signal
	if s.opts.RelayInterrupt {
		relayCh = make(chan os.Signal, 4)
		s.notify(relayCh, s.opts.RelaySignals...)
		defer s.stopNotify(relayCh)
	}
	if s.opts.SweepZombies {
		sweepCh = make(chan os.Signal, 1)
		s.notify(sweepCh, syscall.SIGCHLD)
	}
	stopSweep := func() {
		if sweepCh != nil {
			s.stopNotify(sweepCh)
		}
	}

	var res Result
	pid, launchErr := s.launch(target, s.opts.ProcAttrs)
	if launchErr != nil {
		stopSweep()
		s.emit(Event{Type: EventTypeLaunchFailed, Message: target.Path, Err: launchErr})
		if err := s.reapAll(&res); err != nil {
			return res, err
		}
		return res, launchErr
	}
	res.PrimaryPID = pid
	s.emit(Event{Type: EventTypeLaunched, PID: pid, Message: target.Path})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.relay(ctx, relayCh, stop, pid)
	}()
	if sweepCh != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Swept = s.sweep(sweepCh, stop, pid)
		}()
	}

	// The primary stays a zombie until the helpers have stopped, so its pid
	// cannot be recycled while the relay may still signal it. If Await fails,
	// Wait fails the same way and reports it.
	_ = s.table.Await(pid)

	stopSweep()
	close(stop)
	wg.Wait()

	status, err := s.table.Wait(pid)
	if err != nil {
		s.emit(Event{Type: EventTypeWaitFailed, PID: pid, Err: err})
	} else {
		res.PrimaryStatus = &status
		s.emit(Event{Type: EventTypePrimaryExited, PID: pid, Status: &status})
	}

	if err := s.reapAll(&res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Supervisor) reapAll(res *Result) error {
	reaped, scans, err := s.reap()
	res.Reaped += reaped
	res.Scans += scans
	if err != nil {
		return err
	}
	s.emit(Event{Type: EventTypeDone, Count: res.Reaped})
	return nil
}
