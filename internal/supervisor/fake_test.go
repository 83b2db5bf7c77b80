package supervisor

import (
	"errors"
	"os"
	"sort"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/reaper/internal/proctable"
)

const fakeSelf = 1

type sentSignal struct {
	pid int
	sig syscall.Signal
}

type waitFailure struct {
	err    error
	remove bool
}

type fakeProc struct {
	parent   int
	dead     bool
	status   proctable.Status
	exited   chan struct{}
	onSignal func(sig syscall.Signal)
}

// fakeTable models a subreaper's view of the kernel process table: exiting
// processes hand their children to fakeSelf, and dead processes stay listed
// until waited on.
type fakeTable struct {
	mu        sync.Mutex
	nextPID   int
	procs     map[int]*fakeProc
	signals   []sentSignal
	scans     int
	listErrAt int
	signalErr map[int]error
	waitErr   map[int]waitFailure
	waits     map[int]int
	onAwait   func(pid int)
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		nextPID:   100,
		procs:     make(map[int]*fakeProc),
		signalErr: make(map[int]error),
		waitErr:   make(map[int]waitFailure),
		waits:     make(map[int]int),
	}
}

func (f *fakeTable) spawn(parent int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pid := f.nextPID
	f.nextPID++
	f.procs[pid] = &fakeProc{parent: parent, exited: make(chan struct{})}
	return pid
}

func (f *fakeTable) setOnSignal(pid int, fn func(sig syscall.Signal)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[pid].onSignal = fn
}

func (f *fakeTable) setOnAwait(fn func(pid int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAwait = fn
}

func (f *fakeTable) exit(pid int, status proctable.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exitLocked(pid, status)
}

func (f *fakeTable) exitLocked(pid int, status proctable.Status) {
	p := f.procs[pid]
	if p == nil || p.dead {
		return
	}
	for _, child := range f.procs {
		if child.parent == pid {
			child.parent = fakeSelf
		}
	}
	p.dead = true
	p.status = status
	close(p.exited)
}

func (f *fakeTable) alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.procs[pid]
	return p != nil && !p.dead
}

func (f *fakeTable) present(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[pid] != nil
}

func (f *fakeTable) sent() []sentSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSignal(nil), f.signals...)
}

func (f *fakeTable) ChildrenOf(pid int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.listErrAt != 0 && f.scans >= f.listErrAt {
		return nil, errors.New("children file unreadable")
	}
	var out []int
	for child, p := range f.procs {
		if p.parent == pid {
			out = append(out, child)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (f *fakeTable) Signal(pid int, sig syscall.Signal) error {
	f.mu.Lock()
	f.signals = append(f.signals, sentSignal{pid: pid, sig: sig})
	if err := f.signalErr[pid]; err != nil {
		f.mu.Unlock()
		return err
	}
	p := f.procs[pid]
	if p == nil {
		f.mu.Unlock()
		return syscall.ESRCH
	}
	hook := p.onSignal
	if sig == syscall.SIGKILL {
		f.exitLocked(pid, proctable.Status{ExitCode: -1, Signal: syscall.SIGKILL})
	}
	f.mu.Unlock()

	if hook != nil {
		hook(sig)
	}
	return nil
}

func (f *fakeTable) Await(pid int) error {
	f.mu.Lock()
	if failure, ok := f.waitErr[pid]; ok {
		f.mu.Unlock()
		return failure.err
	}
	p := f.procs[pid]
	if p == nil || p.parent != fakeSelf {
		f.mu.Unlock()
		return syscall.ECHILD
	}
	f.mu.Unlock()

	<-p.exited
	f.mu.Lock()
	hook := f.onAwait
	f.mu.Unlock()
	if hook != nil {
		hook(pid)
	}
	return nil
}

func (f *fakeTable) Wait(pid int) (proctable.Status, error) {
	f.mu.Lock()
	if failure, ok := f.waitErr[pid]; ok {
		delete(f.waitErr, pid)
		if failure.remove {
			delete(f.procs, pid)
		}
		f.mu.Unlock()
		return proctable.Status{}, failure.err
	}
	p := f.procs[pid]
	if p == nil || p.parent != fakeSelf {
		f.mu.Unlock()
		return proctable.Status{}, syscall.ECHILD
	}
	f.mu.Unlock()

	<-p.exited

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, pid)
	f.waits[pid]++
	return p.status, nil
}

func (f *fakeTable) TryWait(pid int) (proctable.Status, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.procs[pid]
	if p == nil || p.parent != fakeSelf {
		return proctable.Status{}, false, syscall.ECHILD
	}
	if !p.dead {
		return proctable.Status{}, false, nil
	}
	delete(f.procs, pid)
	f.waits[pid]++
	return p.status, true, nil
}

// harness wires a Supervisor to a fakeTable with every OS hook replaced.
type harness struct {
	table    *fakeTable
	sup      *Supervisor
	events   chan Event
	notified chan chan<- os.Signal
	sleeps   []time.Duration

	mu      sync.Mutex
	stopped []chan<- os.Signal
}

func (h *harness) isStopped(c chan<- os.Signal) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.stopped {
		if s == c {
			return true
		}
	}
	return false
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		table:    newFakeTable(),
		events:   make(chan Event, 1024),
		notified: make(chan chan<- os.Signal, 4),
	}
	opts.Events = h.events
	h.sup = New(h.table, opts)
	h.sup.self = fakeSelf
	h.sup.register = func() error { return nil }
	h.sup.launch = func(Target, ProcAttrs) (int, error) {
		return h.table.spawn(fakeSelf), nil
	}
	h.sup.notify = func(c chan<- os.Signal, sigs ...os.Signal) {
		h.notified <- c
	}
	h.sup.stopNotify = func(c chan<- os.Signal) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.stopped = append(h.stopped, c)
	}
	h.sup.sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	return h
}

func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case evt := <-h.events:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, evt := range events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(time.Millisecond)
	}
}
