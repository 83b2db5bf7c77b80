//go:build linux

package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/reaper/internal/proctable"
)

type recorder struct {
	ch       chan Event
	done     chan struct{}
	launched chan int

	mu     sync.Mutex
	events []Event
}

func newRecorder() *recorder {
	r := &recorder{
		ch:       make(chan Event, 16),
		done:     make(chan struct{}),
		launched: make(chan int, 1),
	}
	go func() {
		defer close(r.done)
		for evt := range r.ch {
			r.mu.Lock()
			r.events = append(r.events, evt)
			r.mu.Unlock()
			if evt.Type == EventTypeLaunched {
				select {
				case r.launched <- evt.PID:
				default:
				}
			}
		}
	}()
	return r
}

func (r *recorder) finish() []Event {
	close(r.ch)
	<-r.done
	return r.events
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh unavailable")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep unavailable")
	}
}

func runReal(t *testing.T, ctx context.Context, opts Options, target Target) (Result, []Event) {
	t.Helper()
	rec := newRecorder()
	opts.Events = rec.ch
	sup := New(proctable.New(""), opts)

	done := make(chan runOutcome, 1)
	go func() {
		res, err := sup.Run(ctx, target)
		done <- runOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		events := rec.finish()
		if out.err != nil {
			t.Fatalf("run: %v", out.err)
		}
		return out.res, events
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not finish")
		return Result{}, nil
	}
}

func runRealAsync(ctx context.Context, opts Options, target Target) (*recorder, <-chan runOutcome) {
	rec := newRecorder()
	opts.Events = rec.ch
	sup := New(proctable.New(""), opts)
	done := make(chan runOutcome, 1)
	go func() {
		res, err := sup.Run(ctx, target)
		done <- runOutcome{res: res, err: err}
	}()
	return rec, done
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid > 0 {
				return pid
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out reading pid from %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func assertGone(t *testing.T, pid int) {
	t.Helper()
	if proctable.New("").Exists(pid) {
		t.Fatalf("pid %d still exists after supervisor returned", pid)
	}
}

func assertNoChildren(t *testing.T) {
	t.Helper()
	children, err := proctable.New("").ChildrenOf(os.Getpid())
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("expected no remaining children, got %v", children)
	}
}

func TestEndToEndDetachedSleeperIsKilled(t *testing.T) {
	requireShell(t)
	pidFile := filepath.Join(t.TempDir(), "sleeper.pid")
	script := "sleep 100 >/dev/null 2>&1 & echo $! > '" + pidFile + "'"

	res, _ := runReal(t, context.Background(), Options{}, Target{Path: "/bin/sh", Args: []string{"-c", script}})

	sleeper := readPID(t, pidFile)
	assertGone(t, sleeper)
	assertNoChildren(t)
	if res.PrimaryStatus == nil || res.PrimaryStatus.ExitCode != 0 {
		t.Fatalf("expected primary to exit 0, got %+v", res.PrimaryStatus)
	}
	if res.Reaped < 1 {
		t.Fatalf("expected the sleeper to be reaped, got %d", res.Reaped)
	}
}

func TestEndToEndOrphanOfKilledDescendantIsKilled(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	middleFile := filepath.Join(dir, "middle.pid")
	deepFile := filepath.Join(dir, "deep.pid")
	// The middle shell is only visible to the first scan. Killing it orphans
	// the deep sleeper, which only a later scan can find.
	script := "sh -c 'sleep 100 >/dev/null 2>&1 & echo $! > " + deepFile + "; sleep 100' >/dev/null 2>&1 & " +
		"echo $! > " + middleFile + "; " +
		"while [ ! -s " + deepFile + " ]; do sleep 0.01; done"

	res, _ := runReal(t, context.Background(), Options{}, Target{Path: "/bin/sh", Args: []string{"-c", script}})

	assertGone(t, readPID(t, middleFile))
	assertGone(t, readPID(t, deepFile))
	assertNoChildren(t)
	if res.Reaped < 2 {
		t.Fatalf("expected at least 2 reaped descendants, got %d", res.Reaped)
	}
	if res.Scans < 3 {
		t.Fatalf("expected at least 3 scans, got %d", res.Scans)
	}
}

func TestEndToEndInterruptReachesPrimaryOnly(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	gcFile := filepath.Join(dir, "grandchild.pid")
	sigFile := filepath.Join(dir, "primary.sig")
	script := "trap 'echo term > " + sigFile + "; exit 0' TERM; " +
		"sleep 100 >/dev/null 2>&1 & echo $! > " + gcFile + "; wait"

	rec, done := runRealAsync(context.Background(), Options{RelayInterrupt: true}, Target{Path: "/bin/sh", Args: []string{"-c", script}})
	grandchild := readPID(t, gcFile)

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send interrupt: %v", err)
	}

	var out runOutcome
	select {
	case out = <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	events := rec.finish()
	if out.err != nil {
		t.Fatalf("run: %v", out.err)
	}

	data, err := os.ReadFile(sigFile)
	if err != nil || strings.TrimSpace(string(data)) != "term" {
		t.Fatalf("primary did not receive SIGTERM: %q, %v", data, err)
	}
	if out.res.PrimaryStatus == nil || out.res.PrimaryStatus.ExitCode != 0 {
		t.Fatalf("expected primary to exit 0 from its trap, got %+v", out.res.PrimaryStatus)
	}

	// The grandchild survived the relay and was only killed by the reap loop.
	var killedByReap bool
	for _, evt := range eventsOfType(events, EventTypeReaped) {
		if evt.PID == grandchild && evt.Status != nil && evt.Status.Signal == syscall.SIGKILL {
			killedByReap = true
		}
	}
	if !killedByReap {
		t.Fatalf("expected grandchild %d to be killed by the reap loop, events: %+v", grandchild, events)
	}
	assertGone(t, grandchild)
}

func TestEndToEndSleepLineageGone(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec, done := runRealAsync(ctx, Options{}, Target{Path: "sleep", Args: []string{"100"}})

	var primary int
	select {
	case primary = <-rec.launched:
	case <-time.After(5 * time.Second):
		t.Fatal("primary child was not launched")
	}
	if !proctable.New("").Exists(primary) {
		t.Fatalf("primary %d not found in the process table", primary)
	}
	children, err := proctable.New("").ChildrenOf(os.Getpid())
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	found := false
	for _, pid := range children {
		found = found || pid == primary
	}
	if !found {
		t.Fatalf("primary %d is not a child of the supervisor: %v", primary, children)
	}

	cancel()

	var out runOutcome
	select {
	case out = <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	rec.finish()
	if out.err != nil {
		t.Fatalf("run: %v", out.err)
	}
	if out.res.PrimaryStatus == nil || out.res.PrimaryStatus.Signal != syscall.SIGTERM {
		t.Fatalf("expected sleep terminated by SIGTERM, got %+v", out.res.PrimaryStatus)
	}
	assertGone(t, primary)
	assertNoChildren(t)
}

func TestLaunchRewritesArgvZero(t *testing.T) {
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep unavailable")
	}
	pid, err := Launch(Target{Path: path, Args: []string{"30"}}, ProcAttrs{})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	table := proctable.New("")
	t.Cleanup(func() {
		_ = table.Signal(pid, syscall.SIGKILL)
		_, _ = table.Wait(pid)
	})

	cmdline, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		t.Fatalf("read cmdline: %v", err)
	}
	if got := string(cmdline); got != "sleep\x0030\x00" {
		t.Fatalf("unexpected argv %q", got)
	}
}

func TestLaunchFailures(t *testing.T) {
	dir := t.TempDir()

	notExecutable := filepath.Join(dir, "plain")
	if err := os.WriteFile(notExecutable, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	badInterpreter := filepath.Join(dir, "bad")
	if err := os.WriteFile(badInterpreter, []byte("#!/nonexistent/interpreter\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		kind LaunchErrorKind
	}{
		{name: "missingFromPath", path: "reaper-no-such-program", kind: KindNotFound},
		{name: "notExecutable", path: notExecutable, kind: KindNotFound},
		{name: "execFails", path: badInterpreter, kind: KindStart},
		{name: "empty", path: "", kind: KindNoProgram},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Launch(Target{Path: tc.path}, ProcAttrs{})
			var launchErr *LaunchError
			if !errors.As(err, &launchErr) {
				t.Fatalf("expected launch error, got %v", err)
			}
			if launchErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, launchErr.Kind, err)
			}
		})
	}
}
