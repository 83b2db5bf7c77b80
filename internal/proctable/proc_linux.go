//go:build linux

package proctable

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// DefaultRoot is the mount point of procfs.
const DefaultRoot = "/proc"

// Proc implements Table on top of procfs and raw wait4/kill.
type Proc struct {
	root string

	probeOnce    sync.Once
	taskChildren bool
}

// New returns a Table reading process information below root. An empty root
// selects DefaultRoot.
func New(root string) *Proc {
	if root == "" {
		root = DefaultRoot
	}
	return &Proc{root: root}
}

// ChildrenOf lists the direct children of pid.
//
// Children are tracked per thread by the kernel: a child forked by a thread
// appears in that thread's children file, and orphans are reparented to a live
// thread of the subreaper. The lists of every thread of pid are merged.
// Kernels built without CONFIG_PROC_CHILDREN lack these files, in which case
// the whole process table is scanned for entries whose parent is pid.
func (p *Proc) ChildrenOf(pid int) ([]int, error) {
	if !p.supportsTaskChildren(pid) {
		return p.scanByParent(pid)
	}

	taskDir := filepath.Join(p.root, strconv.Itoa(pid), "task")
	tasks, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, fmt.Errorf("list threads of %d: %w", pid, err)
	}

	seen := make(map[int]struct{})
	for _, task := range tasks {
		data, err := os.ReadFile(filepath.Join(taskDir, task.Name(), "children"))
		if err != nil {
			// The thread exited between listing and reading.
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
				continue
			}
			return nil, fmt.Errorf("read children of %d/%s: %w", pid, task.Name(), err)
		}
		pids, err := parsePIDList(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse children of %d/%s: %w", pid, task.Name(), err)
		}
		for _, child := range pids {
			seen[child] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (p *Proc) supportsTaskChildren(pid int) bool {
	p.probeOnce.Do(func() {
		path := filepath.Join(p.root, strconv.Itoa(pid), "task", strconv.Itoa(pid), "children")
		_, err := os.Stat(path)
		p.taskChildren = !errors.Is(err, fs.ErrNotExist)
	})
	return p.taskChildren
}

func (p *Proc) scanByParent(pid int) ([]int, error) {
	pfs, err := procfs.NewFS(p.root)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", p.root, err)
	}
	procs, err := pfs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	seen := make(map[int]struct{})
	for _, proc := range procs {
		stat, err := proc.Stat()
		if err != nil {
			// Gone since the listing.
			continue
		}
		if stat.PPID == pid {
			seen[stat.PID] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// Signal sends sig to pid.
func (p *Proc) Signal(pid int, sig syscall.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %d with %s: %w", pid, unix.SignalName(sig), err)
	}
	return nil
}

// Await blocks until pid has terminated without reaping it.
func (p *Proc) Await(pid int) error {
	for {
		var info unix.Siginfo
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("await %d: %w", pid, err)
		}
		return nil
	}
}

// Wait blocks until pid has terminated and reaps it.
func (p *Proc) Wait(pid int) (Status, error) {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Status{}, fmt.Errorf("wait %d: %w", pid, err)
		}
		return FromWaitStatus(syscall.WaitStatus(ws)), nil
	}
}

// TryWait reaps pid if it has already terminated.
func (p *Proc) TryWait(pid int) (Status, bool, error) {
	for {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Status{}, false, fmt.Errorf("wait %d: %w", pid, err)
		}
		if wpid == 0 {
			return Status{}, false, nil
		}
		return FromWaitStatus(syscall.WaitStatus(ws)), true, nil
	}
}

// Exists reports whether pid still has an entry in the process table. Zombies
// count as existing until they are reaped.
func (p *Proc) Exists(pid int) bool {
	_, err := os.Stat(filepath.Join(p.root, strconv.Itoa(pid)))
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

func parsePIDList(raw string) ([]int, error) {
	fields := strings.Fields(raw)
	pids := make([]int, 0, len(fields))
	for _, field := range fields {
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("invalid pid %q", field)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for pid := range set {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}
