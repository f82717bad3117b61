// Package cancellation implements the cooperative cancellation token shared
// by every pipeline stage. Cancellation flips a flag that stages observe at
// each suspension point and best-effort terminates whatever child process is
// registered at that instant. There is an inherent race between reading the
// handle and the process exiting on its own; termination errors are ignored
// for that reason.
package cancellation

import (
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Token carries the cancellation flag and at most one live child process
// handle. Once set, the flag is never cleared.
type Token struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}

	mu   sync.Mutex
	proc *os.Process
}

// New returns a fresh, uncancelled token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancelled reports whether cancellation has been requested.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.cancelled.Load()
}

// Cancel sets the flag and terminates the registered child process, if any.
// Safe to call from any goroutine, repeatedly, at any point in the run.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.once.Do(func() {
		if t.done != nil {
			close(t.done)
		}
	})
	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()
	if proc != nil {
		terminate(proc)
	}
}

// Done returns a channel closed when cancellation is requested.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Attach registers the currently running child process so an asynchronous
// Cancel can reach it. If cancellation already happened the process is
// terminated immediately and Attach reports false.
func (t *Token) Attach(proc *os.Process) bool {
	if t == nil || proc == nil {
		return true
	}
	t.mu.Lock()
	t.proc = proc
	t.mu.Unlock()
	if t.cancelled.Load() {
		terminate(proc)
		return false
	}
	return true
}

// Detach clears the registered process handle after the child has exited.
func (t *Token) Detach() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.proc = nil
	t.mu.Unlock()
}

// terminate signals the child's process group so helper processes spawned by
// the tool die with it, falling back to the single process when no group
// exists.
func terminate(proc *os.Process) {
	if proc == nil || proc.Pid <= 0 {
		return
	}
	if err := unix.Kill(-proc.Pid, unix.SIGTERM); err != nil {
		_ = proc.Signal(unix.SIGTERM)
	}
}
