// Package task runs long graph builds in the background behind explicit
// handles carrying a status, the latest progress snapshot and a cancel
// signal.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
)

// ErrRunning is returned when a key already has an unfinished task.
var ErrRunning = errors.New("task already running")

// Func is the body of a task. It must honor ctx and may report progress
// any number of times.
type Func func(ctx context.Context, report paper.ProgressFunc) error

// Handle is a running or finished task.
type Handle struct {
	ID      string
	Key     string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	progress paper.Progress
	err      error
	finished time.Time
}

// Progress returns the latest snapshot.
func (h *Handle) Progress() paper.Progress {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.progress
}

// Status returns the current phase.
func (h *Handle) Status() paper.Status {
	return h.Progress().Status
}

// Err returns the task's error once finished.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Done is closed when the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Finished reports whether the task has returned.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Cancel asks the task to stop. It does not wait.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) report(p paper.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isTerminalLocked() {
		return
	}
	h.progress = p
}

func (h *Handle) isTerminalLocked() bool {
	return !h.finished.IsZero()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	h.finished = time.Now()
	switch {
	case err == nil:
		if h.progress.Status != paper.StatusCompleted {
			h.progress = paper.Progress{Status: paper.StatusCompleted, Progress: h.progress.Total, Total: h.progress.Total, Message: "Completed"}
		}
	case errors.Is(err, context.Canceled):
		h.progress = paper.Progress{Status: paper.StatusCancelled, Message: "Cancelled"}
	default:
		h.progress = paper.Progress{Status: paper.StatusFailed, Message: fmt.Sprintf("Error: %v", err)}
	}
}

// Manager tracks at most one live task per key (a project ID).
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*Handle
	base  context.Context
	stop  context.CancelFunc
	log   *logger.Logger
}

// NewManager creates a manager. Every task context derives from one base
// context cancelled by Shutdown.
func NewManager(log *logger.Logger) *Manager {
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		tasks: make(map[string]*Handle),
		base:  base,
		stop:  stop,
		log:   logger.OrNop(log).With("component", "task"),
	}
}

// Start launches fn for key. It fails with ErrRunning while a previous task
// for the same key is unfinished. The initial status is initial.
func (m *Manager) Start(key string, initial paper.Status, fn Func) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.tasks[key]; ok && !h.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrRunning, key)
	}

	ctx, cancel := context.WithCancel(m.base)
	h := &Handle{
		ID:       uuid.NewString(),
		Key:      key,
		Started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: paper.Progress{Status: initial},
	}
	m.tasks[key] = h

	go func() {
		defer close(h.done)
		defer cancel()
		err := m.run(ctx, h, fn)
		h.finish(err)
		m.log.Info("task finished", "key", key, "task", h.ID, "status", h.Status(), "elapsed", time.Since(h.Started))
	}()
	return h, nil
}

func (m *Manager) run(ctx context.Context, h *Handle, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("task panicked", "key", h.Key, "panic", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, h.report)
}

// Get returns the latest task for key.
func (m *Manager) Get(key string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.tasks[key]
	return h, ok
}

// Cancel stops the task for key and waits for it to return or for ctx to
// end. It reports whether a task existed.
func (m *Manager) Cancel(ctx context.Context, key string) bool {
	h, ok := m.Get(key)
	if !ok {
		return false
	}
	h.Cancel()
	_ = h.Wait(ctx)
	return true
}

// Forget drops the record for key once its task has finished.
func (m *Manager) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.tasks[key]; ok && h.Finished() {
		delete(m.tasks, key)
	}
}

// Shutdown cancels every task and waits for them until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.tasks))
	for _, h := range m.tasks {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
