// Package service runs factsheet generation tasks and tracks their state.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinal is returned when updating a completed or failed task.
	ErrTaskFinal = errors.New("task is already final")
	// ErrProgressRegression is returned when an update lowers progress.
	ErrProgressRegression = errors.New("task progress cannot decrease")
	// ErrInvalidUpdate is returned when an update breaks a task invariant.
	ErrInvalidUpdate = errors.New("invalid task update")
)

const queuedMessage = "Task queued for processing"

const (
	// recordQueueSize bounds snapshots waiting for the history recorder.
	// When full, new snapshots are dropped rather than blocking callers.
	recordQueueSize = 1024
	recordTimeout   = 5 * time.Second
)

// Recorder receives a copy of every task change.
type Recorder interface {
	Record(ctx context.Context, task models.Task) error
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// TTL is how long finished tasks are kept. Zero keeps them forever.
	TTL      time.Duration
	Recorder Recorder
	Logger   *slog.Logger
}

// Registry is the in-memory map of generation tasks. All methods are
// thread-safe and hand out copies, never the stored records.
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]*models.Task
	watchers map[string][]chan models.Task

	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	// History mirror: snapshots are queued in change order and written by
	// a single goroutine so callers never wait on the backend.
	recorder  Recorder
	recMu     sync.Mutex
	recQueue  chan models.Task
	recDone   chan struct{}
	recClosed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tasks:    make(map[string]*models.Task),
		watchers: make(map[string][]chan models.Task),
		ttl:      opts.TTL,
		recorder: opts.Recorder,
		logger:   logger,
		now:      time.Now,
	}
	if r.recorder != nil {
		r.recQueue = make(chan models.Task, recordQueueSize)
		r.recDone = make(chan struct{})
		go r.drainRecords()
	}
	return r
}

// Create inserts a pending task and returns its snapshot.
func (r *Registry) Create(url, provider, model string) models.Task {
	now := r.now()
	task := &models.Task{
		ID:        uuid.New().String(),
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   queuedMessage,
		URL:       url,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.tasks[task.ID] = task
	snap := task.Clone()
	r.mu.Unlock()

	r.logger.Info("task created", "task_id", snap.ID, "url", url, "provider", provider, "model", model)
	r.record(snap)
	return snap
}

// Get returns the current snapshot of a task.
func (r *Registry) Get(id string) (models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// Update applies fn to a copy of the task and stores it if the result keeps
// the task invariants. The change is all-or-nothing for readers.
func (r *Registry) Update(id string, fn func(*models.Task)) (models.Task, error) {
	r.mu.Lock()

	cur, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if cur.Status.IsTerminal() {
		r.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s is %s", ErrTaskFinal, id, cur.Status)
	}

	next := cur.Clone()
	fn(&next)

	if err := checkTransition(cur, &next); err != nil {
		r.mu.Unlock()
		return models.Task{}, err
	}

	now := r.now()
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = now
	if next.Status.IsTerminal() {
		next.CompletedAt = &now
	}

	r.tasks[id] = &next
	snap := next.Clone()
	r.notifyLocked(snap)
	r.mu.Unlock()

	r.record(snap)
	return snap, nil
}

func checkTransition(cur, next *models.Task) error {
	if !next.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, next.Status)
	}
	if next.Status == models.TaskStatusPending && cur.Status != models.TaskStatusPending {
		return fmt.Errorf("%w: cannot return to pending", ErrInvalidUpdate)
	}
	if next.Progress < 0 || next.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidUpdate, next.Progress)
	}
	if next.Progress < cur.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, cur.Progress, next.Progress)
	}
	switch next.Status {
	case models.TaskStatusCompleted:
		if next.Result == nil || next.Error != "" || next.Progress != 100 {
			return fmt.Errorf("%w: completed task needs result and progress 100", ErrInvalidUpdate)
		}
	case models.TaskStatusFailed:
		if next.Error == "" || next.Result != nil {
			return fmt.Errorf("%w: failed task needs an error and no result", ErrInvalidUpdate)
		}
	default:
		if next.Result != nil || next.Error != "" {
			return fmt.Errorf("%w: running task cannot carry result or error", ErrInvalidUpdate)
		}
		if next.Progress == 100 {
			return fmt.Errorf("%w: progress 100 is reserved for completed tasks", ErrInvalidUpdate)
		}
	}
	return nil
}

// List returns all tasks, most recent first.
func (r *Registry) List() []models.Task {
	r.mu.RLock()
	out := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Watch streams snapshots of a task until it reaches a terminal state, at
// which point the channel is closed. A slow reader only sees the latest
// snapshot. Call stop to unsubscribe early.
func (r *Registry) Watch(id string) (<-chan models.Task, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	ch := make(chan models.Task, 1)
	ch <- t.Clone()
	if t.Status.IsTerminal() {
		close(ch)
		return ch, func() {}, nil
	}

	r.watchers[id] = append(r.watchers[id], ch)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.watchers[id]
			for i, w := range list {
				if w == ch {
					r.watchers[id] = slices.Delete(list, i, i+1)
					close(ch)
					break
				}
			}
			if len(r.watchers[id]) == 0 {
				delete(r.watchers, id)
			}
		})
	}
	return ch, stop, nil
}

// notifyLocked pushes snap to every watcher of the task. Caller must hold
// the write lock.
func (r *Registry) notifyLocked(snap models.Task) {
	for _, ch := range r.watchers[snap.ID] {
		select {
		case <-ch:
		default:
		}
		ch <- snap.Clone()
		if snap.Status.IsTerminal() {
			close(ch)
		}
	}
	if snap.Status.IsTerminal() {
		delete(r.watchers, snap.ID)
	}
}

// Sweep removes finished tasks that completed more than the TTL before now
// and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, t := range r.tasks {
		if t.Status.IsTerminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired tasks every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.Info("expired tasks removed", "count", n, "remaining", r.Len())
			}
		}
	}
}

// record queues a task change for the history recorder. It never blocks;
// the registry stays authoritative.
func (r *Registry) record(task models.Task) {
	if r.recorder == nil {
		return
	}
	r.recMu.Lock()
	defer r.recMu.Unlock()
	if r.recClosed {
		return
	}
	select {
	case r.recQueue <- task:
	default:
		r.logger.Warn("task history queue full, dropping snapshot", "task_id", task.ID, "status", task.Status)
	}
}

func (r *Registry) drainRecords() {
	defer close(r.recDone)
	for task := range r.recQueue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.recorder.Record(ctx, task); err != nil {
			r.logger.Warn("failed to record task history", "task_id", task.ID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting history snapshots and waits until the queued ones
// are written or ctx is done. Safe to call more than once.
func (r *Registry) Close(ctx context.Context) error {
	if r.recorder == nil {
		return nil
	}
	r.recMu.Lock()
	if !r.recClosed {
		r.recClosed = true
		close(r.recQueue)
	}
	r.recMu.Unlock()

	select {
	case <-r.recDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush task history: %w", ctx.Err())
	}
}
