package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers a plain text message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type TaskInfo struct {
	ID        string
	Name      string
	ChatID    int64
	StartedAt time.Time
}

// TaskRegistry supervises detached runs such as publish-now and mirror jobs.
// Failures and panics are logged and reported to the chat that started the run.
type TaskRegistry struct {
	notifier Notifier
	base     context.Context

	mu    sync.Mutex
	tasks map[string]TaskInfo
	wg    sync.WaitGroup
}

func NewTaskRegistry(base context.Context, notifier Notifier) *TaskRegistry {
	return &TaskRegistry{
		notifier: notifier,
		base:     base,
		tasks:    make(map[string]TaskInfo),
	}
}

func (r *TaskRegistry) Go(name string, chatID int64, fn func(ctx context.Context) error) string {
	info := TaskInfo{
		ID:        uuid.New().String(),
		Name:      name,
		ChatID:    chatID,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[info.ID] = info
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(info, fn)
	return info.ID
}

func (r *TaskRegistry) run(info TaskInfo, fn func(ctx context.Context) error) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.tasks, info.ID)
		r.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("background task panicked", "task", info.Name, "id", info.ID, "panic", p, "stack", string(debug.Stack()))
			r.report(info, fmt.Sprintf("%s crashed unexpectedly.", info.Name))
		}
	}()

	if err := fn(r.base); err != nil {
		slog.Error("background task failed", "task", info.Name, "id", info.ID, "error", err)
		r.report(info, fmt.Sprintf("%s failed: %v", info.Name, err))
		return
	}
	slog.Info("background task finished", "task", info.Name, "id", info.ID, "elapsed", time.Since(info.StartedAt).String())
}

func (r *TaskRegistry) report(info TaskInfo, text string) {
	if r.notifier == nil || info.ChatID == 0 {
		return
	}
	if err := r.notifier.Notify(context.Background(), info.ChatID, text); err != nil {
		slog.Error("report task failure", "task", info.Name, "error", err)
	}
}

// Running lists active tasks, oldest first.
func (r *TaskRegistry) Running() []TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Wait blocks until every task has returned or ctx is done.
func (r *TaskRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
