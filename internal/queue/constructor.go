package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/packflow/internal/models"
)

const (
	publishMaxRetry = 3
	listPageSize    = 100
)

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type TaskInspector interface {
	DeleteTask(queue, id string) error
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

type taskLister func(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)

type Scheduler interface {
	Schedule(ctx context.Context, job models.ScheduledJob) (string, error)
	Cancel(ctx context.Context, jobID string) error
	CancelAllMatching(ctx context.Context, ownerID int64, packName string) (int, error)
	ListPending(ctx context.Context) ([]models.ScheduledJob, error)
}

type scheduler struct {
	client    TaskEnqueuer
	inspector TaskInspector
	now       func() time.Time
}

func NewScheduler(client TaskEnqueuer, inspector TaskInspector) Scheduler {
	return &scheduler{client: client, inspector: inspector, now: time.Now}
}

// Schedule registers the job, replacing any pending job with the same id.
func (s *scheduler) Schedule(ctx context.Context, job models.ScheduledJob) (string, error) {
	if !job.FireAt.After(s.now()) {
		return "", ErrPastDateTime
	}

	id := JobID(job.PackName, job.FireAt)
	payload, err := json.Marshal(PublishPackPayload{
		PackName:   job.PackName,
		OwnerID:    job.OwnerID,
		TargetChat: job.TargetChat,
		FireAt:     job.FireAt,
	})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypePublishPack, payload)
	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.ProcessAt(job.FireAt),
		asynq.MaxRetry(publishMaxRetry),
		asynq.Queue(DefaultQueue),
	}

	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		if err := s.inspector.DeleteTask(DefaultQueue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return "", fmt.Errorf("replace job %s: %w", id, err)
		}
		_, err = s.client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		slog.Error("schedule pack", "job", id, "error", err)
		return "", err
	}

	slog.Info("pack scheduled", "job", id, "fire_at", job.FireAt)
	return id, nil
}

func (s *scheduler) Cancel(ctx context.Context, jobID string) error {
	err := s.inspector.DeleteTask(DefaultQueue, jobID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return err
	}
	return nil
}

// CancelAllMatching removes every publish job of the given pack that has not
// run yet: scheduled, due and waiting for a worker, or waiting to be retried.
// Jobs are matched on the payload, not on an id prefix, so "news" never
// matches "news2".
func (s *scheduler) CancelAllMatching(ctx context.Context, ownerID int64, packName string) (int, error) {
	removed := 0
	for _, list := range []taskLister{s.inspector.ListScheduledTasks, s.inspector.ListPendingTasks, s.inspector.ListRetryTasks} {
		jobs, err := s.listJobs(ctx, list)
		if err != nil {
			return removed, err
		}

		for _, job := range jobs {
			if job.PackName != packName || job.OwnerID != ownerID {
				continue
			}
			if err := s.Cancel(ctx, job.ID); err != nil {
				return removed, fmt.Errorf("cancel job %s: %w", job.ID, err)
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("cancelled scheduled jobs", "pack", packName, "count", removed)
	}
	return removed, nil
}

// ListPending returns scheduled publish jobs ordered by fire time.
func (s *scheduler) ListPending(ctx context.Context) ([]models.ScheduledJob, error) {
	jobs, err := s.listJobs(ctx, s.inspector.ListScheduledTasks)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].FireAt.Before(jobs[j].FireAt) })
	return jobs, nil
}

func (s *scheduler) listJobs(ctx context.Context, list taskLister) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tasks, err := list(DefaultQueue, asynq.PageSize(listPageSize), asynq.Page(page))
		if errors.Is(err, asynq.ErrQueueNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, t := range tasks {
			if t.Type != TaskTypePublishPack {
				continue
			}
			var p PublishPackPayload
			if err := json.Unmarshal(t.Payload, &p); err != nil {
				slog.Warn("skipping undecodable job", "job", t.ID, "error", err)
				continue
			}
			fireAt := p.FireAt
			if fireAt.IsZero() {
				fireAt = t.NextProcessAt
			}
			jobs = append(jobs, models.ScheduledJob{
				ID:         t.ID,
				PackName:   p.PackName,
				OwnerID:    p.OwnerID,
				TargetChat: p.TargetChat,
				FireAt:     fireAt,
			})
		}
		if len(tasks) < listPageSize {
			break
		}
	}
	return jobs, nil
}
