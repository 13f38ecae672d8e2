package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/packflow/internal/queue"
	"github.com/maheshrc27/packflow/internal/repository"
)

const sweepTimeout = 2 * time.Minute

// OrphanSweepJob cancels scheduled publications whose pack was deleted while
// the cancel step failed.
type OrphanSweepJob struct {
	packs     repository.PackRepository
	scheduler queue.Scheduler
}

func NewOrphanSweepJob(packs repository.PackRepository, scheduler queue.Scheduler) *OrphanSweepJob {
	return &OrphanSweepJob{
		packs:     packs,
		scheduler: scheduler,
	}
}

func (j *OrphanSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := j.Sweep(ctx); err != nil {
		slog.Info(err.Error())
	}
}

func (j *OrphanSweepJob) Sweep(ctx context.Context) (int, error) {
	jobs, err := j.scheduler.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sj := range jobs {
		exists, err := j.packs.Exists(ctx, sj.PackName, sj.OwnerID)
		if err != nil {
			slog.Error("orphan sweep lookup", "pack", sj.PackName, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := j.scheduler.Cancel(ctx, sj.ID); err != nil {
			slog.Error("orphan sweep cancel", "job", sj.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("orphan jobs removed", "count", removed)
	}
	return removed, nil
}
