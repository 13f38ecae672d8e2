package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
)

func (q *Queue) HandlePublishPackTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPackPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	slog.Info("scheduled publish fired", "pack", payload.PackName, "chat", payload.TargetChat)
	return q.PublishPack(ctx, payload)
}

// PublishPack runs the publisher once. A run that already emitted content is
// never retried; only failures before the first send are handed back to asynq.
func (q *Queue) PublishPack(ctx context.Context, payload PublishPackPayload) error {
	report, err := q.publisher.Publish(ctx, service.PublishRequest{
		OwnerID:    payload.OwnerID,
		PackName:   payload.PackName,
		TargetChat: payload.TargetChat,
	})
	if errors.Is(err, models.ErrPackNotFound) {
		slog.Warn("scheduled pack no longer exists", "pack", payload.PackName)
		return nil
	}
	if err != nil && report == nil {
		return err
	}
	if err != nil {
		slog.Error("scheduled publish interrupted", "pack", payload.PackName, "error", err)
	}
	return nil
}
