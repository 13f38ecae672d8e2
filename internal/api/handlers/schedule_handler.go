package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/packflow/internal/models"
)

type JobLister interface {
	ListPending(ctx context.Context) ([]models.ScheduledJob, error)
	Cancel(ctx context.Context, jobID string) error
}

type ScheduleHandler struct {
	jobs JobLister
}

func NewScheduleHandler(jobs JobLister) *ScheduleHandler {
	return &ScheduleHandler{jobs: jobs}
}

// ListSchedules returns the caller's pending publish jobs in fire order.
func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobs, err := h.jobs.ListPending(c.Context())
	if err != nil {
		slog.Error("list scheduled jobs", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list schedules")
	}

	out := []models.ScheduledJob{}
	for _, j := range jobs {
		if j.OwnerID == userID {
			out = append(out, j)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"schedules": out,
	})
}

func (h *ScheduleHandler) RemoveSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.Params("id")

	jobs, err := h.jobs.ListPending(c.Context())
	if err != nil {
		slog.Error("list scheduled jobs", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list schedules")
	}

	for _, j := range jobs {
		if j.ID != id || j.OwnerID != userID {
			continue
		}
		if err := h.jobs.Cancel(c.Context(), id); err != nil {
			slog.Error("cancel scheduled job", "id", id, "error", err)
			return errorJSON(c, fiber.StatusInternalServerError, "Unable to remove schedule")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Schedule removed",
		})
	}

	return errorJSON(c, fiber.StatusNotFound, "Schedule not found")
}
