package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
)

type PackHandler struct {
	s service.PackService
}

func NewPackHandler(service service.PackService) *PackHandler {
	return &PackHandler{s: service}
}

func (h *PackHandler) ListPacks(c *fiber.Ctx) error {
	userID := GetUserID(c)

	packs, err := h.s.List(c.Context(), userID)
	if err != nil {
		slog.Error("list packs", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list packs")
	}
	if packs == nil {
		packs = []service.PackSummary{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"packs": packs,
	})
}

func (h *PackHandler) PackInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	pack, err := h.s.Get(c.Context(), userID, c.Params("name"))
	if errors.Is(err, models.ErrPackNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Pack not found")
	}
	if err != nil {
		slog.Error("get pack", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to load pack")
	}

	return c.Status(fiber.StatusOK).JSON(pack)
}
