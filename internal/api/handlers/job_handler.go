package handlers

import (
	"github.com/gofiber/fiber/v2"

	job "github.com/maheshrc27/postflow/internal/jobs"
)

type JobHandler struct {
	s job.StatusService
}

func NewJobHandler(s job.StatusService) *JobHandler {
	return &JobHandler{s: s}
}

func (h *JobHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.s.GetStatus(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *JobHandler) Retry(c *fiber.Ctx) error {
	if err := h.s.Retry(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Task requeued",
	})
}
