package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s  service.PostService
	ps service.PublishService
	as service.AnalyticsService
}

func NewPostHandler(s service.PostService, ps service.PublishService, as service.AnalyticsService) *PostHandler {
	return &PostHandler{s: s, ps: ps, as: as}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.CreatePost(c.Context(), GetUserID(c), GetTenantID(c), &pc)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	details, err := h.s.PostInfo(c.Context(), id, GetUserID(c), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(details)
}

func (h *PostHandler) ListRecords(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	details, err := h.s.PostInfo(c.Context(), id, GetUserID(c), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(details.Records)
}

func (h *PostHandler) UpdateSchedule(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	var su transfer.ScheduleUpdate
	if err := c.BodyParser(&su); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.UpdateSchedule(c.Context(), id, GetUserID(c), GetTenantID(c), su.ScheduledTime)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.s.Remove(c.Context(), id, GetUserID(c), GetTenantID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) Publish(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	post, err := h.ps.Publish(c.Context(), id, GetUserID(c), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RetryFailed(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	post, err := h.ps.RetryFailed(c.Context(), id, GetUserID(c), GetTenantID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Analytics(c *fiber.Ctx) error {
	id, err := postID(c)
	if err != nil {
		return respondError(c, err)
	}
	snapshot, err := h.as.PostAnalytics(c.Context(), id, GetUserID(c), GetTenantID(c), c.Params("platform"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(snapshot)
}
