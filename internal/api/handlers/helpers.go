package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals("user_id").(int64)
	return userID
}

func GetTenantID(c *fiber.Ctx) int64 {
	tenantID, _ := c.Locals("tenant_id").(int64)
	return tenantID
}

func postID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid post id")
	}
	return int64(id), nil
}

func errorStatus(err error) int {
	var fe *fiber.Error
	var ce *models.CredentialError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrAlreadyPublished),
		errors.Is(err, models.ErrPostNotFailed),
		errors.Is(err, models.ErrTaskNotFailed):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrAnalyticsUnsupported):
		return fiber.StatusNotImplemented
	case errors.As(err, &ce):
		return fiber.StatusFailedDependency
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a JSON error body. Internal errors are logged and
// hidden from the client.
func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		msg = "Something went wrong"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
