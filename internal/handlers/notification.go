package handlers

import (
	"strconv"

	"pesaflow/internal/repositories"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	notifications repositories.NotificationRepository
}

func NewNotificationHandler(notifications repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	items, err := h.notifications.ListByUser(claims.UserID, limit)
	if err != nil {
		return response.ServerError(c, "Failed to load notifications")
	}

	return response.Success(c, "Notifications", fiber.Map{
		"notifications": items,
		"count":         len(items),
	})
}
