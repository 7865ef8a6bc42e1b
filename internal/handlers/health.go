package handlers

import (
	"pesaflow/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports API, database and cache status.
func HealthCheck(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":   "ok",
		"database": "ok",
		"cache":    "ok",
	}
	healthy := true

	if repositories.DB != nil {
		if sqlDB, err := repositories.DB.DB(); err != nil || sqlDB.Ping() != nil {
			status["database"] = "unavailable"
			healthy = false
		}
	} else {
		status["database"] = "not configured"
		healthy = false
	}

	if repositories.CacheService != nil {
		if err := repositories.CacheService.HealthCheck(c.Context()); err != nil {
			status["cache"] = "unavailable"
		}
	} else {
		status["cache"] = "not configured"
	}

	if !healthy {
		status["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}
