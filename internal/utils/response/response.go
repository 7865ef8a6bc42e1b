package response

import (
	"errors"

	pkgerrors "pesaflow/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// Domain maps a DomainError onto its HTTP status, carrying the code and
// details through to the client. Unknown errors become a 500.
func Domain(c *fiber.Ctx, err error, data interface{}) error {
	var de *pkgerrors.DomainError
	if !errors.As(err, &de) {
		return ServerError(c, "internal error")
	}

	status := fiber.StatusInternalServerError
	switch de.Code {
	case "VALIDATION_ERROR":
		status = fiber.StatusBadRequest
	case "NOT_FOUND":
		status = fiber.StatusNotFound
	case "STATE_CONFLICT", "ACTIVE_REQUEST_EXISTS":
		status = fiber.StatusConflict
	case "INSUFFICIENT_BALANCE":
		status = fiber.StatusPaymentRequired
	case "DISPUTE_LOCKED":
		status = fiber.StatusForbidden
	case "GATEWAY_ERROR":
		status = fiber.StatusBadGateway
	case "VERIFICATION_TIMEOUT", "GATEWAY_REFERENCE_MISSING":
		// Uncertain outcome: distinguishable from both success and
		// failure so the client consults history instead of retrying.
		status = fiber.StatusAccepted
	}

	body := fiber.Map{
		"error":   de.Message,
		"code":    de.Code,
		"details": de.Details,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}
