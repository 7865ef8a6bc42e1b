package handlers

import (
	"pesaflow/internal/services/transfer"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	transferService transfer.Service
}

func NewPaymentHandler(transferService transfer.Service) *PaymentHandler {
	return &PaymentHandler{transferService: transferService}
}

// Withdraw pushes wallet funds out to a mobile-money number via the
// gateway. Uncertain outcomes come back as 202 with the pending row;
// the client should consult history rather than retry.
func (h *PaymentHandler) Withdraw(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Phone   string `json:"phone"`
		Amount  int64  `json:"amount"`
		Network string `json:"network"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	tx, err := h.transferService.Withdraw(c.Context(), claims.UserID,
		input.Phone, input.Amount, input.Network, input.Reason)
	if err != nil {
		return response.Domain(c, err, tx)
	}

	return response.Success(c, "Withdrawal completed", tx)
}

// Send transfers to another mobile-money number. Recipients on the
// internal network settle synchronously wallet-to-wallet.
func (h *PaymentHandler) Send(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Phone   string `json:"phone"`
		Amount  int64  `json:"amount"`
		Network string `json:"network"`
		Purpose string `json:"purpose"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	tx, err := h.transferService.Send(c.Context(), claims.UserID,
		input.Phone, input.Amount, input.Network, input.Purpose)
	if err != nil {
		return response.Domain(c, err, tx)
	}

	return response.Success(c, "Transfer completed", tx)
}
