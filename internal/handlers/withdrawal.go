package handlers

import (
	"strconv"

	"pesaflow/internal/services/settlement"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WithdrawalHandler struct {
	settlementService settlement.Service
}

func NewWithdrawalHandler(settlementService settlement.Service) *WithdrawalHandler {
	return &WithdrawalHandler{settlementService: settlementService}
}

// CreateRequest opens a cash withdrawal request. An account can hold at
// most one active request; posting while one exists returns the
// existing request with a conflict status.
func (h *WithdrawalHandler) CreateRequest(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Amount    int64   `json:"amount"`
		Location  string  `json:"location"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	req, err := h.settlementService.CreateRequest(c.Context(), claims.UserID,
		input.Amount, input.Location, input.Latitude, input.Longitude)
	if err != nil {
		return response.Domain(c, err, req)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Withdrawal request created",
		"data":    req,
	})
}

// GetActiveRequest returns the caller's active request, if any.
func (h *WithdrawalHandler) GetActiveRequest(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	req, err := h.settlementService.GetActiveRequest(c.Context(), claims.UserID)
	if err != nil {
		return response.Domain(c, err, nil)
	}

	return response.Success(c, "Active request", req)
}

// Transition applies one state-machine action (accept, agent_arrived,
// agent_confirm, user_confirm, complete, cancel) on behalf of the caller.
func (h *WithdrawalHandler) Transition(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	requestID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid request ID")
	}

	var input struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Action == "" {
		return response.BadRequest(c, "action is required")
	}

	req, err := h.settlementService.Transition(c.Context(), uint(requestID), input.Action,
		claims.UserID, settlement.TransitionInput{Reason: input.Reason})
	if err != nil {
		return response.Domain(c, err, req)
	}

	return response.Success(c, "Request updated", req)
}

// Delete removes a request where allowed. Completed requests are
// immutable; an in-flight request degrades to a cancel.
func (h *WithdrawalHandler) Delete(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	requestID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid request ID")
	}

	req, err := h.settlementService.Delete(c.Context(), uint(requestID), claims.UserID)
	if err != nil {
		return response.Domain(c, err, req)
	}

	return response.Success(c, "Request deleted", req)
}
