package handlers

import (
	"strconv"

	"pesaflow/internal/services/settlement"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	settlementService settlement.Service
}

func NewAdminHandler(settlementService settlement.Service) *AdminHandler {
	return &AdminHandler{settlementService: settlementService}
}

// UnlockAccount releases a dispute lock once support has resolved the
// case. Unlocking an account that is not locked succeeds without change.
func (h *AdminHandler) UnlockAccount(c *fiber.Ctx) error {
	accountID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid account ID")
	}

	account, err := h.settlementService.Unlock(c.Context(), uint(accountID))
	if err != nil {
		return response.Domain(c, err, nil)
	}

	return response.Success(c, "Account unlocked", fiber.Map{
		"id":        account.ID,
		"is_locked": account.IsLocked,
	})
}
