package handlers

import (
	"log"
	"strconv"

	"pesaflow/internal/models"
	"pesaflow/internal/repositories"
	"pesaflow/internal/repositories/cache"
	"pesaflow/internal/services/topup"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	accounts     repositories.AccountRepository
	transactions repositories.TransactionRepository
	topupService topup.Service
	cache        *cache.CacheService
}

func NewWalletHandler(
	accounts repositories.AccountRepository,
	transactions repositories.TransactionRepository,
	topupService topup.Service,
	cacheService *cache.CacheService,
) *WalletHandler {
	return &WalletHandler{
		accounts:     accounts,
		transactions: transactions,
		topupService: topupService,
		cache:        cacheService,
	}
}

// extractUserClaims is a helper shared across handlers.
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

// GetWallet returns the caller's balance and profile, served cache-aside.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	if h.cache != nil {
		if cached, err := h.cache.GetAccount(c.Context(), claims.UserID); err == nil {
			return response.Success(c, "Wallet", walletView(cached))
		}
	}

	account, err := h.accounts.GetByID(claims.UserID)
	if err != nil {
		return response.ServerError(c, "Failed to get wallet")
	}
	if h.cache != nil {
		if err := h.cache.CacheAccount(c.Context(), account); err != nil {
			log.Printf("Failed to cache account %d: %v", account.ID, err)
		}
	}

	return response.Success(c, "Wallet", walletView(account))
}

func walletView(a *models.Account) fiber.Map {
	return fiber.Map{
		"id":                      a.ID,
		"name":                    a.Name,
		"phone":                   a.Phone,
		"balance":                 a.Balance,
		"currency":                a.Currency,
		"is_agent":                a.IsAgent,
		"is_available":            a.IsAvailable,
		"is_locked":               a.IsLocked,
		"total_commission_earned": a.TotalCommissionEarned,
	}
}

// TopUp charges a tokenized card and credits the wallet.
func (h *WalletHandler) TopUp(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Amount    int64  `json:"amount"`
		CardToken string `json:"card_token"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	tx, err := h.topupService.TopUp(c.Context(), claims.UserID, input.CardToken, input.Amount)
	if err != nil {
		return response.Domain(c, err, nil)
	}

	if h.cache != nil {
		if err := h.cache.InvalidateAccountID(c.Context(), claims.UserID); err != nil {
			log.Printf("Failed to invalidate cache for account %d: %v", claims.UserID, err)
		}
	}

	return response.Success(c, "Top up successful", fiber.Map{
		"reference": tx.Reference,
		"amount":    tx.Amount,
		"status":    tx.Status,
	})
}

// History lists the caller's ledger rows, newest first.
func (h *WalletHandler) History(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	txns, err := h.transactions.HistoryByUser(claims.UserID, limit, offset)
	if err != nil {
		return response.ServerError(c, "Failed to load transactions")
	}

	return response.Success(c, "Transactions", fiber.Map{
		"transactions": txns,
		"limit":        limit,
		"offset":       offset,
	})
}
