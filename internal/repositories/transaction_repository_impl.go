package repositories

import (
	"fmt"
	"time"

	"pesaflow/internal/models"

	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(tx *models.Transaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.First(&tx, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) GetByReference(ref string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("reference = ?", ref).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) MarkCompleted(id uint, confirmationCode string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":                    models.TransactionStatusCompleted,
			"gateway_confirmation_code": confirmationCode,
			"completed_at":              at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete transaction: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *transactionRepository) MarkFailed(id uint) (bool, error) {
	result := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		UpdateColumn("status", models.TransactionStatusFailed)
	if result.Error != nil {
		return false, fmt.Errorf("failed to fail transaction: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *transactionRepository) SetGatewayID(id uint, gatewayID string) error {
	result := r.db.Model(&models.Transaction{}).
		Where("id = ?", id).
		UpdateColumn("gateway_transaction_id", gatewayID)
	if result.Error != nil {
		return fmt.Errorf("failed to set gateway id: %w", result.Error)
	}
	return nil
}

func (r *transactionRepository) HistoryByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}

func (r *transactionRepository) CommissionExists(requestID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("request_id = ? AND type = ?", requestID, models.TransactionTypeAgentCommission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to verify commission row: %w", err)
	}
	return count > 0, nil
}

func (r *transactionRepository) EnqueueReconciliation(item *models.ReconciliationItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to enqueue reconciliation item: %w", err)
	}
	return nil
}
