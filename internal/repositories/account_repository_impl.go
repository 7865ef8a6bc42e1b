package repositories

import (
	"fmt"
	"time"

	"pesaflow/internal/models"

	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *models.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("email = ?", email).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByPhone(phone string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("phone = ?", phone).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) Update(account *models.Account) error {
	if err := r.db.Save(account).Error; err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *accountRepository) IncrementBalance(id uint, delta int64) error {
	result := r.db.Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to adjust balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) DebitIfSufficient(id uint, amount int64) (bool, error) {
	result := r.db.Model(&models.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return false, fmt.Errorf("failed to debit account: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *accountRepository) CreditAgentSettlement(id uint, amount, commission int64) error {
	result := r.db.Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"balance":                 gorm.Expr("balance + ?", amount+commission),
			"total_commission_earned": gorm.Expr("total_commission_earned + ?", commission),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to credit agent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) SetAvailability(id uint, available bool, lat, lng, accuracy float64, hash string, at time.Time) error {
	updates := map[string]interface{}{
		"is_available": available,
	}
	if available {
		updates["latitude"] = lat
		updates["longitude"] = lng
		updates["location_accuracy"] = accuracy
		updates["geohash"] = hash
		updates["location_updated_at"] = at
	}
	result := r.db.Model(&models.Account{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) Lock(id uint, reason string) error {
	result := r.db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_locked":    true,
		"lock_reason":  reason,
		"is_available": false,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to lock account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) Unlock(id uint) error {
	result := r.db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_locked":   false,
		"lock_reason": "",
	})
	if result.Error != nil {
		return fmt.Errorf("failed to unlock account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) ListAvailableAgents(hashes []string, limit int) ([]*models.Account, error) {
	query := r.db.Where("is_agent = ? AND is_available = ? AND is_locked = ?", true, true, false)
	if len(hashes) > 0 {
		query = query.Where("geohash IN ?", hashes)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var agents []*models.Account
	if err := query.Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

func (r *accountRepository) IncrementTokenVersion(id uint) error {
	result := r.db.Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to bump token version: %w", result.Error)
	}
	return nil
}

func (r *accountRepository) CreateTransaction(tx *models.Transaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *accountRepository) ExecuteInTransaction(fn func(AccountRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&accountRepository{db: tx})
	})
}
