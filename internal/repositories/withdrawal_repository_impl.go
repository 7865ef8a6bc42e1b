package repositories

import (
	"errors"
	"fmt"
	"time"

	"pesaflow/internal/models"

	"gorm.io/gorm"
)

type withdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(req *models.WithdrawalRequest) error {
	if err := r.db.Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveRequest
		}
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

func (r *withdrawalRepository) GetByID(id uint) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return &req, nil
}

func (r *withdrawalRepository) GetActiveByUser(userID uint, now time.Time) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := r.db.
		Where("user_id = ? AND status IN ?", userID, []string{
			models.RequestStatusPending,
			models.RequestStatusMatched,
			models.RequestStatusInProgress,
		}).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get active request: %w", err)
	}

	if !req.Active(now) {
		// Pending past its deadline: terminate it lazily and report no
		// active request.
		if _, err := r.MarkExpired(req.ID); err != nil {
			return nil, err
		}
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r *withdrawalRepository) Accept(id, agentID uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":      models.RequestStatusMatched,
			"agent_id":    agentID,
			"accepted_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to accept request: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *withdrawalRepository) MarkArrived(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusMatched).
		Updates(map[string]interface{}{
			"status":           models.RequestStatusInProgress,
			"agent_arrived_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark arrival: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *withdrawalRepository) SetConfirmed(id uint, actor string) (*models.WithdrawalRequest, bool, error) {
	column := "user_confirmed"
	if actor == models.RoleAgent {
		column = "agent_confirmed"
	}

	result := r.db.Model(&models.WithdrawalRequest{}).
		Where(fmt.Sprintf("id = ? AND status = ? AND %s = ?", column), id, models.RequestStatusInProgress, false).
		UpdateColumn(column, true)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to set confirmation: %w", result.Error)
	}

	req, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return req, result.RowsAffected == 1, nil
}

func (r *withdrawalRepository) ClaimSettlement(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ? AND user_confirmed = ? AND agent_confirmed = ?",
			id, models.RequestStatusInProgress, true, true).
		Updates(map[string]interface{}{
			"status":       models.RequestStatusCompleted,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim settlement: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *withdrawalRepository) ReleaseSettlement(id uint) error {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.RequestStatusInProgress,
			"completed_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release settlement claim: %w", result.Error)
	}
	return nil
}

func (r *withdrawalRepository) Cancel(id uint, cancelledBy, reason string, at time.Time) (*models.WithdrawalRequest, bool, error) {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status NOT IN ?", id, []string{
			models.RequestStatusCompleted,
			models.RequestStatusCancelled,
			models.RequestStatusExpired,
		}).
		Updates(map[string]interface{}{
			"status":        models.RequestStatusCancelled,
			"cancelled_by":  cancelledBy,
			"cancel_reason": reason,
			"cancelled_at":  at,
		})
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to cancel request: %w", result.Error)
	}

	req, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return req, result.RowsAffected == 1, nil
}

func (r *withdrawalRepository) MarkDispute(id uint, reason string) error {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispute":        true,
			"dispute_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark dispute: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *withdrawalRepository) MarkExpired(id uint) (bool, error) {
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusPending).
		UpdateColumn("status", models.RequestStatusExpired)
	if result.Error != nil {
		return false, fmt.Errorf("failed to expire request: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
