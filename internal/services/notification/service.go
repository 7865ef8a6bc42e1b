// Package notification is the fire-and-forget sink the engines emit to.
// Delivery (push/SMS) happens elsewhere; this only writes outbox rows.
package notification

import (
	"log"

	"pesaflow/internal/models"
	"pesaflow/internal/repositories"
)

// Service writes notification outbox rows. A failed write is logged and
// dropped; it must never roll back the settlement that produced it.
type Service struct {
	repo repositories.NotificationRepository
}

func NewService(repo repositories.NotificationRepository) *Service {
	return &Service{repo: repo}
}

// Notify records a notification for userID asynchronously.
func (s *Service) Notify(userID uint, kind string, payload map[string]interface{}) {
	n := &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Payload: models.NewJSON(payload),
	}
	go func() {
		if err := s.repo.Create(n); err != nil {
			log.Printf("notification write failed for user %d (%s): %v", userID, kind, err)
		}
	}()
}
