// Package matching ranks available agents by distance from a customer
// and owns agent availability toggling, including the GPS accuracy gate.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pesaflow/internal/errors"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"

	"github.com/mmcloughlin/geohash"
)

// MaxLocationAccuracy is the worst GPS accuracy (meters) accepted for
// an agent going available. A fuzzier fix would match customers to
// agents who are not actually nearby.
const MaxLocationAccuracy = 100.0

// geohashPrecision of 5 gives cells of roughly 5km per side, which with
// the neighbor ring covers a useful walk/ride radius around the customer.
const geohashPrecision = 5

// AvailabilityInput is an agent's go-available request.
type AvailabilityInput struct {
	Available bool
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// AgentMatch is an eligible agent with its computed distance.
type AgentMatch struct {
	Agent      *models.Account `json:"agent"`
	DistanceKm float64         `json:"distance_km"`
	Distance   string          `json:"distance"`
}

// Service finds and manages cash agents.
type Service interface {
	SetAvailability(ctx context.Context, agentID uint, input AvailabilityInput) (*models.Account, error)
	NearbyAgents(ctx context.Context, point GeoPoint, limit int) ([]AgentMatch, error)
}

type service struct {
	accounts repositories.AccountRepository
}

func NewService(accounts repositories.AccountRepository) Service {
	if accounts == nil {
		panic("accounts repository is required")
	}
	return &service{accounts: accounts}
}

func (s *service) SetAvailability(ctx context.Context, agentID uint, input AvailabilityInput) (*models.Account, error) {
	account, err := s.accounts.GetByID(agentID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	if !account.IsAgent {
		return nil, errors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "account is not an agent",
		})
	}
	if account.IsLocked {
		return nil, errors.ErrDisputeLocked
	}

	var hash string
	if input.Available {
		if input.Accuracy > MaxLocationAccuracy {
			return nil, errors.ErrValidation.WithDetails(map[string]interface{}{
				"reason":    "location fix too inaccurate to go available",
				"accuracy":  input.Accuracy,
				"threshold": MaxLocationAccuracy,
			})
		}
		hash = geohash.EncodeWithPrecision(input.Latitude, input.Longitude, geohashPrecision)
	}

	err = s.accounts.SetAvailability(agentID, input.Available,
		input.Latitude, input.Longitude, input.Accuracy, hash, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update availability: %w", err)
	}

	return s.accounts.GetByID(agentID)
}

// NearbyAgents returns eligible agents ranked by great-circle distance
// from the given point. Candidates are prefiltered to the customer's
// geohash cell and its neighbors before exact distances are computed.
func (s *service) NearbyAgents(ctx context.Context, point GeoPoint, limit int) ([]AgentMatch, error) {
	center := geohash.EncodeWithPrecision(point.Latitude, point.Longitude, geohashPrecision)
	cells := append(geohash.Neighbors(center), center)

	agents, err := s.accounts.ListAvailableAgents(cells, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list available agents: %w", err)
	}

	matches := make([]AgentMatch, 0, len(agents))
	for _, agent := range agents {
		if !agent.EligibleAgent() {
			continue
		}
		km := Distance(point, GeoPoint{Latitude: agent.Latitude, Longitude: agent.Longitude})
		matches = append(matches, AgentMatch{
			Agent:      agent,
			DistanceKm: km,
			Distance:   FormatDistance(km),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
