package handlers

import (
	"strconv"

	"pesaflow/internal/services/matching"
	"pesaflow/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type AgentHandler struct {
	matchingService matching.Service
}

func NewAgentHandler(matchingService matching.Service) *AgentHandler {
	return &AgentHandler{matchingService: matchingService}
}

// SetAvailability toggles the calling agent on or off duty. Going
// available requires a GPS fix below the accuracy threshold.
func (h *AgentHandler) SetAvailability(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return response.Unauthorized(c)
	}

	var input struct {
		Available bool    `json:"available"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	account, err := h.matchingService.SetAvailability(c.Context(), claims.UserID, matching.AvailabilityInput{
		Available: input.Available,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Accuracy:  input.Accuracy,
	})
	if err != nil {
		return response.Domain(c, err, nil)
	}

	return response.Success(c, "Availability updated", fiber.Map{
		"is_available": account.IsAvailable,
	})
}

// NearbyAgents lists available agents ranked by distance from the
// coordinates in the query string.
func (h *AgentHandler) NearbyAgents(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return response.Unauthorized(c)
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return response.BadRequest(c, "lat is required")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return response.BadRequest(c, "lng is required")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	matches, err := h.matchingService.NearbyAgents(c.Context(), matching.GeoPoint{Latitude: lat, Longitude: lng}, limit)
	if err != nil {
		return response.ServerError(c, "Failed to find agents")
	}

	return response.Success(c, "Nearby agents", fiber.Map{
		"agents": matches,
		"count":  len(matches),
	})
}
