// Package handler contains the HTTP endpoint handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/whistbroker/internal/model"
	"github.com/mcoot/whistbroker/internal/services/account"
)

// LeaderboardHandler serves player win/loss stats
type LeaderboardHandler struct {
	accounts *account.Service
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(accounts *account.Service) *LeaderboardHandler {
	return &LeaderboardHandler{accounts: accounts}
}

// LeaderboardResponse is the JSON body for GET /api/v1/leaderboard
type LeaderboardResponse struct {
	Players []model.LeaderboardEntry `json:"players"`
}

// Get handles GET /api/v1/leaderboard
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	entries := h.accounts.Leaderboard()
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LeaderboardResponse{Players: entries})
}
