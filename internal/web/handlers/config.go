package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config     *config.Config
	capability recognition.Capability
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, capability recognition.Capability) *ConfigHandler {
	return &ConfigHandler{
		config:     cfg,
		capability: capability,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Capability       recognition.Capability `json:"capability"`
	MatchTolerance   float64                `json:"match_tolerance"`
	DistanceMetric   string                 `json:"distance_metric"`
	FreshnessSeconds int                    `json:"freshness_seconds"`
	ExcuseDailyLimit int                    `json:"excuse_daily_limit"`
	MaxImageSide     int                    `json:"max_image_side"`
	Timezone         string                 `json:"timezone"`
	MediaURL         string                 `json:"media_url"`
	DatabaseReady    bool                   `json:"database_ready"`
}

// Get returns the attendance policy and the recognition capability
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy := h.config.Policy

	response := ConfigResponse{
		Capability:       h.capability,
		MatchTolerance:   policy.Match.Tolerance,
		DistanceMetric:   policy.Match.DistanceMetric,
		FreshnessSeconds: policy.Index.FreshnessSeconds,
		ExcuseDailyLimit: policy.Excuse.DailyLimit,
		MaxImageSide:     policy.Image.MaxSide,
		Timezone:         h.config.School.Location().String(),
		MediaURL:         h.config.Media.URL,
		DatabaseReady:    database.IsInitialized(),
	}

	respondJSON(w, http.StatusOK, response)
}
