// Package server exposes one orchestrator over a JSON HTTP API and streams bus events
// to websocket clients.
package server

import (
	"time"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/metrics"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
	"github.com/Huntman1210/L.N.A.E.-sub000/internal/registry"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds control plane configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:7890)
	Addr string

	// Version is reported by GET /api/v1/status
	Version string

	// ShutdownTimeout bounds graceful shutdown, including deactivation of the
	// active mode (default: 5s)
	ShutdownTimeout time.Duration

	// ReplayHistory sends recent bus events to new websocket clients
	ReplayHistory bool
	HistoryCount  int
}

// DefaultConfig returns sensible defaults for the control plane.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:7890",
		Version:         "dev",
		ShutdownTimeout: 5 * time.Second,
		ReplayHistory:   true,
		HistoryCount:    100,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// API RESPONSE TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
	StartedAt    time.Time `json:"started_at"`
	ActiveSlug   string    `json:"active_slug,omitempty"`
	ProfileCount int       `json:"profile_count"`
	EventClients int       `json:"event_clients"`
}

// ModesResponse is returned by GET /api/v1/modes.
type ModesResponse struct {
	Modes []modes.Profile `json:"modes"`
	Total int             `json:"total"`
}

// ModeResponse is returned by GET /api/v1/modes/{slug}.
type ModeResponse struct {
	Mode      modes.Profile       `json:"mode"`
	Analytics *registry.Analytics `json:"analytics,omitempty"`
}

// RecommendResponse is returned by POST /api/v1/recommend.
type RecommendResponse struct {
	Recommendations []registry.Recommendation `json:"recommendations"`
}

// HistoryResponse is returned by GET /api/v1/history.
type HistoryResponse struct {
	History []orchestrator.HistoryEntry `json:"history"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Ecosystem orchestrator.EcosystemStats `json:"ecosystem"`
	Snapshot  registry.Snapshot           `json:"snapshot"`
	Session   *metrics.SessionStats       `json:"session,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// API REQUEST TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// SwitchRequest is the body of POST /api/v1/switch.
type SwitchRequest struct {
	Slug    string        `json:"slug"`
	Context modes.Context `json:"context"`
}

// ExecuteRequest is the body of POST /api/v1/execute. An empty Slug targets the
// active mode.
type ExecuteRequest struct {
	Slug      string         `json:"slug,omitempty"`
	Task      modes.Task     `json:"task"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Options converts the request's tuning fields.
func (r ExecuteRequest) Options() modes.ExecOptions {
	return modes.ExecOptions{
		Timeout:  time.Duration(r.TimeoutMs) * time.Millisecond,
		Metadata: r.Metadata,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ═══════════════════════════════════════════════════════════════════════════════

// APIError represents a structured API error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API errors.
var (
	ErrNotFound         = &APIError{Code: 404, Message: "not found"}
	ErrBadRequest       = &APIError{Code: 400, Message: "bad request"}
	ErrInternal         = &APIError{Code: 500, Message: "internal server error"}
	ErrConflict         = &APIError{Code: 409, Message: "conflict"}
	ErrEventsDisabled   = &APIError{Code: 503, Message: "event stream unavailable"}
	ErrGatewayTimeout   = &APIError{Code: 504, Message: "lifecycle hook timed out"}
	ErrUnsupportedMedia = &APIError{Code: 415, Message: "unsupported format"}
)

// withDetails copies e with details attached.
func (e *APIError) withDetails(details string) *APIError {
	c := *e
	c.Details = details
	return &c
}
