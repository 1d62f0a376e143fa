package api

import (
	"encoding/json"

	"fargoat/internal/models"
	"fargoat/internal/quest"
	"fargoat/internal/service"
)

// ==================== Quest Sessions ====================

// CreateSessionRequest represents request to start a wizard session
type CreateSessionRequest struct {
	Role string `json:"role"`
}

// SessionResponse represents the state of a wizard session
type SessionResponse struct {
	SessionID string                 `json:"session_id"`
	State     quest.FormState        `json:"state"`
	Errors    quest.ValidationErrors `json:"errors"`
	StepValid bool                   `json:"step_valid"`
}

// UpdateFieldRequest represents a single field write
type UpdateFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// SetStepRequest represents a navigation request
type SetStepRequest struct {
	Step string `json:"step"`
}

// ValidateResponse represents the errors of one step
type ValidateResponse struct {
	Step   quest.Step             `json:"step"`
	Valid  bool                   `json:"valid"`
	Errors quest.ValidationErrors `json:"errors"`
}

// SubmitResponse represents a successful submission
type SubmitResponse struct {
	Result  json.RawMessage `json:"result"`
	Session SessionResponse `json:"session"`
}

// ContractsResponse lists the founder contract registry
type ContractsResponse struct {
	Contracts []quest.RegisteredContract `json:"contracts"`
	Functions []quest.ContractFunction   `json:"functions"`
}

// ==================== Feed ====================

// StartRandomDataRequest represents request to start a channel generator
type StartRandomDataRequest struct {
	Generator  string `json:"generator"`
	IntervalMS int64  `json:"interval_ms"`
}

// GeneratorsResponse lists active and available generators
type GeneratorsResponse struct {
	Active    []string `json:"active"`
	Available []string `json:"available"`
}

// FeedMessage is one value streamed to a websocket client
type FeedMessage struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// ChartHistoryMessage carries the buffered chart points sent on connect
type ChartHistoryMessage struct {
	Channel string             `json:"channel"`
	History []models.ChartData `json:"history"`
}

// ==================== Profiles ====================

// ListProfilesResponse represents a page of profiles
type ListProfilesResponse struct {
	Profiles []models.Profile `json:"profiles"`
}

// ==================== Founder Points ====================

// CreateFounderRequest opens a founder account
type CreateFounderRequest struct {
	Name            string `json:"founder_name"`
	AllocatedPoints uint64 `json:"allocated_points"`
	Active          *bool  `json:"is_active,omitempty"`
}

// PointsRequest carries a points amount and, where needed, a contract id or address
type PointsRequest struct {
	Contract string `json:"contract,omitempty"`
	Points   uint64 `json:"points"`
}

// ClaimRequest names the contract whose pending rewards are claimed
type ClaimRequest struct {
	Contract string `json:"contract"`
}

// PointsResponse reports the balances touched by a ledger operation
type PointsResponse struct {
	Founder  *service.Founder        `json:"founder,omitempty"`
	Contract *service.ContractPoints `json:"contract,omitempty"`
}

// ContractPointsResponse lists every contract pool
type ContractPointsResponse struct {
	Contracts []service.ContractPoints `json:"contracts"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Fields  quest.ValidationErrors `json:"fields,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}
