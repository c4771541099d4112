package server

import "github.com/abhirockzz/langchaingo-trip-planner/plan"

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ChatHistoryResponse struct {
	SessionID string                     `json:"sessionID"`
	Messages  []plan.ConversationMessage `json:"messages"`
}

type DeleteConversationRequest struct {
	SessionID string `json:"sessionID"`
}

type DeleteConversationResponse struct {
	Success bool `json:"success"`
}
