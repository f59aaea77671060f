package api

import (
	"github.com/vale-ieu/calendario/internal/assistant"
	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
)

// EventListResponse wraps event listings.
type EventListResponse struct {
	Events []models.Event `json:"events"`
}

// CategoriesResponse carries the ordered definitions plus the palette
// the UI may pick new colours from.
type CategoriesResponse struct {
	Categories []models.Category `json:"categories"`
	Palette    []string          `json:"palette"`
}

// SetCategoriesRequest is the body for PUT /categories.
type SetCategoriesRequest struct {
	Categories []models.Category `json:"categories"`
}

// FilterResponse reports the active colour filter, empty for none.
type FilterResponse struct {
	Color string `json:"color"`
}

// TokenResponse carries the URL-safe share token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ImportTokenRequest is the body for POST /state/token.
type ImportTokenRequest struct {
	Token string `json:"token"`
}

// ImportTokenResponse reports what the imported snapshot contained.
type ImportTokenResponse struct {
	Events     int `json:"events"`
	Categories int `json:"categories"`
}

// AssistantRequest is the body for POST /assistant/message.
type AssistantRequest struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history,omitempty"`
}

// AssistantResponse returns the assistant reply and the per-action
// outcome of applying its proposals.
type AssistantResponse struct {
	Reply  string            `json:"reply"`
	Report reconciler.Report `json:"report"`
}
