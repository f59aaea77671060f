// Package assistant sends conversation rounds to an external chat
// completion endpoint and parses the proposed calendar actions out of
// its replies. The response is untrusted: anything that does not parse
// into the expected shape fails that round only, leaving the
// conversation and any previously applied actions intact.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vale-ieu/calendario/internal/apperr"
	"github.com/vale-ieu/calendario/internal/models"
)

// Config carries the endpoint settings.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Message is one turn of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Round is a parsed assistant response: the reply text plus the
// proposed actions (possibly empty).
type Round struct {
	Reply   string                   `json:"reply"`
	Actions []models.AssistantAction `json:"actions,omitempty"`
}

// Client performs the outbound assistant call. A single request may be
// in flight at a time; a second send attempt is rejected with ErrBusy,
// not queued.
type Client struct {
	cfg        Config
	httpClient *http.Client
	busy       atomic.Bool
}

// New creates a client from config.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Busy reports whether a request is currently in flight.
func (c *Client) Busy() bool {
	return c.busy.Load()
}

// Send performs one conversation round. events and categories are the
// current repository snapshot; history is the prior turns.
func (c *Client) Send(ctx context.Context, events []models.Event, categories []models.Category, history []Message, userMessage string) (*Round, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, apperr.ErrBusy
	}
	defer c.busy.Store(false)

	payload := chatRequest{Model: c.cfg.Model}
	payload.Messages = append(payload.Messages, Message{
		Role:    "system",
		Content: SystemInstruction(events, categories),
	})
	payload.Messages = append(payload.Messages, history...)
	payload.Messages = append(payload.Messages, Message{Role: "user", Content: userMessage})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("assistant: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assistant: endpoint returned %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("assistant: malformed response envelope: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("assistant: response carries no choices")
	}

	return ParseRound(chat.Choices[0].Message.Content)
}

// ParseRound extracts the reply/actions JSON from a model answer.
// Models wrap JSON in Markdown fences often enough that those are
// stripped before parsing. A missing reply is a hard failure.
func ParseRound(content string) (*Round, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var round Round
	if err := json.Unmarshal([]byte(trimmed), &round); err != nil {
		return nil, fmt.Errorf("assistant: reply is not valid JSON: %w", err)
	}
	if round.Reply == "" {
		return nil, fmt.Errorf("assistant: reply field is missing or empty")
	}
	return &round, nil
}

// SystemInstruction builds the system prompt: the action contract, the
// available categories, and a snapshot of the current events.
func SystemInstruction(events []models.Event, categories []models.Category) string {
	var sb strings.Builder
	sb.WriteString("You are a calendar assistant. Reply ONLY with a JSON object of the form ")
	sb.WriteString(`{"reply": "<text for the user>", "actions": [...]}. `)
	sb.WriteString(`Each action is {"type": "create"|"update"|"delete", "event": {...}} with optional fields `)
	sb.WriteString("id, title, description, date (ISO), startTime, endTime (HH:mm), color, category, todos.\n\n")

	sb.WriteString("Available categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s (%s)\n", c.Name, c.Color)
	}

	sb.WriteString("\nCurrent events:\n")
	snapshot := make([]eventSnapshot, 0, len(events))
	for _, e := range events {
		snapshot = append(snapshot, eventSnapshot{
			ID:        e.ID,
			Title:     e.Title,
			Date:      e.Date,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Category:  categoryFor(e.Color, categories),
		})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Date != snapshot[j].Date {
			return snapshot[i].Date < snapshot[j].Date
		}
		return snapshot[i].StartTime < snapshot[j].StartTime
	})
	data, _ := json.Marshal(snapshot)
	sb.Write(data)
	return sb.String()
}

// categoryFor names the category owning a colour, falling back to the
// raw colour token for events painted outside the live set.
func categoryFor(color string, categories []models.Category) string {
	for _, c := range categories {
		if c.Color == color {
			return c.Name
		}
	}
	return color
}

type eventSnapshot struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Category  string `json:"category"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
