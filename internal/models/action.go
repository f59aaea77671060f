package models

import (
	"strings"
)

// Assistant action types.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AssistantAction is a single externally proposed mutation. It arrives
// from a best-effort generator, so every field is optional and shape
// validation happens in the reconciler, never here.
type AssistantAction struct {
	Type  string         `json:"type"`
	Event *ActionPayload `json:"event,omitempty"`
}

// ActionPayload is the partial event-like body of an action. Pointer
// fields distinguish "absent" from "present but empty" so updates only
// overwrite what the payload actually names.
type ActionPayload struct {
	ID          *string      `json:"id,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Date        *string      `json:"date,omitempty"`
	StartTime   *string      `json:"startTime,omitempty"`
	EndTime     *string      `json:"endTime,omitempty"`
	Color       *string      `json:"color,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Todos       []ActionTodo `json:"todos,omitempty"`
}

// ActionTodo mirrors ToDoItem with loose typing: the completed flag may
// arrive as a bool, a string, or a number.
type ActionTodo struct {
	ID        *string     `json:"id,omitempty"`
	Text      *string     `json:"text,omitempty"`
	Completed interface{} `json:"completed,omitempty"`
}

// Normalize converts a loose todo into a ToDoItem, generating an id when
// missing, defaulting text to empty, and coercing completed to bool.
func (t ActionTodo) Normalize() ToDoItem {
	item := ToDoItem{Completed: CoerceBool(t.Completed)}
	if t.ID != nil && strings.TrimSpace(*t.ID) != "" {
		item.ID = *t.ID
	} else {
		item.ID = NewID()
	}
	if t.Text != nil {
		item.Text = *t.Text
	}
	return item
}

// CoerceBool interprets the loose truthiness of an untrusted JSON value.
func CoerceBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "1" || s == "yes"
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return false
	}
}
