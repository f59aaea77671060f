// Package models defines the domain types for Calendario.
package models

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/vale-ieu/calendario/internal/timegrid"
)

// DateLayout is the canonical calendar-date format used everywhere an
// event date is stored or exchanged.
const DateLayout = "2006-01-02"

// Event is a time-boxed entry on the weekly grid. Dates carry no time
// component; times are naive local "HH:mm" strings.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        string     `json:"date"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	Color       string     `json:"color"`
	Todos       []ToDoItem `json:"todos"`
}

// ToDoItem is a checklist entry owned by a single event.
type ToDoItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// NewID returns a fresh opaque identifier for events and todo items.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the invariants enforced at write time: a title that
// survives trimming, a parseable date, and a strictly increasing time
// range. The layout engine tolerates corrupt stored data; this gate is
// what keeps it out of the store in the first place.
func (e Event) Validate() error {
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.By(nonBlank)),
		validation.Field(&e.Date, validation.Required, validation.By(validDate)),
		validation.Field(&e.StartTime, validation.Required),
		validation.Field(&e.EndTime, validation.Required),
	); err != nil {
		return err
	}
	if !timegrid.ValidRange(e.StartTime, e.EndTime) {
		return fmt.Errorf("time range %s-%s: start must be before end", e.StartTime, e.EndTime)
	}
	return nil
}

// Clone returns a deep copy so read-only views cannot mutate the store.
func (e Event) Clone() Event {
	out := e
	if e.Todos != nil {
		out.Todos = make([]ToDoItem, len(e.Todos))
		copy(out.Todos, e.Todos)
	}
	return out
}

// ParseDate normalises an ISO date-like string (with or without a time
// component) to the canonical DateLayout form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", s)
}

// SelectedSlot is the transient UI input that seeds a new event's
// default time range (hour:00 to hour+1:00). Never persisted.
type SelectedSlot struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

// DefaultRange returns the start/end times implied by the slot.
func (s SelectedSlot) DefaultRange() (start, end string) {
	return timegrid.FormatMinutes(s.Hour * 60), timegrid.FormatMinutes((s.Hour + 1) * 60)
}

func nonBlank(v interface{}) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("must not be blank")
	}
	return nil
}

func validDate(v interface{}) error {
	s, _ := v.(string)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("must be a %s date", DateLayout)
	}
	return nil
}
