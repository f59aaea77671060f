// Package repository owns the canonical in-memory event and category
// collections. Every other component either receives read-only copies or
// proposes mutations through the operations here, which enforce the
// identity, time-range, and category-reference invariants.
package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vale-ieu/calendario/internal/apperr"
	"github.com/vale-ieu/calendario/internal/models"
)

// ChangeKind labels a repository mutation for observers.
type ChangeKind string

const (
	ChangeEventCreated      ChangeKind = "event.created"
	ChangeEventUpdated      ChangeKind = "event.updated"
	ChangeEventDeleted      ChangeKind = "event.deleted"
	ChangeCategoriesUpdated ChangeKind = "categories.updated"
	ChangeStateReloaded     ChangeKind = "state.reloaded"
)

// ChangeFunc observes successful mutations. id is the affected event id,
// empty for whole-collection changes.
type ChangeFunc func(kind ChangeKind, id string)

// Repository is the process-wide store. The application is one logical
// writer, but chi serves requests concurrently, so state is guarded by
// an RWMutex.
type Repository struct {
	mu         sync.RWMutex
	events     []models.Event
	categories []models.Category
	palette    []string
	filter     string

	onChange ChangeFunc
}

// New creates a repository seeded with the given categories and palette.
// Nil arguments fall back to the built-in defaults.
func New(categories []models.Category, palette []string) *Repository {
	if len(categories) == 0 {
		categories = append([]models.Category(nil), models.DefaultCategories...)
	}
	if len(palette) == 0 {
		palette = append([]string(nil), models.DefaultPalette...)
	}
	return &Repository{categories: categories, palette: palette}
}

// OnChange registers the mutation observer (persistence, SSE fan-out).
// A single observer is enough for the one logical writer this serves.
func (r *Repository) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// ListEvents returns a copy of every event.
func (r *Repository) ListEvents() []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneEvents(r.events)
}

// GetEvent returns the event with the given id.
func (r *Repository) GetEvent(id string) (models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return models.Event{}, apperr.ErrNotFound
}

// Upsert validates a draft and either replaces the event with the same
// id or appends it under a fresh id. Todo items without ids get one.
func (r *Repository) Upsert(draft models.Event) (models.Event, error) {
	if err := draft.Validate(); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	draft.Title = strings.TrimSpace(draft.Title)
	for i := range draft.Todos {
		if draft.Todos[i].ID == "" {
			draft.Todos[i].ID = models.NewID()
		}
	}

	r.mu.Lock()
	kind := ChangeEventCreated
	if draft.ID != "" {
		for i, e := range r.events {
			if e.ID == draft.ID {
				r.events[i] = draft.Clone()
				kind = ChangeEventUpdated
				break
			}
		}
	}
	if kind == ChangeEventCreated {
		draft.ID = models.NewID()
		r.events = append(r.events, draft.Clone())
	}
	fn := r.onChange
	r.mu.Unlock()

	notify(fn, kind, draft.ID)
	return draft, nil
}

// Delete removes the event with the given id, reporting whether it existed.
func (r *Repository) Delete(id string) bool {
	r.mu.Lock()
	found := false
	for i, e := range r.events {
		if e.ID == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			found = true
			break
		}
	}
	fn := r.onChange
	r.mu.Unlock()

	if found {
		notify(fn, ChangeEventDeleted, id)
	}
	return found
}

// SetCategories replaces the category mapping wholesale. Blank names are
// trimmed away first; the replacement is rejected when nothing remains,
// when two definitions share a case-insensitive name, or when two share
// a colour. On success every event whose colour no longer resolves is
// repainted with the fallback colour, and a dangling colour filter is
// cleared.
func (r *Repository) SetCategories(defs []models.Category) error {
	cleaned := make([]models.Category, 0, len(defs))
	for _, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			continue
		}
		cleaned = append(cleaned, d)
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("%w: category set must not be empty", apperr.ErrInvalid)
	}
	seenNames := make(map[string]struct{}, len(cleaned))
	seenColors := make(map[string]struct{}, len(cleaned))
	for _, c := range cleaned {
		lower := strings.ToLower(c.Name)
		if _, dup := seenNames[lower]; dup {
			return fmt.Errorf("%w: duplicate category name %q", apperr.ErrInvalid, c.Name)
		}
		if _, dup := seenColors[c.Color]; dup {
			return fmt.Errorf("%w: duplicate category color %q", apperr.ErrInvalid, c.Color)
		}
		seenNames[lower] = struct{}{}
		seenColors[c.Color] = struct{}{}
	}

	r.mu.Lock()
	r.categories = cleaned
	fallback := models.FallbackColor(cleaned, r.palette)
	for i := range r.events {
		if !models.HasColor(cleaned, r.events[i].Color) {
			r.events[i].Color = fallback
		}
	}
	if r.filter != "" && !models.HasColor(cleaned, r.filter) {
		r.filter = ""
	}
	fn := r.onChange
	r.mu.Unlock()

	notify(fn, ChangeCategoriesUpdated, "")
	return nil
}

// Categories returns a copy of the ordered category definitions.
func (r *Repository) Categories() []models.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Category(nil), r.categories...)
}

// Palette returns the colour tokens available for categories.
func (r *Repository) Palette() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.palette...)
}

// FilterByColor returns the events carrying the given colour; the empty
// string means no filter and returns everything.
func (r *Repository) FilterByColor(color string) []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if color == "" {
		return cloneEvents(r.events)
	}
	var out []models.Event
	for _, e := range r.events {
		if e.Color == color {
			out = append(out, e.Clone())
		}
	}
	return out
}

// SetFilter stores the active category filter. An unknown colour is
// rejected so the filter can never dangle.
func (r *Repository) SetFilter(color string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if color != "" && !models.HasColor(r.categories, color) {
		return fmt.Errorf("%w: no category with color %q", apperr.ErrInvalid, color)
	}
	r.filter = color
	return nil
}

// ActiveFilter returns the current colour filter, empty for none.
func (r *Repository) ActiveFilter() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter
}

// Snapshot returns copies of both collections for the codec.
func (r *Repository) Snapshot() ([]models.Event, []models.Category) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneEvents(r.events), append([]models.Category(nil), r.categories...)
}

// Replace swaps in a decoded snapshot wholesale, dropping events that do
// not pass validation rather than letting corrupt stored data in. Used
// at startup seeding and on watcher-driven reloads.
func (r *Repository) Replace(events []models.Event, categories []models.Category) {
	kept := make([]models.Event, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = models.NewID()
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if e.Validate() != nil {
			continue
		}
		seen[e.ID] = struct{}{}
		kept = append(kept, e.Clone())
	}

	r.mu.Lock()
	r.events = kept
	if len(categories) > 0 {
		r.categories = append([]models.Category(nil), categories...)
	}
	fallback := models.FallbackColor(r.categories, r.palette)
	for i := range r.events {
		if !models.HasColor(r.categories, r.events[i].Color) && r.events[i].Color == "" {
			r.events[i].Color = fallback
		}
	}
	if r.filter != "" && !models.HasColor(r.categories, r.filter) {
		r.filter = ""
	}
	fn := r.onChange
	r.mu.Unlock()

	notify(fn, ChangeStateReloaded, "")
}

func cloneEvents(events []models.Event) []models.Event {
	out := make([]models.Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

func notify(fn ChangeFunc, kind ChangeKind, id string) {
	if fn != nil {
		fn(kind, id)
	}
}
