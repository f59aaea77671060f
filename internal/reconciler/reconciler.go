// Package reconciler validates and applies batches of externally
// proposed actions against the repository. The upstream generator is
// best-effort, so a batch partially applies: malformed entries are
// skipped per-action and never abort the rest.
package reconciler

import (
	"strings"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/repository"
)

// DefaultTitle is the placeholder used when a create arrives without one.
const DefaultTitle = "Nuovo evento"

// Default times for a create without a range.
const (
	DefaultStartTime = "09:00"
	DefaultEndTime   = "10:00"
)

// Outcome labels what happened to one action.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
)

// ActionResult records the fate of one action in a batch.
type ActionResult struct {
	Index   int     `json:"index"`
	Type    string  `json:"type"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	EventID string  `json:"eventId,omitempty"`
}

// Report summarises a whole batch.
type Report struct {
	Applied int            `json:"applied"`
	Skipped int            `json:"skipped"`
	Results []ActionResult `json:"results"`
}

// Reconciler applies assistant actions to the repository.
type Reconciler struct {
	repo *repository.Repository
}

// New creates a reconciler over the given repository.
func New(repo *repository.Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Apply processes the actions in order. Later actions observe the
// effects of earlier ones, but a create's generated id is never
// auto-linked to a later action; the action must carry it explicitly.
func (rc *Reconciler) Apply(actions []models.AssistantAction) Report {
	report := Report{Results: make([]ActionResult, 0, len(actions))}
	for i, action := range actions {
		res := rc.applyOne(action)
		res.Index = i
		res.Type = action.Type
		if res.Outcome == OutcomeApplied {
			report.Applied++
		} else {
			report.Skipped++
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (rc *Reconciler) applyOne(action models.AssistantAction) ActionResult {
	switch action.Type {
	case models.ActionCreate:
		return rc.create(action.Event)
	case models.ActionUpdate:
		return rc.update(action.Event)
	case models.ActionDelete:
		return rc.delete(action.Event)
	default:
		return skipped("unknown action type")
	}
}

func (rc *Reconciler) create(p *models.ActionPayload) ActionResult {
	if p == nil || p.Date == nil {
		return skipped("create without a date")
	}
	date, err := models.ParseDate(*p.Date)
	if err != nil {
		return skipped("unparseable date")
	}

	draft := models.Event{
		Title:     DefaultTitle,
		Date:      date,
		StartTime: DefaultStartTime,
		EndTime:   DefaultEndTime,
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		draft.Title = *p.Title
	}
	if p.Description != nil {
		draft.Description = *p.Description
	}
	if p.StartTime != nil {
		draft.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		draft.EndTime = *p.EndTime
	}
	draft.Color = rc.resolveColor(p.Color, p.Category)
	for _, todo := range p.Todos {
		draft.Todos = append(draft.Todos, todo.Normalize())
	}

	created, err := rc.repo.Upsert(draft)
	if err != nil {
		return skipped(err.Error())
	}
	return applied(created.ID)
}

func (rc *Reconciler) update(p *models.ActionPayload) ActionResult {
	if p == nil || p.ID == nil || *p.ID == "" {
		return skipped("update without an id")
	}
	current, err := rc.repo.GetEvent(*p.ID)
	if err != nil {
		return skipped("no event with that id")
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		current.Title = *p.Title
	}
	if p.Description != nil {
		current.Description = *p.Description
	}
	if p.Date != nil {
		// An unparseable date drops the field, not the whole action.
		if date, dateErr := models.ParseDate(*p.Date); dateErr == nil {
			current.Date = date
		}
	}
	if p.StartTime != nil {
		current.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		current.EndTime = *p.EndTime
	}
	if p.Color != nil || p.Category != nil {
		current.Color = rc.resolveColor(p.Color, p.Category)
	}
	if p.Todos != nil {
		current.Todos = nil
		for _, todo := range p.Todos {
			current.Todos = append(current.Todos, todo.Normalize())
		}
	}

	if _, err := rc.repo.Upsert(current); err != nil {
		return skipped(err.Error())
	}
	return applied(current.ID)
}

func (rc *Reconciler) delete(p *models.ActionPayload) ActionResult {
	if p == nil || p.ID == nil || *p.ID == "" {
		return skipped("delete without an id")
	}
	if !rc.repo.Delete(*p.ID) {
		return skipped("no event with that id")
	}
	return applied(*p.ID)
}

// resolveColor picks an event colour from an untrusted pair of hints:
// a colour matching a live category wins, then a category name, then
// the first available category colour, then the palette default.
func (rc *Reconciler) resolveColor(color, category *string) string {
	cats := rc.repo.Categories()
	if color != nil && models.HasColor(cats, *color) {
		return *color
	}
	if category != nil {
		if c, ok := models.FindByName(cats, *category); ok {
			return c.Color
		}
	}
	return models.FallbackColor(cats, rc.repo.Palette())
}

func skipped(reason string) ActionResult {
	return ActionResult{Outcome: OutcomeSkipped, Reason: reason}
}

func applied(id string) ActionResult {
	return ActionResult{Outcome: OutcomeApplied, EventID: id}
}
