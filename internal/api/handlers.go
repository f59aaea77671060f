package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vale-ieu/calendario/internal/apperr"
	"github.com/vale-ieu/calendario/internal/assistant"
	"github.com/vale-ieu/calendario/internal/layout"
	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
	"github.com/vale-ieu/calendario/internal/statecodec"
)

// DefaultHourHeight is the vertical rendering unit used when the
// caller does not supply one.
const DefaultHourHeight = 60.0

// Handler holds the API route handlers.
type Handler struct {
	repo *repository.Repository
	rec  *reconciler.Reconciler
	chat *assistant.Client // nil when the assistant is not configured
}

// NewHandler creates a new Handler. chat may be nil.
func NewHandler(repo *repository.Repository, rec *reconciler.Reconciler, chat *assistant.Client) *Handler {
	return &Handler{repo: repo, rec: rec, chat: chat}
}

// ListEvents handles GET /events with optional date and color filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events := h.repo.FilterByColor(q.Get("color"))
	if date := q.Get("date"); date != "" {
		var filtered []models.Event
		for _, e := range events {
			if e.Date == date {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

// GetEvent handles GET /events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.repo.GetEvent(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CreateEvent handles POST /events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	h.upsertEvent(w, r, "")
}

// UpdateEvent handles PUT /events/{id}.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	h.upsertEvent(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) upsertEvent(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var draft models.Event
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if id != "" {
		if _, err := h.repo.GetEvent(id); err != nil {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		draft.ID = id
	}

	requestedID := draft.ID
	event, err := h.repo.Upsert(draft)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		} else {
			slog.Error("upsert event failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	// An unknown id on POST still creates, under a fresh server id.
	status := http.StatusOK
	if requestedID == "" || event.ID != requestedID {
		status = http.StatusCreated
	}
	writeJSON(w, status, event)
}

// DeleteEvent handles DELETE /events/{id}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !h.repo.Delete(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DayLayout handles GET /layout?date=&hour_height=.
func (h *Handler) DayLayout(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := models.ParseDate(date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'date' must be a valid date"))
		return
	}
	placements := layout.ComputeDay(h.repo.FilterByColor(h.repo.ActiveFilter()), date, hourHeight(r))
	if placements == nil {
		placements = []layout.Placement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date,
		"placements": placements,
	})
}

// WeekLayout handles GET /week?start=&hour_height=.
func (h *Handler) WeekLayout(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	if _, err := models.ParseDate(start); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'start' must be a valid date"))
		return
	}
	week := layout.ComputeWeek(h.repo.FilterByColor(h.repo.ActiveFilter()), start, hourHeight(r))
	if week == nil {
		week = map[string][]layout.Placement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start": start,
		"days":  week,
	})
}

// NewDraft handles GET /draft?date=&hour=, returning the prefilled
// event a clicked grid slot implies. Nothing is stored.
func (h *Handler) NewDraft(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if _, err := models.ParseDate(date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'date' must be a valid date"))
		return
	}
	hour, err := strconv.Atoi(q.Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'hour' must be 0-23"))
		return
	}

	slot := models.SelectedSlot{Date: date, Hour: hour}
	start, end := slot.DefaultRange()
	writeJSON(w, http.StatusOK, models.Event{
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Color:     models.FallbackColor(h.repo.Categories(), h.repo.Palette()),
		Todos:     []models.ToDoItem{},
	})
}

func hourHeight(r *http.Request) float64 {
	if raw := r.URL.Query().Get("hour_height"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			return v
		}
	}
	return DefaultHourHeight
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories: h.repo.Categories(),
		Palette:    h.repo.Palette(),
	})
}

// SetCategories handles PUT /categories.
func (h *Handler) SetCategories(w http.ResponseWriter, r *http.Request) {
	var req SetCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.repo.SetCategories(req.Categories); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Categories: h.repo.Categories(),
		Palette:    h.repo.Palette(),
	})
}

// GetFilter handles GET /filter.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FilterResponse{Color: h.repo.ActiveFilter()})
}

// SetFilter handles PUT /filter.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.repo.SetFilter(req.Color); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Color: h.repo.ActiveFilter()})
}

// ExportToken handles GET /state/token.
func (h *Handler) ExportToken(w http.ResponseWriter, r *http.Request) {
	events, categories := h.repo.Snapshot()
	token, err := statecodec.EncodeToken(events, categories)
	if err != nil {
		slog.Error("token encode failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// ImportToken handles POST /state/token, replacing current state with
// the decoded snapshot.
func (h *Handler) ImportToken(w http.ResponseWriter, r *http.Request) {
	var req ImportTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("token is required"))
		return
	}
	st, err := statecodec.DecodeToken(req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid state token"))
		return
	}
	h.repo.Replace(st.Events, st.Categories)
	events, categories := h.repo.Snapshot()
	writeJSON(w, http.StatusOK, ImportTokenResponse{Events: len(events), Categories: len(categories)})
}

// AssistantMessage handles POST /assistant/message: one conversation
// round, applying whatever actions come back. A round already in
// flight is rejected, not queued.
func (h *Handler) AssistantMessage(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("assistant is not configured"))
		return
	}
	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("message is required"))
		return
	}

	events, categories := h.repo.Snapshot()
	round, err := h.chat.Send(r.Context(), events, categories, req.History, req.Message)
	if err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			writeJSON(w, http.StatusConflict, errorBody("a request is already in flight"))
			return
		}
		// Round-level failure: surface it, conversation continues.
		slog.Error("assistant round failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		return
	}

	report := h.rec.Apply(round.Actions)
	writeJSON(w, http.StatusOK, AssistantResponse{Reply: round.Reply, Report: report})
}

// ApplyActions handles POST /actions: a raw action batch without the
// assistant round-trip, mainly for tooling.
func (h *Handler) ApplyActions(w http.ResponseWriter, r *http.Request) {
	var actions []models.AssistantAction
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, h.rec.Apply(actions))
}
