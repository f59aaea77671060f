package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vale-ieu/calendario/internal/assistant"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
)

// NewRouter creates a chi router with all API routes mounted behind the
// auth middleware. chat may be nil when the assistant is not
// configured; sseHandler, if non-nil, is mounted at GET /stream.
func NewRouter(repo *repository.Repository, rec *reconciler.Reconciler, chat *assistant.Client, authOpts AuthOptions, sseHandler http.Handler) chi.Router {
	h := NewHandler(repo, rec, chat)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authOpts))

	// Events CRUD.
	r.Get("/events", h.ListEvents)
	r.Post("/events", h.CreateEvent)
	r.Get("/events/{id}", h.GetEvent)
	r.Put("/events/{id}", h.UpdateEvent)
	r.Delete("/events/{id}", h.DeleteEvent)

	// Layout and slot drafts.
	r.Get("/layout", h.DayLayout)
	r.Get("/week", h.WeekLayout)
	r.Get("/draft", h.NewDraft)

	// Categories and colour filter.
	r.Get("/categories", h.ListCategories)
	r.Put("/categories", h.SetCategories)
	r.Get("/filter", h.GetFilter)
	r.Put("/filter", h.SetFilter)

	// Share token.
	r.Get("/state/token", h.ExportToken)
	r.Post("/state/token", h.ImportToken)

	// Assistant.
	r.Post("/assistant/message", h.AssistantMessage)
	r.Post("/actions", h.ApplyActions)

	// ICS export.
	r.Get("/export/calendar.ics", h.ExportICS)

	// SSE stream (behind the same auth middleware).
	if sseHandler != nil {
		r.Get("/stream", sseHandler.ServeHTTP)
	}

	return r
}
