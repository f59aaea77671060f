package api

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/timegrid"
)

// ExportICS handles GET /export/calendar.ics, rendering every stored
// event as a VEVENT with naive local times.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//calendario//IT")

	now := time.Now()
	for _, e := range h.repo.ListEvents() {
		start, end, err := eventTimes(e)
		if err != nil {
			// Corrupt stored ranges render on the grid but have no
			// sensible ICS representation; leave them out.
			continue
		}
		ve := cal.AddEvent(fmt.Sprintf("%s@calendario", e.ID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendario.ics"`)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// eventTimes combines the calendar date and "HH:mm" strings into
// concrete local times. "24:00" rolls into midnight of the next day.
func eventTimes(e models.Event) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, e.Date, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !timegrid.ValidRange(e.StartTime, e.EndTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range %s-%s", e.StartTime, e.EndTime)
	}
	start := day.Add(time.Duration(timegrid.Minutes(e.StartTime)) * time.Minute)
	end := day.Add(time.Duration(timegrid.Minutes(e.EndTime)) * time.Minute)
	return start, end, nil
}
