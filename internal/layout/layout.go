// Package layout computes deterministic, non-overlapping visual placement
// for the events of a single day: vertical extent from time-of-day,
// horizontal slot from concurrency.
//
// Each event is sized by its own concurrency cluster, computed
// independently per event. When overlap is not transitive (A overlaps B,
// B overlaps C, A does not overlap C) the members of one visual column
// can end up with different widths. That is the established placement
// policy, kept as-is rather than replaced with a global packing pass.
package layout

import (
	"sort"
	"time"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/timegrid"
)

// Placement is the layout descriptor for one event. Fractions are
// day-column relative (0..1); top and height are in the caller's
// hourHeight units.
type Placement struct {
	EventID            string  `json:"eventId"`
	WidthFraction      float64 `json:"widthFraction"`
	LeftOffsetFraction float64 `json:"leftOffsetFraction"`
	Top                float64 `json:"top"`
	Height             float64 `json:"height"`
}

// ComputeDay places every event whose Date equals day. The result is
// ordered by (start minutes, id) and is a pure function of its inputs:
// recomputing on an unchanged set yields identical descriptors.
func ComputeDay(events []models.Event, day string, hourHeight float64) []Placement {
	var dayEvents []models.Event
	for _, e := range events {
		if e.Date == day {
			dayEvents = append(dayEvents, e)
		}
	}
	if len(dayEvents) == 0 {
		return nil
	}

	sortByStartThenID(dayEvents)

	out := make([]Placement, 0, len(dayEvents))
	for _, e := range dayEvents {
		cluster := clusterFor(e, dayEvents)
		slot := indexOf(cluster, e.ID)
		n := len(cluster)

		start := timegrid.Minutes(e.StartTime)
		duration := timegrid.Minutes(e.EndTime) - start
		// Corrupt stored ranges still render; validation is the
		// repository's job at write time, not ours.
		if duration < timegrid.MinDurationMinutes {
			duration = timegrid.MinDurationMinutes
		}

		out = append(out, Placement{
			EventID:            e.ID,
			WidthFraction:      1 / float64(n),
			LeftOffsetFraction: float64(slot) / float64(n),
			Top:                float64(start) / 60 * hourHeight,
			Height:             float64(duration) / 60 * hourHeight,
		})
	}
	return out
}

// ComputeWeek places seven consecutive days starting at startDay,
// keyed by date. Days without events carry no entry.
func ComputeWeek(events []models.Event, startDay string, hourHeight float64) map[string][]Placement {
	days, err := weekDays(startDay)
	if err != nil {
		return nil
	}
	out := make(map[string][]Placement, len(days))
	for _, d := range days {
		if placements := ComputeDay(events, d, hourHeight); placements != nil {
			out[d] = placements
		}
	}
	return out
}

// clusterFor returns every event in dayEvents whose open time interval
// intersects e's, including e itself, sorted by (start, id). Touching
// endpoints do not overlap.
func clusterFor(e models.Event, dayEvents []models.Event) []models.Event {
	eStart, eEnd := timegrid.Minutes(e.StartTime), timegrid.Minutes(e.EndTime)
	var cluster []models.Event
	for _, o := range dayEvents {
		oStart, oEnd := timegrid.Minutes(o.StartTime), timegrid.Minutes(o.EndTime)
		if max(eStart, oStart) < min(eEnd, oEnd) || o.ID == e.ID {
			cluster = append(cluster, o)
		}
	}
	sortByStartThenID(cluster)
	return cluster
}

// sortByStartThenID orders events by start minutes, breaking exact-start
// ties on id so placement is stable across recomputation.
func sortByStartThenID(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		si, sj := timegrid.Minutes(events[i].StartTime), timegrid.Minutes(events[j].StartTime)
		if si != sj {
			return si < sj
		}
		return events[i].ID < events[j].ID
	})
}

func indexOf(cluster []models.Event, id string) int {
	for i, e := range cluster {
		if e.ID == id {
			return i
		}
	}
	return 0
}

func weekDays(startDay string) ([]string, error) {
	t, err := time.Parse(models.DateLayout, startDay)
	if err != nil {
		return nil, err
	}
	days := make([]string, 7)
	for i := range days {
		days[i] = t.AddDate(0, 0, i).Format(models.DateLayout)
	}
	return days, nil
}
