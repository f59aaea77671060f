package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vale-ieu/calendario/internal/assistant"
	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
	"github.com/vale-ieu/calendario/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.Repository) {
	t.Helper()
	repo := testutil.TestRepo(t)
	rec := reconciler.New(repo)
	router := NewRouter(repo, rec, nil, AuthOptions{}, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestEventCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	draft := models.Event{
		Title:     "Riunione",
		Date:      "2026-09-07",
		StartTime: "09:00",
		EndTime:   "10:30",
		Color:     "blue",
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/events", draft)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created models.Event
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("created event has no id")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/events/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var fetched models.Event
	decodeBody(t, resp, &fetched)
	if fetched.Title != "Riunione" {
		t.Fatalf("fetched title = %q", fetched.Title)
	}

	fetched.Title = "Riunione spostata"
	fetched.StartTime = "11:00"
	fetched.EndTime = "12:00"
	resp = doJSON(t, http.MethodPut, srv.URL+"/events/"+created.ID, fetched)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	var updated models.Event
	decodeBody(t, resp, &updated)
	if updated.ID != created.ID {
		t.Fatalf("update changed id: %q -> %q", created.ID, updated.ID)
	}
	if updated.StartTime != "11:00" {
		t.Fatalf("updated start = %q", updated.StartTime)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateEventRejectsBadRange(t *testing.T) {
	srv, _ := newTestServer(t)

	draft := models.Event{
		Title:     "Inverso",
		Date:      "2026-09-07",
		StartTime: "15:00",
		EndTime:   "14:00",
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/events", draft)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestUpdateUnknownEventIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	draft := models.Event{Title: "x", Date: "2026-09-07", StartTime: "09:00", EndTime: "10:00"}
	resp := doJSON(t, http.MethodPut, srv.URL+"/events/nope", draft)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListEventsFilters(t *testing.T) {
	srv, repo := newTestServer(t)

	seed := []models.Event{
		{Title: "a", Date: "2026-09-07", StartTime: "09:00", EndTime: "10:00", Color: "blue"},
		{Title: "b", Date: "2026-09-07", StartTime: "10:00", EndTime: "11:00", Color: "green"},
		{Title: "c", Date: "2026-09-08", StartTime: "09:00", EndTime: "10:00", Color: "blue"},
	}
	for _, e := range seed {
		if _, err := repo.Upsert(e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/events?date=2026-09-07&color=blue", nil)
	var list EventListResponse
	decodeBody(t, resp, &list)
	if len(list.Events) != 1 || list.Events[0].Title != "a" {
		t.Fatalf("filtered list = %+v", list.Events)
	}
}

func TestDayLayoutSplitsOverlap(t *testing.T) {
	srv, repo := newTestServer(t)

	for _, e := range []models.Event{
		{Title: "a", Date: "2026-09-07", StartTime: "09:00", EndTime: "11:00"},
		{Title: "b", Date: "2026-09-07", StartTime: "10:00", EndTime: "12:00"},
		{Title: "solo", Date: "2026-09-07", StartTime: "15:00", EndTime: "16:00"},
	} {
		if _, err := repo.Upsert(e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/layout?date=2026-09-07", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Date       string `json:"date"`
		Placements []struct {
			EventID            string  `json:"eventId"`
			WidthFraction      float64 `json:"widthFraction"`
			LeftOffsetFraction float64 `json:"leftOffsetFraction"`
			Top                float64 `json:"top"`
			Height             float64 `json:"height"`
		} `json:"placements"`
	}
	decodeBody(t, resp, &body)
	if len(body.Placements) != 3 {
		t.Fatalf("placements = %d, want 3", len(body.Placements))
	}

	half, full := 0, 0
	for _, p := range body.Placements {
		switch p.WidthFraction {
		case 0.5:
			half++
		case 1.0:
			full++
		}
	}
	if half != 2 || full != 1 {
		t.Fatalf("width split: half=%d full=%d", half, full)
	}
}

func TestDayLayoutRequiresValidDate(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/layout?date=not-a-date", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWeekLayoutPlacesEventsByDay(t *testing.T) {
	srv, repo := newTestServer(t)

	for _, e := range []models.Event{
		{Title: "a", Date: "2026-09-09", StartTime: "09:00", EndTime: "10:00"},
		{Title: "outside", Date: "2026-09-20", StartTime: "09:00", EndTime: "10:00"},
	} {
		if _, err := repo.Upsert(e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/week?start=2026-09-07", nil)
	var body struct {
		Start string                       `json:"start"`
		Days  map[string][]json.RawMessage `json:"days"`
	}
	decodeBody(t, resp, &body)
	if len(body.Days["2026-09-09"]) != 1 {
		t.Fatalf("placements on 2026-09-09 = %d, want 1", len(body.Days["2026-09-09"]))
	}
	if _, ok := body.Days["2026-09-20"]; ok {
		t.Error("event outside the week leaked into the response")
	}
}

func TestNewDraftFromSlot(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/draft?date=2026-09-07&hour=14", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var draft models.Event
	decodeBody(t, resp, &draft)
	if draft.StartTime != "14:00" || draft.EndTime != "15:00" {
		t.Fatalf("slot range = %s-%s", draft.StartTime, draft.EndTime)
	}
	if draft.Color == "" {
		t.Error("draft should carry the fallback colour")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/draft?date=2026-09-07&hour=24", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out-of-range hour status = %d, want 400", resp.StatusCode)
	}
}

func TestSetCategoriesRejectsDuplicates(t *testing.T) {
	srv, _ := newTestServer(t)

	req := SetCategoriesRequest{Categories: []models.Category{
		{Name: "lavoro", Color: "blue"},
		{Name: "Lavoro", Color: "green"},
	}}
	resp := doJSON(t, http.MethodPut, srv.URL+"/categories", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestCategoryFilterRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/filter", FilterResponse{Color: "blue"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set filter status = %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/filter", nil)
	var f FilterResponse
	decodeBody(t, resp, &f)
	if f.Color != "blue" {
		t.Fatalf("filter = %q, want blue", f.Color)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/filter", FilterResponse{Color: "fuchsia"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown colour status = %d, want 422", resp.StatusCode)
	}
}

func TestStateTokenRoundTrip(t *testing.T) {
	srv, repo := newTestServer(t)

	if _, err := repo.Upsert(models.Event{Title: "Pranzo", Date: "2026-09-07", StartTime: "13:00", EndTime: "14:00", Color: "green"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/state/token", nil)
	var tok TokenResponse
	decodeBody(t, resp, &tok)
	if tok.Token == "" {
		t.Fatal("empty token")
	}

	// Import into a fresh server.
	srv2, repo2 := newTestServer(t)
	resp = doJSON(t, http.MethodPost, srv2.URL+"/state/token", ImportTokenRequest{Token: tok.Token})
	var imported ImportTokenResponse
	decodeBody(t, resp, &imported)
	if imported.Events != 1 {
		t.Fatalf("imported events = %d, want 1", imported.Events)
	}
	events := repo2.ListEvents()
	if len(events) != 1 || events[0].Title != "Pranzo" {
		t.Fatalf("imported state = %+v", events)
	}
}

func TestImportTokenRejectsGarbage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/state/token", ImportTokenRequest{Token: "!!!not-base64!!!"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestApplyActionsPartialBatch(t *testing.T) {
	srv, repo := newTestServer(t)

	actions := []map[string]any{
		{"type": "create", "event": map[string]any{"date": "2026-09-07", "title": "Palestra"}},
		{"type": "update", "event": map[string]any{"id": "missing"}},
		{"type": "teleport"},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/actions", actions)
	var report reconciler.Report
	decodeBody(t, resp, &report)
	if report.Applied != 1 || report.Skipped != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(repo.ListEvents()) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.ListEvents()))
	}
}

func TestAuthMiddleware(t *testing.T) {
	repo := testutil.TestRepo(t)
	rec := reconciler.New(repo)
	router := NewRouter(repo, rec, nil, AuthOptions{Enabled: true, Token: "segreto"}, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no credential status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/events", nil)
	req.Header.Set("Authorization", "Bearer segreto")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid credential status = %d, want 200", resp.StatusCode)
	}
}

func TestAssistantMessageNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/assistant/message", AssistantRequest{Message: "ciao"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestAssistantMessageAppliesActions(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"reply": "Fatto", "actions": [{"type": "create", "event": {"date": "2026-09-07", "title": "Cena", "startTime": "20:00", "endTime": "22:00"}}]}`
		envelope := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": fmt.Sprintf("```json\n%s\n```", content)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	}))
	defer fake.Close()

	repo := testutil.TestRepo(t)
	rec := reconciler.New(repo)
	chat := assistant.New(assistant.Config{Endpoint: fake.URL, Model: "test", Timeout: 5 * time.Second})
	srv := httptest.NewServer(NewRouter(repo, rec, chat, AuthOptions{}, nil))
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/assistant/message", AssistantRequest{Message: "organizza una cena"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var ar AssistantResponse
	decodeBody(t, resp, &ar)
	if ar.Reply != "Fatto" {
		t.Fatalf("reply = %q", ar.Reply)
	}
	if ar.Report.Applied != 1 {
		t.Fatalf("report = %+v", ar.Report)
	}
	events := repo.ListEvents()
	if len(events) != 1 || events[0].Title != "Cena" {
		t.Fatalf("events = %+v", events)
	}
}

func TestAssistantMessageBadUpstream(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer fake.Close()

	repo := testutil.TestRepo(t)
	rec := reconciler.New(repo)
	chat := assistant.New(assistant.Config{Endpoint: fake.URL, Model: "test", Timeout: 5 * time.Second})
	srv := httptest.NewServer(NewRouter(repo, rec, chat, AuthOptions{}, nil))
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/assistant/message", AssistantRequest{Message: "ciao"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestExportICS(t *testing.T) {
	srv, repo := newTestServer(t)

	for _, e := range []models.Event{
		{Title: "Riunione", Description: "sala grande", Date: "2026-09-07", StartTime: "09:00", EndTime: "10:00", Color: "blue"},
		{Title: "Notte", Date: "2026-09-07", StartTime: "23:00", EndTime: "24:00", Color: "green"},
	} {
		if _, err := repo.Upsert(e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/export/calendar.ics", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") {
		t.Fatal("missing VCALENDAR envelope")
	}
	if strings.Count(body, "BEGIN:VEVENT") != 2 {
		t.Fatalf("VEVENT count = %d, want 2", strings.Count(body, "BEGIN:VEVENT"))
	}
	if !strings.Contains(body, "SUMMARY:Riunione") {
		t.Fatal("missing event summary")
	}
}
