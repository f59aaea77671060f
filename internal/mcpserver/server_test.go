package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
	"github.com/vale-ieu/calendario/internal/testutil"
)

func testServer(t *testing.T) (*Server, *repository.Repository) {
	t.Helper()
	repo := testutil.TestRepo(t)
	srv := New(repo, reconciler.New(repo))
	return srv, repo
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_events":
		result, err = srv.listEvents(ctx, req)
	case "create_event":
		result, err = srv.createEvent(ctx, req)
	case "update_event":
		result, err = srv.updateEvent(ctx, req)
	case "delete_event":
		result, err = srv.deleteEvent(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "get_action_contract":
		result, err = srv.getActionContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndListEvents(t *testing.T) {
	srv, repo := testServer(t)

	r := callTool(t, srv, "create_event", map[string]interface{}{
		"date":      "2026-09-07",
		"title":     "Riunione",
		"startTime": "09:00",
		"endTime":   "10:30",
		"category":  "lavoro",
	})
	if r.IsError {
		t.Fatalf("create errored: %s", resultText(r))
	}
	if !strings.HasPrefix(resultText(r), "create: ") {
		t.Errorf("create result = %q", resultText(r))
	}

	events := repo.ListEvents()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Color != "blue" {
		t.Errorf("category lavoro should resolve to blue, got %q", events[0].Color)
	}

	r = callTool(t, srv, "list_events", map[string]interface{}{"date": "2026-09-07"})
	if !strings.Contains(resultText(r), "Riunione") {
		t.Errorf("list result = %q", resultText(r))
	}

	r = callTool(t, srv, "list_events", map[string]interface{}{"date": "2026-09-08"})
	if strings.Contains(resultText(r), "Riunione") {
		t.Error("date filter did not exclude the event")
	}
}

func TestCreateEventDefaults(t *testing.T) {
	srv, repo := testServer(t)

	r := callTool(t, srv, "create_event", map[string]interface{}{"date": "2026-09-07"})
	if r.IsError {
		t.Fatalf("create errored: %s", resultText(r))
	}

	events := repo.ListEvents()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Title != reconciler.DefaultTitle {
		t.Errorf("title = %q", e.Title)
	}
	if e.StartTime != reconciler.DefaultStartTime || e.EndTime != reconciler.DefaultEndTime {
		t.Errorf("range = %s-%s", e.StartTime, e.EndTime)
	}
}

func TestUpdateEvent(t *testing.T) {
	srv, repo := testServer(t)

	created, err := repo.Upsert(models.Event{Title: "Vecchio", Date: "2026-09-07", StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "update_event", map[string]interface{}{
		"id":    created.ID,
		"title": "Nuovo",
		"date":  "2026-09-08",
	})
	if r.IsError {
		t.Fatalf("update errored: %s", resultText(r))
	}

	got, err := repo.GetEvent(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Nuovo" || got.Date != "2026-09-08" {
		t.Errorf("updated event = %+v", got)
	}
	if got.StartTime != "09:00" {
		t.Errorf("untouched field changed: start = %q", got.StartTime)
	}
}

func TestUpdateMissingEventIsError(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "update_event", map[string]interface{}{"id": "nope", "title": "x"})
	if !r.IsError {
		t.Error("expected error for missing event")
	}
}

func TestDeleteEvent(t *testing.T) {
	srv, repo := testServer(t)

	created, err := repo.Upsert(models.Event{Title: "x", Date: "2026-09-07", StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "delete_event", map[string]interface{}{"id": created.ID})
	if r.IsError {
		t.Fatalf("delete errored: %s", resultText(r))
	}
	if len(repo.ListEvents()) != 0 {
		t.Error("event still present after delete")
	}

	r = callTool(t, srv, "delete_event", map[string]interface{}{"id": created.ID})
	if !r.IsError {
		t.Error("expected error deleting twice")
	}
}

func TestListCategories(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_categories", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "lavoro") || !strings.Contains(text, "palette") {
		t.Errorf("categories result = %q", text)
	}
}

func TestActionContract(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_action_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Action Format Contract") {
		t.Error("contract text missing")
	}
}
