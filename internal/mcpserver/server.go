// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Calendario tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
)

// Server wraps the MCP server with Calendario tools. Mutations funnel
// through the reconciler so MCP clients get the same skip-on-invalid
// semantics as the assistant.
type Server struct {
	mcp  *server.MCPServer
	repo *repository.Repository
	rec  *reconciler.Reconciler
}

// New creates a new MCP server with all Calendario tools registered.
func New(repo *repository.Repository, rec *reconciler.Reconciler) *Server {
	s := &Server{repo: repo, rec: rec}

	s.mcp = server.NewMCPServer(
		"Calendario",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List calendar events, optionally filtered by date."),
		mcp.WithString("date", mcp.Description("Optional ISO date (YYYY-MM-DD) to filter by")),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event. The payload MUST follow the "+
			"action format contract; read it first via the get_action_contract tool "+
			"or the calendario://action-format resource."),
		mcp.WithString("date", mcp.Required(), mcp.Description("ISO date (YYYY-MM-DD)")),
		mcp.WithString("title", mcp.Description("Event title (defaults to a placeholder)")),
		mcp.WithString("startTime", mcp.Description("Start as HH:mm (defaults to 09:00)")),
		mcp.WithString("endTime", mcp.Description("End as HH:mm (defaults to 10:00)")),
		mcp.WithString("category", mcp.Description("Category name used to pick the colour")),
		mcp.WithString("description", mcp.Description("Optional description")),
	), s.createEvent)

	s.mcp.AddTool(mcp.NewTool("update_event",
		mcp.WithDescription("Update fields of an existing event. Only provided fields change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the event to update")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("date", mcp.Description("New ISO date")),
		mcp.WithString("startTime", mcp.Description("New start as HH:mm")),
		mcp.WithString("endTime", mcp.Description("New end as HH:mm")),
		mcp.WithString("category", mcp.Description("New category name")),
		mcp.WithString("description", mcp.Description("New description")),
	), s.updateEvent)

	s.mcp.AddTool(mcp.NewTool("delete_event",
		mcp.WithDescription("Delete an event by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the event to delete")),
	), s.deleteEvent)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the category definitions and the available colour palette."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("get_action_contract",
		mcp.WithDescription("Returns the canonical action format contract. "+
			"Call this before creating or updating events to ensure correct structure."),
	), s.getActionContract)

	// Resource: action format contract.
	s.mcp.AddResource(
		mcp.NewResource("calendario://action-format", "Action Format Contract",
			mcp.WithResourceDescription("Canonical JSON action format for calendar mutations."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readActionFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events := s.repo.ListEvents()
	if date := req.GetString("date", ""); date != "" {
		var filtered []models.Event
		for _, e := range events {
			if e.Date == date {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	out, _ := json.MarshalIndent(events, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := &models.ActionPayload{Date: &date}
	setOptional(req, payload)

	return s.applySingle(models.AssistantAction{Type: models.ActionCreate, Event: payload})
}

func (s *Server) updateEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := &models.ActionPayload{ID: &id}
	if date := req.GetString("date", ""); date != "" {
		payload.Date = &date
	}
	setOptional(req, payload)

	return s.applySingle(models.AssistantAction{Type: models.ActionUpdate, Event: payload})
}

func (s *Server) deleteEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applySingle(models.AssistantAction{Type: models.ActionDelete, Event: &models.ActionPayload{ID: &id}})
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(struct {
		Categories []models.Category `json:"categories"`
		Palette    []string          `json:"palette"`
	}{s.repo.Categories(), s.repo.Palette()}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getActionContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ActionFormatContract), nil
}

func (s *Server) readActionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "calendario://action-format",
			MIMEType: "text/markdown",
			Text:     ActionFormatContract,
		},
	}, nil
}

// applySingle runs one action through the reconciler and reports its fate.
func (s *Server) applySingle(action models.AssistantAction) (*mcp.CallToolResult, error) {
	report := s.rec.Apply([]models.AssistantAction{action})
	res := report.Results[0]
	if res.Outcome != reconciler.OutcomeApplied {
		return mcp.NewToolResultError(fmt.Sprintf("action skipped: %s", res.Reason)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", action.Type, res.EventID)), nil
}

func setOptional(req mcp.CallToolRequest, payload *models.ActionPayload) {
	if v := req.GetString("title", ""); v != "" {
		payload.Title = &v
	}
	if v := req.GetString("description", ""); v != "" {
		payload.Description = &v
	}
	if v := req.GetString("startTime", ""); v != "" {
		payload.StartTime = &v
	}
	if v := req.GetString("endTime", ""); v != "" {
		payload.EndTime = &v
	}
	if v := req.GetString("category", ""); v != "" {
		payload.Category = &v
	}
}
