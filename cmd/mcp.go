package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/store"
)

// Tool names served on /mcp/tools/call.
const (
	toolResolveMacros = "resolve_macros"
	toolLogMeal       = "log_meal"
	toolGetMeals      = "get_meals"
)

type mcpTool func(ctx context.Context, req *protocol.CallToolRequest) (any, error)

type resolveMacrosParams struct {
	Query string `json:"query" description:"Free-text meal description"`
}

type logMealParams struct {
	Query    string  `json:"query" description:"Free-text meal description"`
	Servings float64 `json:"servings,omitempty" description:"Servings multiplier (defaults to 1)"`
	EatenAt  string  `json:"eaten_at,omitempty" description:"RFC 3339 time or YYYY-MM-DD the meal was eaten (defaults to now)"`
}

type getMealsParams struct {
	Since string `json:"since,omitempty" description:"Start of the window (RFC 3339 or YYYY-MM-DD)"`
	Until string `json:"until,omitempty" description:"End of the window, exclusive"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of meals to return"`
}

func (a *api) mcpTools() map[string]mcpTool {
	return map[string]mcpTool{
		toolResolveMacros: a.toolResolveMacros,
		toolLogMeal:       a.toolLogMeal,
		toolGetMeals:      a.toolGetMeals,
	}
}

// handleMCPToolCall dispatches an MCP tools/call request. Tool failures are
// reported in the result with isError set.
func (a *api) handleMCPToolCall(w http.ResponseWriter, r *http.Request) {
	var req protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	tool, ok := a.mcpTools()[req.Name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+req.Name)
		return
	}

	data, err := tool(r.Context(), &req)
	if err != nil {
		zap.L().Info("mcp tool failed", zap.String("tool", req.Name), zap.Error(err))
		writeJSON(w, http.StatusOK, &protocol.CallToolResult{
			Content: []protocol.Content{protocol.TextContent{Type: "text", Text: err.Error()}},
			IsError: true,
		})
		return
	}

	result, err := toolResult(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func toolResult(data any) (*protocol.CallToolResult, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "mcp: marshal result")
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.TextContent{Type: "text", Text: string(b)}},
	}, nil
}

// toolParams decodes the request arguments into target.
func toolParams(req *protocol.CallToolRequest, target any) error {
	b, err := json.Marshal(req.Arguments)
	if err != nil {
		return eris.Wrap(err, "mcp: marshal arguments")
	}
	return eris.Wrap(json.Unmarshal(b, target), "mcp: invalid arguments")
}

func (a *api) toolResolveMacros(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p resolveMacrosParams
	if err := toolParams(req, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, eris.New("query is required")
	}
	return a.resolver.Resolve(ctx, p.Query)
}

func (a *api) toolLogMeal(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p logMealParams
	if err := toolParams(req, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, eris.New("query is required")
	}
	eatenAt, err := parseEatenAt(p.EatenAt, time.Now())
	if err != nil {
		return nil, err
	}
	return logMeal(ctx, a.resolver, a.store, p.Query, p.Servings, eatenAt)
}

func (a *api) toolGetMeals(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p getMealsParams
	if err := toolParams(req, &p); err != nil {
		return nil, err
	}

	filter := store.MealFilter{Limit: p.Limit}
	if p.Since != "" {
		t, err := parseEatenAt(p.Since, time.Time{})
		if err != nil {
			return nil, err
		}
		filter.Since = t
	}
	if p.Until != "" {
		t, err := parseEatenAt(p.Until, time.Time{})
		if err != nil {
			return nil, err
		}
		filter.Until = t
	}

	meals, err := a.store.ListMeals(ctx, filter)
	if err != nil {
		return nil, err
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	return mealsResponse{Meals: meals, Totals: model.SumMeals(meals)}, nil
}
