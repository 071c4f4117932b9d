package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// ParseRequest represents the arguments for fortune_parse and fortune_preview.
type ParseRequest struct {
	Answer   string `json:"answer"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// FormatDateRequest represents the arguments for fortune_format_date.
type FormatDateRequest struct {
	Value  any    `json:"value"`
	Locale string `json:"locale,omitempty"`
}

// SaveRequest represents the arguments for fortune_save.
type SaveRequest struct {
	UserID  string         `json:"user_id"`
	ID      string         `json:"id,omitempty"`
	Answer  string         `json:"answer,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Mode    string         `json:"mode,omitempty"`
}

// FetchRequest represents the arguments for fortune_fetch.
type FetchRequest struct {
	UserID         string            `json:"user_id"`
	ID             string            `json:"id"`
	IncludeDeleted bool              `json:"include_deleted,omitempty"`
	Fallback       *fortune.Document `json:"fallback,omitempty"`
}

// HistoryRequest represents the arguments for fortune_history.
type HistoryRequest struct {
	UserID         string `json:"user_id"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// UserRequest represents the arguments for fortune_latest.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// SearchRequest represents the arguments for fortune_search.
type SearchRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// DeleteRequest represents the arguments for fortune_delete.
type DeleteRequest struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// PurgeRequest represents the arguments for fortune_purge.
type PurgeRequest struct {
	UserID        *string `json:"user_id,omitempty"`
	OlderThanDays *int    `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for fortune_export.
type ExportRequest struct {
	Path           string  `json:"path,omitempty"`
	UserID         *string `json:"user_id,omitempty"`
	IncludeDeleted bool    `json:"include_deleted,omitempty"`
	Compress       bool    `json:"compress,omitempty"`
}

// ImportRequest represents the arguments for fortune_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// PredictRequest represents the arguments for fortune_predict.
type PredictRequest struct {
	UserID   string `json:"user_id"`
	ScanID   string `json:"scan_id"`
	Language string `json:"language,omitempty"`
	Style    string `json:"style,omitempty"`
	Model    string `json:"model,omitempty"`
	Period   string `json:"period,omitempty"`
}

// Handler implementations

// HandleParse handles the fortune_parse tool call.
func (h *Handlers) HandleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ParseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(h.env.Parse(input.Answer, input.MaxChars))
}

// HandlePreview handles the fortune_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ParseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out := h.env.Parse(input.Answer, input.MaxChars)
	return successResult(map[string]any{"preview": out.Preview})
}

// HandleFormatDate handles the fortune_format_date tool call.
func (h *Handlers) HandleFormatDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FormatDateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"text": h.env.FormatDate(input.Value, input.Locale)})
}

// HandleSave handles the fortune_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	payload := input.Payload
	if input.Answer != "" {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["answer"] = input.Answer
	}

	result, err := ops.Save(ctx, h.env, ops.SaveInput{
		UserID:  input.UserID,
		ID:      input.ID,
		Payload: payload,
		Mode:    ops.SaveMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the fortune_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	in := ops.FetchInput{
		UserID:         input.UserID,
		ID:             input.ID,
		IncludeDeleted: input.IncludeDeleted,
	}
	var result *ops.Record
	if input.Fallback != nil {
		result, err = ops.FetchOrFallback(ctx, h.env, in, *input.Fallback)
	} else {
		result, err = ops.Fetch(ctx, h.env, in)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the fortune_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(ctx, h.env, ops.HistoryInput{
		UserID:         input.UserID,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLatest handles the fortune_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UserRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Latest(ctx, h.env, input.UserID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the fortune_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Search(ctx, h.env, ops.SearchInput{
		UserID: input.UserID,
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the fortune_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Delete(ctx, h.env, ops.DeleteInput{UserID: input.UserID, ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the fortune_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Purge(ctx, h.env, ops.PurgeInput{
		UserID:        input.UserID,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the fortune_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Path:           input.Path,
		UserID:         input.UserID,
		IncludeDeleted: input.IncludeDeleted,
		Compress:       input.Compress,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the fortune_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Import(ctx, h.env, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePredict handles the fortune_predict tool call.
func (h *Handlers) HandlePredict(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PredictRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Predict(ctx, h.env, ops.PredictInput{
		UserID: input.UserID,
		ScanID: input.ScanID,
		PredictOptions: ops.PredictOptions{
			Language: input.Language,
			Style:    input.Style,
			Model:    input.Model,
			Period:   input.Period,
		},
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result with IsError set. INTERNAL errors
// carry a generic message and no details: they may hold file paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	fe := errors.Wrap(err)

	errorObj := map[string]any{
		"code":   fe.Code,
		"status": fe.Status,
	}
	if fe.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else {
		errorObj["message"] = messageWithContext(err, fe)
		if fe.Details != nil {
			errorObj["details"] = fe.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// messageWithContext keeps any fmt.Errorf prefix wrapped around fe.
func messageWithContext(err error, fe *errors.FortuneError) string {
	full := err.Error()
	if prefix, ok := strings.CutSuffix(full, fe.Error()); ok && prefix != "" {
		return prefix + fe.Message
	}
	return fe.Message
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
