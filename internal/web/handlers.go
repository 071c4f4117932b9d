package web

import (
	"encoding/json"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/ops"
)

// maxParseBody bounds POST /api/parse request bodies.
const maxParseBody = 1 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleHistory handles GET /users/{user}/fortunes. With ?q= it searches instead.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := parseIntParam(r, "limit", ops.DefaultListLimit)
	offset := parseIntParam(r, "offset", 0)

	data := HistoryPageData{
		PageData: PageData{
			Title:   "Fortunes",
			Version: h.renderer.version,
			UserID:  userID,
		},
		Query:   query,
		Deleted: parseBoolParam(r, "include_deleted"),
	}

	if query != "" {
		result, err := ops.Search(r.Context(), h.env, ops.SearchInput{
			UserID: userID,
			Query:  query,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		for _, it := range result.Items {
			// Snippets are escaped by ops.Search except for the <b> highlight.
			data.Items = append(data.Items, HistoryItem{Record: it.Record, Snippet: template.HTML(it.Snippet)})
		}
		data.Pagination = result.Pagination
		h.renderer.renderPage(w, "history", data)
		return
	}

	result, err := ops.History(r.Context(), h.env, ops.HistoryInput{
		UserID:         userID,
		Limit:          limit,
		Offset:         offset,
		IncludeDeleted: data.Deleted,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	for _, rec := range result.Items {
		data.Items = append(data.Items, HistoryItem{Record: rec})
	}
	data.Pagination = result.Pagination
	h.renderer.renderPage(w, "history", data)
}

// HandleDetail handles GET /users/{user}/fortunes/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	rec, err := ops.Fetch(r.Context(), h.env, ops.FetchInput{
		UserID:         r.PathValue("user"),
		ID:             r.PathValue("id"),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	title := "Fortune"
	if rec.CreatedText != "" {
		title = "Fortune of " + rec.CreatedText
	}
	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   title,
			Version: h.renderer.version,
			UserID:  rec.UserID,
		},
		Fortune:  rec,
		Sections: h.renderer.renderSections(rec.Parsed),
	})
}

// HandleDelete handles DELETE /users/{user}/fortunes/{id}. Soft-deletes a fortune.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	result, err := ops.Delete(r.Context(), h.env, ops.DeleteInput{
		UserID: userID,
		ID:     r.PathValue("id"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, historyPath(userID), http.StatusSeeOther)
}

// HandlePurge handles POST /users/{user}/fortunes/purge. Permanently deletes a
// user's soft-deleted fortunes.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	userID := r.PathValue("user")
	input := ops.PurgeInput{UserID: &userID}
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, historyPath(userID)+"?include_deleted=true", http.StatusSeeOther)
}

// HandleAPIFetch handles GET /api/users/{user}/fortunes/{id}. Returns the enriched record as JSON.
func (h *Handlers) HandleAPIFetch(w http.ResponseWriter, r *http.Request) {
	rec, err := ops.Fetch(r.Context(), h.env, ops.FetchInput{
		UserID:         r.PathValue("user"),
		ID:             r.PathValue("id"),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, rec)
}

// parseRequest is the JSON body of POST /api/parse.
type parseRequest struct {
	Answer   string `json:"answer"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// HandleAPIParse handles POST /api/parse. The body is either JSON
// {"answer": ..., "max_chars": ...} or the raw answer as text.
func (h *Handlers) HandleAPIParse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParseBody))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("request body too large or unreadable"))
		return
	}

	req := parseRequest{MaxChars: parseIntParam(r, "max_chars", 0)}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		if err := json.Unmarshal(body, &req); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
	} else {
		req.Answer = string(body)
	}
	if req.MaxChars < 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("max_chars must be >= 0"))
		return
	}

	renderJSON(w, http.StatusOK, h.env.Parse(req.Answer, req.MaxChars))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

func historyPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/fortunes"
}
