package ops

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
)

// Search limits
const (
	MaxQueryLength  = db.MaxSearchQueryChars
	MaxSnippetChars = 300

	// snippetLead is how many runes of context precede the match.
	snippetLead = 60
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	UserID string // required
	Query  string // required
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// SearchResultItem wraps a Record with a match snippet.
type SearchResultItem struct {
	Record
	// Snippet is HTML-safe: the answer text is escaped; only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
	Query      string             `json:"query"`
}

// Search finds a user's active fortunes whose answer contains the query,
// case-insensitively, newest first.
func Search(ctx context.Context, env *Env, input SearchInput) (*SearchOutput, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	limit, offset := pageBounds(input.Limit, input.Offset)

	rows, total, err := db.SearchFortunes(ctx, env.DB, userID, query, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResultItem, 0, len(rows))
	for _, rec := range env.enrichRows(rows) {
		items = append(items, SearchResultItem{
			Record:  rec,
			Snippet: truncateSnippet(buildSnippet(rec.Answer, query), MaxSnippetChars),
		})
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort:  sortCreatedDesc,
		Query: query,
	}, nil
}

// buildSnippet escapes text and wraps the first case-insensitive match of query
// in <b> tags, starting a little before the match.
func buildSnippet(text, query string) string {
	hay := []rune(text)
	needle := []rune(query)
	at := indexFold(hay, needle)
	if at < 0 {
		return html.EscapeString(text)
	}

	start := max(at-snippetLead, 0)
	end := at + len(needle)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(html.EscapeString(string(hay[start:at])))
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(string(hay[at:end])))
	b.WriteString("</b>")
	b.WriteString(html.EscapeString(string(hay[end:])))
	return b.String()
}

// indexFold returns the rune index of the first match of needle in hay,
// comparing rune by rune with simple case folding, or -1.
func indexFold(hay, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if unicode.ToLower(hay[i+j]) != unicode.ToLower(r) {
				continue outer
			}
		}
		return i
	}
	return -1
}

// truncateSnippet truncates a snippet to approximately maxChars bytes while:
// 1. Preserving valid UTF-8 (never splits multi-byte runes)
// 2. Preserving markup integrity (closes any open <b> tags)
// 3. Preferring word boundaries when possible
func truncateSnippet(s string, maxChars int) string {
	if maxChars <= 0 {
		return "..."
	}

	if len(s) <= maxChars {
		return s
	}

	truncateAt := maxChars
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	if truncateAt == 0 {
		return "..."
	}

	truncated := s[:truncateAt]

	// Drop a partial tag or entity at the cut.
	if lastLT := strings.LastIndex(truncated, "<"); lastLT != -1 && !strings.Contains(truncated[lastLT:], ">") {
		truncated = truncated[:lastLT]
	}
	if lastAmp := strings.LastIndex(truncated, "&"); lastAmp != -1 && !strings.Contains(truncated[lastAmp:], ";") {
		truncated = truncated[:lastAmp]
	}

	// Thai text has no spaces between words, so this often finds nothing.
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > truncateAt/2 {
		truncated = truncated[:lastSpace]
	}

	unclosed := strings.Count(truncated, "<b>") - strings.Count(truncated, "</b>")
	for range unclosed {
		truncated += "</b>"
	}

	return truncated + "..."
}
