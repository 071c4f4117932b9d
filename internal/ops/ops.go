package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/remote"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Remote is the subset of the remote client the operations use.
type Remote interface {
	Analyze(ctx context.Context, req remote.AnalyzeRequest) (*remote.AnalyzeResult, error)
	SaveScan(ctx context.Context, analyzeResult json.RawMessage, meta map[string]any) (string, error)
	Predict(ctx context.Context, req remote.PredictRequest) (*remote.PredictResponse, error)
}

// Env carries the dependencies every operation needs. Build one per process and
// pass it down; nil fields fall back to defaults where that makes sense.
type Env struct {
	DB      *sql.DB
	Config  *config.Config
	Parser  *fortune.Parser
	Service Remote
	Log     zerolog.Logger
}

func (e *Env) config() *config.Config {
	if e.Config == nil {
		return config.DefaultConfig()
	}
	return e.Config
}

func (e *Env) parser() *fortune.Parser {
	if e.Parser == nil {
		return fortune.Default()
	}
	return e.Parser
}

func (e *Env) service() (Remote, error) {
	if e.Service == nil {
		return nil, errors.NewInvalidRequest("remote service is not configured (set service.base_url)")
	}
	return e.Service, nil
}

// Record is an enriched fortune as returned by every read operation.
type Record struct {
	fortune.Enriched
	CreatedText string `json:"created_text"`
	DeletedAt   *int64 `json:"deleted_at,omitempty"`

	// Fallback is set when the record was built from a caller-supplied document
	// because the store had none.
	Fallback bool `json:"fallback,omitempty"`
}

// enrich builds a Record from a stored row. Column values fill gaps the payload
// leaves.
func (e *Env) enrich(row *db.Fortune) Record {
	doc := fortune.DecodeDocument(row.ID, row.Payload)
	if doc.UserID == "" {
		doc.UserID = row.UserID
	}
	if doc.Answer == "" {
		doc.Answer = row.Answer
	}
	if doc.Language == "" {
		doc.Language = row.Language
	}
	if doc.Style == "" {
		doc.Style = row.Style
	}
	if doc.Period == "" {
		doc.Period = row.Period
	}
	if doc.Model == "" {
		doc.Model = row.Model
	}
	if _, ok := fortune.ToTime(doc.CreatedAt); !ok && row.CreatedAt > 0 {
		doc.CreatedAt = fortune.NewTimestamp(time.Unix(row.CreatedAt, 0))
	}

	rec := e.enrichDocument(doc)
	rec.DeletedAt = row.DeletedAt
	return rec
}

func (e *Env) enrichDocument(doc fortune.Document) Record {
	cfg := e.config()
	return Record{
		Enriched:    e.parser().Enrich(doc, cfg.PreviewMaxChars),
		CreatedText: fortune.FormatDateIn(doc.CreatedAt, cfg.Locale, cfg.Location()),
	}
}

func (e *Env) enrichRows(rows []db.Fortune) []Record {
	out := make([]Record, 0, len(rows))
	for i := range rows {
		out = append(out, e.enrich(&rows[i]))
	}
	return out
}

// cleanUserID trims and requires a user id.
func cleanUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.NewInvalidRequest("user_id is required")
	}
	return userID, nil
}

// pageBounds applies limit defaults and bounds.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ParseOutput is the result of Parse.
type ParseOutput struct {
	fortune.Parsed
	Preview string `json:"preview"`
}

// Parse splits an answer with the environment's vocabulary and attaches a
// preview. maxChars <= 0 uses the configured preview length.
func (e *Env) Parse(answer string, maxChars int) ParseOutput {
	if maxChars <= 0 {
		maxChars = e.config().PreviewMaxChars
	}
	parsed := e.parser().Parse(answer)
	return ParseOutput{Parsed: parsed, Preview: fortune.CreatePreview(parsed, maxChars)}
}

// FormatDate renders value with the configured locale and timezone. An empty
// locale uses the configured one.
func (e *Env) FormatDate(value any, locale string) string {
	cfg := e.config()
	if locale == "" {
		locale = cfg.Locale
	}
	return fortune.FormatDateIn(value, locale, cfg.Location())
}
