package ops

import (
	"context"
	"strings"
	"time"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

// SaveMode controls collision behavior.
type SaveMode string

const (
	SaveModeError   SaveMode = "error"   // default: fail when the id exists
	SaveModeReplace SaveMode = "replace" // overwrite existing
)

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	UserID string // required
	ID     string // optional, generated when empty

	// Payload is the fortune document in store shape. Legacy answer fields
	// (predictionText, result.intro, result.topic1.content) are accepted.
	Payload map[string]any
	Mode    SaveMode // default: SaveModeError
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Save stores a fortune document for a user.
func Save(ctx context.Context, env *Env, input SaveInput) (*SaveOutput, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = SaveModeError
	}
	if input.Mode != SaveModeError && input.Mode != SaveModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if fortune.ResolveAnswer(input.Payload) == "" {
		return nil, errors.NewInvalidRequest("answer is required")
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		if id, err = generateULID(); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	row := buildRow(userID, id, input.Payload, time.Now())

	if input.Mode == SaveModeReplace {
		if err := db.UpsertFortune(ctx, env.DB, row); err != nil {
			return nil, err
		}
	} else if err := db.InsertFortune(ctx, env.DB, row); err != nil {
		return nil, err
	}

	env.Log.Debug().Str("user_id", userID).Str("fortune_id", id).Str("mode", string(input.Mode)).Msg("fortune saved")
	return &SaveOutput{ID: id, UserID: userID}, nil
}

// buildRow derives the indexed columns from payload. A missing or unreadable
// createdAt is set to now so ordering and display agree.
func buildRow(userID, id string, payload map[string]any, now time.Time) *db.Fortune {
	p := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		p[k] = v
	}
	p["user_id"] = userID

	created, ok := fortune.ToTime(p["createdAt"])
	if !ok {
		created = now
		p["createdAt"] = fortune.NewTimestamp(now)
	}

	doc := fortune.DecodeDocument(id, p)
	return &db.Fortune{
		ID:        id,
		UserID:    userID,
		Payload:   p,
		Answer:    doc.Answer,
		Language:  doc.Language,
		Style:     doc.Style,
		Period:    doc.Period,
		Model:     doc.Model,
		CreatedAt: created.Unix(),
	}
}
