package ops

import (
	"context"
	"strings"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	UserID         string
	ID             string
	IncludeDeleted bool
}

// Fetch retrieves one fortune of a user, enriched.
func Fetch(ctx context.Context, env *Env, input FetchInput) (*Record, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	row, err := db.GetFortune(ctx, env.DB, userID, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	rec := env.enrich(row)
	return &rec, nil
}

// FetchOrFallback is Fetch, but a missing fortune yields fallback enriched
// instead of NOT_FOUND. The fallback's empty id and user id are taken from input.
func FetchOrFallback(ctx context.Context, env *Env, input FetchInput, fallback fortune.Document) (*Record, error) {
	rec, err := Fetch(ctx, env, input)
	if err == nil || !errors.Is(err, errors.ErrNotFound) {
		return rec, err
	}

	if fallback.ID == "" {
		fallback.ID = strings.TrimSpace(input.ID)
	}
	if fallback.UserID == "" {
		fallback.UserID = strings.TrimSpace(input.UserID)
	}
	out := env.enrichDocument(fallback)
	out.Fallback = true
	return &out, nil
}
