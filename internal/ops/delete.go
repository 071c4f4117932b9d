package ops

import (
	"context"
	"strings"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	UserID string
	ID     string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete soft-deletes a fortune. Deleting an already deleted fortune is NOT_FOUND.
func Delete(ctx context.Context, env *Env, input DeleteInput) (*DeleteOutput, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	if err := db.SoftDeleteFortune(ctx, env.DB, userID, id); err != nil {
		return nil, err
	}

	env.Log.Debug().Str("user_id", userID).Str("fortune_id", id).Msg("fortune deleted")
	return &DeleteOutput{
		Deleted: true,
		ID:      id,
	}, nil
}
