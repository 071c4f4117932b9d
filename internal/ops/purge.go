package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	UserID        *string // optional filter by user
	OlderThanDays *int    // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes soft-deleted fortunes.
func Purge(ctx context.Context, env *Env, input PurgeInput) (*PurgeOutput, error) {
	if input.UserID != nil {
		userID, err := cleanUserID(*input.UserID)
		if err != nil {
			return nil, err
		}
		input.UserID = &userID
	}
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must be >= 0")
	}

	count, err := db.PurgeDeleted(ctx, env.DB, input.UserID, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.UserID, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, userID *string, olderThanDays *int) string {
	if count == 0 {
		return "No deleted fortunes to purge"
	}

	word := "fortune"
	if count > 1 {
		word = "fortunes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Permanently deleted %d %s", count, word)
	if userID != nil {
		fmt.Fprintf(&b, " of user %q", *userID)
	}
	if olderThanDays != nil {
		fmt.Fprintf(&b, " (deleted more than %d days ago)", *olderThanDays)
	}
	return b.String()
}
