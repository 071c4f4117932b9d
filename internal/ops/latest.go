package ops

import (
	"context"

	"github.com/palmscan/palmscan/internal/db"
)

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *Record `json:"item"` // nil if the user has no fortunes
}

// Latest retrieves the most recent active fortune of a user.
func Latest(ctx context.Context, env *Env, userID string) (*LatestOutput, error) {
	userID, err := cleanUserID(userID)
	if err != nil {
		return nil, err
	}

	row, err := db.LatestFortune(ctx, env.DB, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &LatestOutput{Item: nil}, nil
	}

	rec := env.enrich(row)
	return &LatestOutput{Item: &rec}, nil
}
