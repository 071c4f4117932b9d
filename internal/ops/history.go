package ops

import (
	"context"

	"github.com/palmscan/palmscan/internal/db"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	UserID         string // required
	Limit          int    // default: 20, max: 100
	Offset         int    // default: 0
	IncludeDeleted bool
}

// ListOutput is a page of enriched fortunes.
type ListOutput struct {
	Items      []Record   `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

const sortCreatedDesc = "created_at_desc"

// History retrieves a user's fortunes, newest first, with pagination.
func History(ctx context.Context, env *Env, input HistoryInput) (*ListOutput, error) {
	userID, err := cleanUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	limit, offset := pageBounds(input.Limit, input.Offset)

	rows, total, err := db.ListFortunes(ctx, env.DB, userID, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	return env.page(rows, total, limit, offset), nil
}

func (e *Env) page(rows []db.Fortune, total, limit, offset int) *ListOutput {
	items := e.enrichRows(rows)
	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: sortCreatedDesc,
	}
}
