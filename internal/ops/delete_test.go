package ops

import (
	"context"
	"testing"

	"github.com/palmscan/palmscan/internal/errors"
)

func TestDelete_SoftDeletes(t *testing.T) {
	env := newTestEnv(t)
	mustSave(t, env, "u1", "f1", sampleAnswer, nov14)
	ctx := context.Background()

	out, err := Delete(ctx, env, DeleteInput{UserID: "u1", ID: " f1 "})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Deleted || out.ID != "f1" {
		t.Errorf("output = %+v", out)
	}

	if _, err := Fetch(ctx, env, FetchInput{UserID: "u1", ID: "f1", IncludeDeleted: true}); err != nil {
		t.Errorf("soft-deleted row should still exist: %v", err)
	}
}

func TestDelete_Errors(t *testing.T) {
	env := newTestEnv(t)
	mustSave(t, env, "u1", "f1", sampleAnswer, nov14)
	ctx := context.Background()

	if _, err := Delete(ctx, env, DeleteInput{UserID: "u2", ID: "f1"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("other user: err = %v, want NOT_FOUND", err)
	}
	if _, err := Delete(ctx, env, DeleteInput{UserID: "u1"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing id: err = %v, want INVALID_REQUEST", err)
	}

	if _, err := Delete(ctx, env, DeleteInput{UserID: "u1", ID: "f1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Delete(ctx, env, DeleteInput{UserID: "u1", ID: "f1"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("already deleted: err = %v, want NOT_FOUND", err)
	}
}
