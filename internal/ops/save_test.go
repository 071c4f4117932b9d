package ops

import (
	"context"
	"testing"
	"time"

	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

func TestSave_GeneratesID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := Save(ctx, env, SaveInput{UserID: " u1 ", Payload: map[string]any{"answer": sampleAnswer}})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(out.ID) != 26 {
		t.Errorf("ID = %q, want a ULID", out.ID)
	}
	if out.UserID != "u1" {
		t.Errorf("UserID = %q, want trimmed", out.UserID)
	}

	row, err := db.GetFortune(ctx, env.DB, "u1", out.ID, false)
	if err != nil {
		t.Fatalf("GetFortune failed: %v", err)
	}
	if row.Answer != sampleAnswer {
		t.Errorf("Answer column = %q", row.Answer)
	}
	if _, ok := fortune.ToTime(row.Payload["createdAt"]); !ok {
		t.Errorf("createdAt not defaulted: %v", row.Payload["createdAt"])
	}
	if d := time.Since(time.Unix(row.CreatedAt, 0)); d < 0 || d > time.Minute {
		t.Errorf("created_at = %d, want about now", row.CreatedAt)
	}
}

func TestSave_KeepsCreatedAtAndLegacyAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := Save(ctx, env, SaveInput{
		UserID: "u1",
		ID:     "legacy",
		Payload: map[string]any{
			"predictionText": "Career: promotion",
			"createdAt":      map[string]any{"seconds": 1700000000.0, "nanoseconds": 0.0},
			"extra":          "kept",
		},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	row, err := db.GetFortune(ctx, env.DB, "u1", "legacy", false)
	if err != nil {
		t.Fatalf("GetFortune failed: %v", err)
	}
	if row.CreatedAt != 1700000000 {
		t.Errorf("created_at = %d, want 1700000000", row.CreatedAt)
	}
	if row.Answer != "Career: promotion" {
		t.Errorf("Answer = %q, want predictionText", row.Answer)
	}
	if row.Payload["extra"] != "kept" {
		t.Error("unknown payload keys must be preserved")
	}
}

func TestSave_Modes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustSave(t, env, "u1", "f1", "first", nov14)

	_, err := Save(ctx, env, SaveInput{UserID: "u1", ID: "f1", Payload: map[string]any{"answer": "second"}})
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("mode error: err = %v, want ALREADY_EXISTS", err)
	}

	// Same id for another user is a different fortune.
	mustSave(t, env, "u2", "f1", "other user", nov14)

	_, err = Save(ctx, env, SaveInput{UserID: "u1", ID: "f1", Mode: SaveModeReplace, Payload: map[string]any{"answer": "second"}})
	if err != nil {
		t.Fatalf("mode replace failed: %v", err)
	}
	row, _ := db.GetFortune(ctx, env.DB, "u1", "f1", false)
	if row == nil || row.Answer != "second" {
		t.Errorf("replace did not overwrite: %+v", row)
	}
}

func TestSave_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input SaveInput
	}{
		{"missing user", SaveInput{Payload: map[string]any{"answer": "x"}}},
		{"missing answer", SaveInput{UserID: "u1", Payload: map[string]any{"answer": "   "}}},
		{"nil payload", SaveInput{UserID: "u1"}},
		{"bad mode", SaveInput{UserID: "u1", Mode: "merge", Payload: map[string]any{"answer": "x"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Save(ctx, env, tc.input); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}
}
