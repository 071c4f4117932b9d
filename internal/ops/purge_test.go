package ops

import (
	"context"
	"testing"
	"time"

	"github.com/palmscan/palmscan/internal/errors"
)

func intPtr(i int) *int          { return &i }
func stringPtr(s string) *string { return &s }

// deleteAt soft-deletes a fortune with a chosen deleted_at.
func deleteAt(t *testing.T, env *Env, userID, id string, at time.Time) {
	t.Helper()
	_, err := env.DB.Exec(`UPDATE fortunes SET deleted_at = ? WHERE user_id = ? AND id = ?`, at.Unix(), userID, id)
	if err != nil {
		t.Fatalf("deleteAt: %v", err)
	}
}

func TestPurge_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	mustSave(t, env, "u1", "recent", sampleAnswer, nov14)
	mustSave(t, env, "u1", "old", sampleAnswer, nov14)
	mustSave(t, env, "u1", "active", sampleAnswer, nov14)
	mustSave(t, env, "u2", "old", sampleAnswer, nov14)
	deleteAt(t, env, "u1", "recent", now.Add(-time.Hour))
	deleteAt(t, env, "u1", "old", now.Add(-10*24*time.Hour))
	deleteAt(t, env, "u2", "old", now.Add(-10*24*time.Hour))

	out, err := Purge(ctx, env, PurgeInput{UserID: stringPtr("u1"), OlderThanDays: intPtr(7)})
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if out.Purged != 1 {
		t.Errorf("Purged = %d, want 1", out.Purged)
	}
	if out.Message != `Permanently deleted 1 fortune of user "u1" (deleted more than 7 days ago)` {
		t.Errorf("Message = %q", out.Message)
	}

	out, err = Purge(ctx, env, PurgeInput{})
	if err != nil {
		t.Fatalf("Purge all failed: %v", err)
	}
	if out.Purged != 2 {
		t.Errorf("Purged = %d, want 2", out.Purged)
	}

	if _, err := Fetch(ctx, env, FetchInput{UserID: "u1", ID: "active"}); err != nil {
		t.Errorf("active fortune purged: %v", err)
	}

	out, _ = Purge(ctx, env, PurgeInput{})
	if out.Purged != 0 || out.Message != "No deleted fortunes to purge" {
		t.Errorf("empty purge = %+v", out)
	}
}

func TestPurge_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := Purge(ctx, env, PurgeInput{OlderThanDays: intPtr(-1)}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("negative days: err = %v", err)
	}
	if _, err := Purge(ctx, env, PurgeInput{UserID: stringPtr(" ")}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank user: err = %v", err)
	}
}
