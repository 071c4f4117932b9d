package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/palmscan/palmscan/internal/errors"
)

func TestHistory_NewestFirstWithPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 5; i++ {
		mustSave(t, env, "u1", fmt.Sprintf("f%d", i), sampleAnswer, nov14+float64(i)*60000)
	}
	mustSave(t, env, "u2", "other", sampleAnswer, nov14)
	ctx := context.Background()

	out, err := History(ctx, env, HistoryInput{UserID: "u1", Limit: 2})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(out.Items) != 2 || out.Items[0].ID != "f5" || out.Items[1].ID != "f4" {
		t.Fatalf("page 1 = %v", ids(out.Items))
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 5 || out.Pagination.Limit != 2 {
		t.Errorf("Pagination = %+v", out.Pagination)
	}
	if out.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}
	if out.Items[0].Preview == "" || out.Items[0].CreatedText == "" {
		t.Error("items must carry preview and created_text")
	}

	out, err = History(ctx, env, HistoryInput{UserID: "u1", Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("History page 3 failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].ID != "f1" || out.Pagination.HasMore {
		t.Errorf("last page = %v, %+v", ids(out.Items), out.Pagination)
	}
}

func TestHistory_EmptyIsNotNil(t *testing.T) {
	env := newTestEnv(t)
	out, err := History(context.Background(), env, HistoryInput{UserID: "nobody"})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if out.Items == nil || len(out.Items) != 0 {
		t.Errorf("Items = %#v, want empty slice", out.Items)
	}
	if out.Pagination.Limit != DefaultListLimit {
		t.Errorf("Limit = %d, want default", out.Pagination.Limit)
	}
}

func TestHistory_IncludeDeleted(t *testing.T) {
	env := newTestEnv(t)
	mustSave(t, env, "u1", "a", sampleAnswer, nov14)
	mustSave(t, env, "u1", "b", sampleAnswer, nov14+1000)
	ctx := context.Background()
	if _, err := Delete(ctx, env, DeleteInput{UserID: "u1", ID: "b"}); err != nil {
		t.Fatal(err)
	}

	out, _ := History(ctx, env, HistoryInput{UserID: "u1"})
	if len(out.Items) != 1 {
		t.Errorf("active items = %v", ids(out.Items))
	}
	out, _ = History(ctx, env, HistoryInput{UserID: "u1", IncludeDeleted: true})
	if len(out.Items) != 2 {
		t.Errorf("all items = %v", ids(out.Items))
	}
}

func TestHistory_RequiresUser(t *testing.T) {
	env := newTestEnv(t)
	if _, err := History(context.Background(), env, HistoryInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func ids(items []Record) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
