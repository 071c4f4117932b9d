package ops

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/db"
	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/fortune"
)

const sampleAnswer = "1) Love: sunny\nTips\n- smile"

// nov14 is 2023-11-14 22:13:20 UTC in epoch milliseconds.
const nov14 = 1700000000000.0

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Init(dir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{filepath.Join(dir, "exports")}

	return &Env{
		DB:     database,
		Config: cfg,
		Parser: fortune.Default(),
		Log:    zerolog.Nop(),
	}
}

func exportsDir(env *Env) string {
	return env.Config.AllowedPaths[0]
}

// mustSave stores a fortune with the given answer and createdAt (epoch ms).
func mustSave(t *testing.T, env *Env, userID, id, answer string, createdAt float64) {
	t.Helper()
	payload := map[string]any{"answer": answer, "language": "en"}
	if createdAt != 0 {
		payload["createdAt"] = createdAt
	}
	if _, err := Save(context.Background(), env, SaveInput{UserID: userID, ID: id, Payload: payload}); err != nil {
		t.Fatalf("Save(%s/%s) failed: %v", userID, id, err)
	}
}

func TestCleanUserID(t *testing.T) {
	got, err := cleanUserID("  u1 ")
	if err != nil || got != "u1" {
		t.Errorf("cleanUserID = %q, %v", got, err)
	}
	if _, err := cleanUserID("   "); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank user id: err = %v, want INVALID_REQUEST", err)
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		limit, offset       int
		wantLimit, wantOffs int
	}{
		{0, 0, DefaultListLimit, 0},
		{-5, -3, DefaultListLimit, 0},
		{500, 10, MaxListLimit, 10},
		{7, 2, 7, 2},
	}
	for _, tc := range tests {
		l, o := pageBounds(tc.limit, tc.offset)
		if l != tc.wantLimit || o != tc.wantOffs {
			t.Errorf("pageBounds(%d, %d) = %d, %d", tc.limit, tc.offset, l, o)
		}
	}
}

func TestEnrich_LegacyPayloadAndColumns(t *testing.T) {
	env := newTestEnv(t)
	row := &db.Fortune{
		ID:        "old-1",
		UserID:    "u1",
		Payload:   map[string]any{"result": map[string]any{"intro": sampleAnswer}},
		Model:     "deepseek-chat",
		CreatedAt: 1700000000,
	}

	rec := env.enrich(row)

	if rec.Answer != sampleAnswer {
		t.Errorf("Answer = %q, want result.intro", rec.Answer)
	}
	if rec.UserID != "u1" || rec.Model != "deepseek-chat" {
		t.Errorf("column fallbacks not applied: %+v", rec.Document)
	}
	if rec.Parsed.Raw != rec.Answer {
		t.Error("Parsed.Raw must equal Answer")
	}
	if rec.Preview != "Love: sunny • Tips: smile" {
		t.Errorf("Preview = %q", rec.Preview)
	}
	if rec.CreatedText != "Nov 14, 2023, 10:13 PM" {
		t.Errorf("CreatedText = %q", rec.CreatedText)
	}
}

func TestEnrich_UsesConfiguredLocaleAndTimezone(t *testing.T) {
	env := newTestEnv(t)
	env.Config.Locale = "th"
	env.Config.Timezone = "Asia/Bangkok"

	rec := env.enrichDocument(fortune.Document{ID: "f", Answer: "x", CreatedAt: nov14})
	if rec.CreatedText != "15 พ.ย. 2566 05:13" {
		t.Errorf("CreatedText = %q", rec.CreatedText)
	}
}

func TestEnv_NilDefaults(t *testing.T) {
	env := &Env{}
	if env.parser() == nil || env.config() == nil {
		t.Fatal("nil Parser/Config must fall back to defaults")
	}
	if _, err := env.service(); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("service() err = %v, want INVALID_REQUEST", err)
	}
}

func TestEnv_Parse(t *testing.T) {
	env := newTestEnv(t)

	out := env.Parse(sampleAnswer, 0)
	if len(out.Sections) != 1 || out.Preview != "Love: sunny • Tips: smile" {
		t.Errorf("Parse = %+v", out)
	}
	if out := env.Parse(sampleAnswer, 4); out.Preview != "Love…" {
		t.Errorf("Preview(4) = %q", out.Preview)
	}
}

func TestEnv_FormatDate(t *testing.T) {
	env := newTestEnv(t)
	env.Config.Timezone = "Asia/Bangkok"

	if got := env.FormatDate(nov14, ""); got != "Nov 15, 2023, 5:13 AM" {
		t.Errorf("FormatDate(default locale) = %q", got)
	}
	if got := env.FormatDate(nov14, "en-GB"); got != "15 Nov 2023, 05:13" {
		t.Errorf("FormatDate(en-GB) = %q", got)
	}
	if got := env.FormatDate("soon", ""); got != "" {
		t.Errorf("FormatDate(garbage) = %q", got)
	}
}

func nov14Time() time.Time {
	return time.UnixMilli(int64(nov14)).UTC()
}
