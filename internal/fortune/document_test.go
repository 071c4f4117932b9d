package fortune

import (
	"reflect"
	"testing"
)

func TestDecodeDocument_AnswerFallback(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"answer", map[string]any{"answer": "a", "predictionText": "b"}, "a"},
		{"blank answer falls through", map[string]any{"answer": "  ", "predictionText": "b"}, "b"},
		{"prediction text", map[string]any{"predictionText": "b"}, "b"},
		{"result intro", map[string]any{"result": map[string]any{"intro": "c"}}, "c"},
		{"topic content", map[string]any{"result": map[string]any{"topic1": map[string]any{"content": "d"}}}, "d"},
		{"mistyped", map[string]any{"answer": 42, "result": "x"}, ""},
		{"empty", map[string]any{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeDocument("id", tt.payload).Answer; got != tt.want {
				t.Errorf("Answer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeDocument_Fields(t *testing.T) {
	created := map[string]any{"seconds": float64(1700000000), "nanoseconds": float64(0)}
	payload := map[string]any{
		"answer":      "1) Love: ok",
		"user_id":     "u1",
		"createdAt":   created,
		"style":       "friendly",
		"period":      "week",
		"model":       "m-1",
		"result":      map[string]any{"language": "th"},
		"period_text": map[string]any{"th": "สัปดาห์นี้", "en": "This week"},
		"summary": map[string]any{
			"life":  map[string]any{"length_px": 412.5, "branch_style": "forked"},
			"heart": map[string]any{"branch_style": "straight"},
		},
		"features":          map[string]any{"lines": 3.0},
		"user_profile_used": map[string]any{"age": 30.0},
	}

	doc := DecodeDocument("f1", payload)

	if doc.ID != "f1" || doc.UserID != "u1" || doc.Style != "friendly" || doc.Period != "week" || doc.Model != "m-1" {
		t.Errorf("scalar fields = %+v", doc)
	}
	if doc.Language != "th" {
		t.Errorf("Language = %q, want fallback to result.language", doc.Language)
	}
	if !reflect.DeepEqual(doc.CreatedAt, created) {
		t.Errorf("CreatedAt = %#v, want raw shape kept", doc.CreatedAt)
	}
	if doc.PeriodText == nil || doc.PeriodText.EN != "This week" {
		t.Errorf("PeriodText = %+v", doc.PeriodText)
	}
	if doc.Summary == nil || doc.Summary.Life == nil || *doc.Summary.Life.LengthPx != 412.5 {
		t.Fatalf("Summary = %+v", doc.Summary)
	}
	if doc.Summary.Head != nil || doc.Summary.Heart.LengthPx != nil {
		t.Errorf("absent summary fields should stay nil: %+v", doc.Summary)
	}
	if doc.Features["lines"] != 3.0 || doc.UserProfileUsed["age"] != 30.0 {
		t.Errorf("maps not carried: %+v %+v", doc.Features, doc.UserProfileUsed)
	}
	if FormatDate(doc.CreatedAt, "en") != "Nov 14, 2023, 10:13 PM" {
		t.Errorf("CreatedAt does not format: %q", FormatDate(doc.CreatedAt, "en"))
	}
}

func TestDecodeDocument_MistypedSummary(t *testing.T) {
	doc := DecodeDocument("f1", map[string]any{"summary": map[string]any{"life": "long"}})
	if doc.Summary != nil {
		t.Errorf("Summary = %+v, want nil for mistyped payload", doc.Summary)
	}
}

func TestEncodeDocument_PreservesExtras(t *testing.T) {
	doc := Document{Answer: "hi", UserID: "u1", Language: "en"}
	out := EncodeDocument(doc, map[string]any{"meta": "keep", "answer": "old"})

	if out["answer"] != "hi" || out["meta"] != "keep" || out["user_id"] != "u1" {
		t.Errorf("EncodeDocument = %+v", out)
	}
	if _, ok := out["style"]; ok {
		t.Error("empty fields should not be written")
	}

	back := DecodeDocument("x", out)
	if back.Answer != "hi" || back.Language != "en" {
		t.Errorf("decode(encode) = %+v", back)
	}
}

func TestResolveAnswer(t *testing.T) {
	if got := ResolveAnswer(map[string]any{"predictionText": "p"}); got != "p" {
		t.Errorf("ResolveAnswer = %q", got)
	}
}
