package fortune

import (
	"encoding/json"
	"strings"
)

// answerPaths is the fallback chain for the answer text, oldest schemas last.
var answerPaths = [][]string{
	{"answer"},
	{"predictionText"},
	{"result", "intro"},
	{"result", "topic1", "content"},
}

// DecodeDocument maps a stored payload onto a Document. Unknown or mistyped
// fields are ignored; it never fails.
func DecodeDocument(id string, payload map[string]any) Document {
	doc := Document{
		ID:        id,
		UserID:    stringAt(payload, "user_id"),
		Answer:    firstString(payload, answerPaths...),
		CreatedAt: payload["createdAt"],
		Language:  firstString(payload, []string{"language"}, []string{"result", "language"}),
		Style:     stringAt(payload, "style"),
		Period:    stringAt(payload, "period"),
		Model:     stringAt(payload, "model"),
	}

	if m, ok := payload["user_profile_used"].(map[string]any); ok {
		doc.UserProfileUsed = m
	}
	if m, ok := payload["features"].(map[string]any); ok {
		doc.Features = m
	}
	if v, ok := payload["period_text"].(map[string]any); ok {
		var pt PeriodText
		if remarshal(v, &pt) {
			doc.PeriodText = &pt
		}
	}
	if v, ok := payload["summary"].(map[string]any); ok {
		var s Summary
		if remarshal(v, &s) {
			doc.Summary = &s
		}
	}

	return doc
}

// EncodeDocument is the inverse of DecodeDocument for the fields a Document
// carries. Extra keys already present in base are preserved.
func EncodeDocument(doc Document, base map[string]any) map[string]any {
	out := make(map[string]any, len(base)+12)
	for k, v := range base {
		out[k] = v
	}
	out["answer"] = doc.Answer
	setIf(out, "user_id", doc.UserID)
	setIf(out, "language", doc.Language)
	setIf(out, "style", doc.Style)
	setIf(out, "period", doc.Period)
	setIf(out, "model", doc.Model)
	if doc.CreatedAt != nil {
		out["createdAt"] = doc.CreatedAt
	}
	if doc.PeriodText != nil {
		out["period_text"] = doc.PeriodText
	}
	if doc.Summary != nil {
		out["summary"] = doc.Summary
	}
	if doc.UserProfileUsed != nil {
		out["user_profile_used"] = doc.UserProfileUsed
	}
	if doc.Features != nil {
		out["features"] = doc.Features
	}
	return out
}

// ResolveAnswer returns the answer text of a raw payload using the fallback chain.
func ResolveAnswer(payload map[string]any) string {
	return firstString(payload, answerPaths...)
}

func firstString(m map[string]any, paths ...[]string) string {
	for _, path := range paths {
		if s := strings.TrimSpace(stringAt(m, path...)); s != "" {
			return stringAt(m, path...)
		}
	}
	return ""
}

func stringAt(m map[string]any, path ...string) string {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, _ := cur.(string)
	return s
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func remarshal(in any, out any) bool {
	b, err := json.Marshal(in)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}
