package fortune

import (
	"encoding/json"
	"testing"
	"time"
)

// storeTimestamp mimics a store SDK timestamp exposing ToDate.
type storeTimestamp struct{ t time.Time }

func (s storeTimestamp) ToDate() time.Time { return s.t }

type panickyTimestamp struct{ p *time.Time }

func (s panickyTimestamp) ToDate() time.Time { return *s.p }

var nov14 = time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)

func TestFormatDate_Shapes(t *testing.T) {
	want := "Nov 14, 2023, 10:13 PM"
	tests := []struct {
		name  string
		value any
	}{
		{"store timestamp", storeTimestamp{nov14}},
		{"time.Time", nov14},
		{"*time.Time", &nov14},
		{"Timestamp", Timestamp{Seconds: 1700000000}},
		{"*Timestamp", &Timestamp{Seconds: 1700000000}},
		{"map seconds", map[string]any{"seconds": float64(1700000000), "nanoseconds": float64(0)}},
		{"map underscore seconds", map[string]any{"_seconds": json.Number("1700000000"), "_nanoseconds": 0}},
		{"rfc3339", "2023-11-14T22:13:20Z"},
		{"rfc3339 nano", "2023-11-14T22:13:20.123456Z"},
		{"sql datetime", "2023-11-14 22:13:20"},
		{"epoch millis int64", int64(1700000000000)},
		{"epoch millis float", float64(1700000000000)},
		{"epoch millis string", "1700000000000"},
		{"json number", json.Number("1700000000000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDate(tt.value, ""); got != want {
				t.Errorf("FormatDate = %q, want %q", got, want)
			}
		})
	}
}

func TestFormatDate_EpochTimestampShapesAgree(t *testing.T) {
	want := "Jan 1, 1970, 12:00 AM"
	for _, v := range []any{
		Timestamp{},
		&Timestamp{},
		map[string]any{"seconds": 0, "nanoseconds": 0},
		map[string]any{"_seconds": float64(0), "_nanoseconds": float64(0)},
	} {
		if got := FormatDate(v, "en"); got != want {
			t.Errorf("FormatDate(%#v) = %q, want %q", v, got, want)
		}
	}
}

func TestFormatDate_Unrecognized(t *testing.T) {
	var nilTime *time.Time
	var nilTS *Timestamp
	for _, v := range []any{
		nil,
		"",
		"not a date",
		map[string]any{"seconds": 1},
		map[string]any{"seconds": "x", "nanoseconds": 0},
		[]int{1, 2},
		struct{}{},
		time.Time{},
		nilTime,
		nilTS,
		0,
		panickyTimestamp{},
	} {
		if got := FormatDate(v, "en"); got != "" {
			t.Errorf("FormatDate(%#v) = %q, want empty", v, got)
		}
	}
}

func TestFormatDate_RoundTrip(t *testing.T) {
	got := FormatDate(map[string]any{"seconds": 1700000000, "nanoseconds": 0}, "")
	if got == "" {
		t.Fatal("FormatDate returned empty")
	}
	parsed, err := time.Parse("Jan 2, 2006, 3:04 PM", got)
	if err != nil {
		t.Fatalf("parse %q: %v", got, err)
	}
	want := time.Unix(1700000000, 0).UTC().Truncate(time.Minute)
	if !parsed.Equal(want) {
		t.Errorf("round trip = %v, want %v", parsed, want)
	}
}

func TestFormatDate_Locales(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"", "Nov 14, 2023, 10:13 PM"},
		{"en-US", "Nov 14, 2023, 10:13 PM"},
		{"en_GB", "14 Nov 2023, 22:13"},
		{"th", "14 พ.ย. 2566 22:13"},
		{"th-TH", "14 พ.ย. 2566 22:13"},
		{"xx", "Nov 14, 2023, 10:13 PM"},
	}
	for _, tt := range tests {
		if got := FormatDate(nov14, tt.locale); got != tt.want {
			t.Errorf("FormatDate(locale %q) = %q, want %q", tt.locale, got, tt.want)
		}
	}
}

func TestFormatDateIn_Location(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*60*60)
	if got := FormatDateIn(nov14, "en", bangkok); got != "Nov 15, 2023, 5:13 AM" {
		t.Errorf("FormatDateIn = %q", got)
	}
}

func TestFormatDate_ISOFallback(t *testing.T) {
	far := time.Date(12000, time.January, 1, 0, 0, 0, 0, time.UTC)
	got := FormatDate(far, "en")
	if got != FormatISO(far) {
		t.Errorf("FormatDate(year 12000) = %q, want ISO fallback %q", got, FormatISO(far))
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := NewTimestamp(nov14.Add(250 * time.Millisecond))
	if !ts.Time().Equal(nov14.Add(250 * time.Millisecond)) {
		t.Errorf("Timestamp round trip = %v", ts.Time())
	}
}
