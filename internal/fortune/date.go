package fortune

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is the plain {seconds, nanoseconds} shape document stores emit when a
// native timestamp has been serialized.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// Time converts t to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, t.Nanoseconds)
}

// NewTimestamp converts tm to a Timestamp.
func NewTimestamp(tm time.Time) Timestamp {
	return Timestamp{Seconds: tm.Unix(), Nanoseconds: int64(tm.Nanosecond())}
}

// dateConverter is a store-native timestamp with a zero-argument conversion.
type dateConverter interface {
	ToDate() time.Time
}

// asTimer matches protobuf-style timestamps.
type asTimer interface {
	AsTime() time.Time
}

// isoLayout mirrors JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z"

// stringLayouts are tried in order for string timestamps.
var stringLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var thaiMonths = [...]string{
	"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
	"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
}

// FormatDate renders a timestamp-like value as a medium date with short time in
// UTC. See FormatDateIn.
func FormatDate(value any, locale string) string {
	return FormatDateIn(value, locale, time.UTC)
}

// FormatDateIn renders value in loc. Accepted shapes: a store timestamp with
// ToDate or AsTime, time.Time, a date string, an epoch in milliseconds (number or
// numeric string), Timestamp, or a map with seconds/nanoseconds. Anything else,
// including nil, yields "".
func FormatDateIn(value any, locale string, loc *time.Location) string {
	t, ok := ToTime(value)
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	if t.Year() < 1 || t.Year() > 9999 {
		return FormatISO(t)
	}

	switch strings.ToLower(strings.ReplaceAll(locale, "_", "-")) {
	case "th", "th-th":
		return fmt.Sprintf("%d %s %d %s", t.Day(), thaiMonths[t.Month()-1], t.Year()+543, t.Format("15:04"))
	case "en-gb":
		return t.Format("2 Jan 2006, 15:04")
	default:
		return t.Format("Jan 2, 2006, 3:04 PM")
	}
}

// FormatISO is the locale-independent rendering used when a locale layout cannot
// represent the value.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ToTime normalizes value to a time.Time, one branch per supported shape.
func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case dateConverter:
		return safeConvert(v.ToDate)
	case asTimer:
		return safeConvert(v.AsTime)
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case Timestamp:
		return v.Time(), true
	case *Timestamp:
		if v == nil {
			return time.Time{}, false
		}
		return v.Time(), true
	case string:
		return timeFromString(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return timeFromMillis(f)
	case int:
		return timeFromMillis(float64(v))
	case int64:
		return timeFromMillis(float64(v))
	case int32:
		return timeFromMillis(float64(v))
	case uint64:
		return timeFromMillis(float64(v))
	case float64:
		return timeFromMillis(v)
	case float32:
		return timeFromMillis(float64(v))
	case map[string]any:
		return timeFromMap(v)
	}
	return time.Time{}, false
}

// safeConvert guards against converters that panic on zero receivers.
func safeConvert(fn func() time.Time) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	t = fn()
	return t, !t.IsZero()
}

func timeFromString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return timeFromMillis(f)
	}
	return time.Time{}, false
}

// timeFromMillis converts a bare epoch number. Zero counts as unset.
func timeFromMillis(ms float64) (time.Time, bool) {
	if ms == 0 {
		return time.Time{}, false
	}
	return epochMillis(ms)
}

// epochMillis converts ms since the epoch, zero included.
func epochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	// Beyond ±8.64e15 ms JavaScript dates are invalid.
	if math.Abs(ms) > 8.64e15 {
		return time.Time{}, false
	}
	sec := math.Floor(ms / 1000)
	nsec := (ms - sec*1000) * 1e6
	return time.Unix(int64(sec), int64(nsec)), true
}

func timeFromMap(m map[string]any) (time.Time, bool) {
	for _, keys := range [][2]string{{"seconds", "nanoseconds"}, {"_seconds", "_nanoseconds"}} {
		rawSec, okSec := m[keys[0]]
		rawNano, okNano := m[keys[1]]
		if !okSec || !okNano {
			continue
		}
		sec, ok := toFloat(rawSec)
		if !ok {
			return time.Time{}, false
		}
		nano, ok := toFloat(rawNano)
		if !ok {
			return time.Time{}, false
		}
		// A timestamp object is set even at the epoch, like Timestamp{}.
		return epochMillis(sec*1000 + nano/1e6)
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
