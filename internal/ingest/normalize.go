// Package ingest turns loosely typed stored documents into domain values.
// Coercion of legacy field encodings happens here and nowhere else.
package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Published coerces the legacy published flag, which older clients stored
// as a bool, a "true"/"false" string or a 0/1 number.
func Published(v any) bool {
	switch p := v.(type) {
	case bool:
		return p
	case string:
		return strings.EqualFold(strings.TrimSpace(p), "true")
	case float64:
		return p == 1
	case int:
		return p == 1
	case int64:
		return p == 1
	case json.Number:
		n, err := p.Float64()
		return err == nil && n == 1
	default:
		return false
	}
}

// secondsCutoff separates epoch seconds from epoch milliseconds.
const secondsCutoff = 10_000_000_000

// Timestamp normalizes epoch seconds, epoch millis, RFC 3339 strings and
// {seconds, nanoseconds} objects. Anything unreadable becomes the zero time,
// which the leaderboard treats as unknown.
func Timestamp(v any) time.Time {
	switch ts := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return ts
	case float64:
		return fromEpoch(ts)
	case int64:
		return fromEpoch(float64(ts))
	case int:
		return fromEpoch(float64(ts))
	case json.Number:
		n, err := ts.Float64()
		if err != nil {
			return time.Time{}
		}
		return fromEpoch(n)
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t.UTC()
		}
		if n, err := strconv.ParseFloat(ts, 64); err == nil {
			return fromEpoch(n)
		}
		return time.Time{}
	case map[string]any:
		secs, ok := number(ts["seconds"])
		if !ok {
			return time.Time{}
		}
		nanos, _ := number(ts["nanoseconds"])
		return time.Unix(int64(secs), int64(nanos)).UTC()
	default:
		return time.Time{}
	}
}

func fromEpoch(n float64) time.Time {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}
	}
	if n < secondsCutoff {
		return time.Unix(int64(n), 0).UTC()
	}
	return time.UnixMilli(int64(n)).UTC()
}

// Int coerces numbers and numeric strings; fallback is returned otherwise.
func Int(v any, fallback int) int {
	if n, ok := number(v); ok {
		return int(n)
	}
	return fallback
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
