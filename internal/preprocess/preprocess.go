// Package preprocess applies post-normalization enrichment to a table:
// timestamp coercion, a per-minute bucket column and a numeric length.
package preprocess

import (
	"math"
	"strconv"
	"strings"
	"time"

	"nidwatch/internal/models"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Apply returns an enriched copy of t. The input is never mutated.
// Running Apply on its own output yields an equal table.
func Apply(t *models.Table) *models.Table {
	out := t.Clone()

	switch {
	case out.HasColumn(models.ColTime):
		// A free-form time column is coerced in place.
		coerced := make([]any, out.Len())
		for i, v := range out.Column(models.ColTime) {
			if ts, ok := ParseTime(v); ok {
				coerced[i] = ts
			}
		}
		out.SetColumn(models.ColTime, coerced)
		out.SetColumn(models.ColMinute, minutes(coerced))
	case out.HasColumn(models.ColTS):
		// ts keeps its canonical float form.
		out.SetColumn(models.ColMinute, minutes(out.Column(models.ColTS)))
	}

	lengths := make([]any, out.Len())
	if out.HasColumn(models.ColLength) {
		for i, v := range out.Column(models.ColLength) {
			lengths[i] = models.Length(v)
		}
	} else {
		for i := range lengths {
			lengths[i] = int64(0)
		}
	}
	out.SetColumn(models.ColLength, lengths)

	return out
}

func minutes(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if ts, ok := ParseTime(v); ok {
			out[i] = ts.Truncate(time.Minute)
		}
	}
	return out
}

// ParseTime coerces a cell to a UTC time. Numbers are epochs in seconds
// (or ms/µs/ns, by magnitude); strings may be epochs or one of the common
// date layouts. Times outside years 1 through 9999 are unparseable.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case float64:
		return fromEpoch(x)
	case int64:
		return fromEpoch(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Representable epoch seconds: 0001-01-01 through 9999-12-31.
const (
	minEpoch = -62135596800
	maxEpoch = 253402300799
)

// fromEpoch reads f as epoch seconds, or as nanoseconds, microseconds or
// milliseconds when its magnitude is too large to be seconds.
func fromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	switch a := math.Abs(f); {
	case a >= 1e17:
		f /= 1e9
	case a >= 1e14:
		f /= 1e6
	case a >= 1e11:
		f /= 1e3
	}
	if f < minEpoch || f > maxEpoch {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
