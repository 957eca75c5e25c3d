// Package catalog models the product and metadata-type definitions of the
// indexed dataset catalog, and builds the SQL expressions that read dataset
// documents according to those definitions.
package catalog

import (
	"encoding/json"
	"strconv"
	"time"
)

// Doc is a decoded JSON metadata document.
type Doc map[string]any

// Lookup walks offset through nested objects.
func (d Doc) Lookup(offset []string) (any, bool) {
	var cur any = map[string]any(d)

	for _, key := range offset {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}

		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}

	return cur, cur != nil
}

// Object returns the nested document at offset.
func (d Doc) Object(offset []string) (Doc, bool) {
	v, ok := d.Lookup(offset)
	if !ok {
		return nil, false
	}

	obj, ok := asObject(v)

	return Doc(obj), ok
}

// String returns the value at offset rendered as text.
func (d Doc) String(offset []string) (string, bool) {
	v, ok := d.Lookup(offset)
	if !ok {
		return "", false
	}

	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Float returns the numeric value at offset. Numeric strings are accepted.
func (d Doc) Float(offset []string) (float64, bool) {
	v, ok := d.Lookup(offset)
	if !ok {
		return 0, false
	}

	return toFloat(v)
}

// Strings returns the value at offset as a list of strings.
func (d Doc) Strings(offset []string) []string {
	v, ok := d.Lookup(offset)
	if !ok {
		return nil
	}

	return toStrings(v)
}

// Time parses an RFC 3339 (or date-only) timestamp at offset.
func (d Doc) Time(offset []string) (time.Time, bool) {
	s, ok := d.String(offset)
	if !ok {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Doc:
		return t, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

func toOffsets(v any) [][]string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([][]string, 0, len(list))
	for _, item := range list {
		if o := toStrings(item); len(o) > 0 {
			out = append(out, o)
		}
	}

	return out
}
