// Package fields normalizes field values at the backend boundary.
//
// The engine treats item fields as opaque, but the automation layer expects
// dates in a single canonical form. Parsing is layered:
//  1. Compact duration (+6h, 2d, +2w)
//  2. Absolute timestamp (RFC3339, date-only)
//  3. Natural language (tomorrow, next monday)
package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// dateKeys are the field names whose string values are normalized to
// date-only or RFC3339 form before reaching the backend.
var dateKeys = map[string]bool{
	"when":     true,
	"deadline": true,
	"reminder": true,
}

// compactDurationRe matches compact duration patterns: [+-]?(\d+)([hdwmy])
// Examples: +6h, -1d, +2w, 3m, 1y
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// Normalizer resolves relative and natural-language dates against a fixed
// reference time, so one batch sees one consistent "now".
type Normalizer struct {
	now    time.Time
	parser *when.Parser
}

// NewNormalizer creates a Normalizer anchored at now.
func NewNormalizer(now time.Time) *Normalizer {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Normalizer{now: now, parser: w}
}

// Normalize returns a copy of fields with date-valued entries rewritten to
// canonical form and tag lists deduplicated. Unknown fields pass through
// untouched. The input map is never mutated.
func (n *Normalizer) Normalize(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return fields, nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case dateKeys[k]:
			s, ok := v.(string)
			if !ok || s == "" {
				out[k] = v
				continue
			}
			t, err := n.ParseDate(s)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = canonical(t)
		case k == "tags":
			tags, err := normalizeTags(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = tags
		default:
			out[k] = v
		}
	}
	return out, nil
}

// ParseDate parses a date expression through the layered parsers.
func (n *Normalizer) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if compactDurationRe.MatchString(s) {
		return parseCompactDuration(s, n.now)
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, n.now.Location()); err == nil {
		return t, nil
	}

	r, err := n.parser.Parse(s, n.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date expression %q", s)
	}
	return r.Time, nil
}

// parseCompactDuration applies [+-]?(\d+)([hdwmy]) to the base time.
func parseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	switch matches[3] {
	case "h":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, amount), nil
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	case "m":
		return now.AddDate(0, amount, 0), nil
	case "y":
		return now.AddDate(amount, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown duration unit in %q", s)
}

// canonical renders midnight-aligned times as date-only, everything else as
// RFC3339. The backend treats date-only values as all-day.
func canonical(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// normalizeTags coerces a tags value to a deduplicated []string, preserving
// first-seen order. Accepts []string, []any of strings, or a comma-separated
// string.
func normalizeTags(v any) ([]string, error) {
	var raw []string
	switch tv := v.(type) {
	case []string:
		raw = tv
	case []any:
		for _, e := range tv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("tag %v is not a string", e)
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(tv, ",")
	default:
		return nil, fmt.Errorf("unsupported tags value %T", v)
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out, nil
}
