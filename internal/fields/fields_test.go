package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anchor = time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)

func TestParseDateCompactDurations(t *testing.T) {
	n := NewNormalizer(anchor)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"+6h", anchor.Add(6 * time.Hour)},
		{"-1d", anchor.AddDate(0, 0, -1)},
		{"2d", anchor.AddDate(0, 0, 2)},
		{"+2w", anchor.AddDate(0, 0, 14)},
		{"3m", anchor.AddDate(0, 3, 0)},
		{"1y", anchor.AddDate(1, 0, 0)},
	}
	for _, tc := range cases {
		got, err := n.ParseDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDateAbsolute(t *testing.T) {
	n := NewNormalizer(anchor)

	got, err := n.ParseDate("2026-09-01T14:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC), got)

	got, err = n.ParseDate("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDateNaturalLanguage(t *testing.T) {
	n := NewNormalizer(anchor)

	got, err := n.ParseDate("tomorrow")
	require.NoError(t, err)
	assert.Equal(t, anchor.AddDate(0, 0, 1).Day(), got.Day())

	_, err = n.ParseDate("not a date at all xyzzy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized date expression")
}

func TestNormalizeRewritesDateKeys(t *testing.T) {
	n := NewNormalizer(anchor)

	in := map[string]any{
		"name":     "Get quotes",
		"when":     "2026-09-01",
		"deadline": "+6h",
		"flagged":  true,
	}
	out, err := n.Normalize(in)
	require.NoError(t, err)

	assert.Equal(t, "2026-09-01", out["when"], "midnight-aligned dates stay date-only")
	assert.Equal(t, anchor.Add(6*time.Hour).Format(time.RFC3339), out["deadline"])
	assert.Equal(t, "Get quotes", out["name"])
	assert.Equal(t, true, out["flagged"])

	// Input map untouched.
	assert.Equal(t, "+6h", in["deadline"])
}

func TestNormalizeBadDateFails(t *testing.T) {
	n := NewNormalizer(anchor)

	_, err := n.Normalize(map[string]any{"when": "xyzzy gibberish"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "when"`)
}

func TestNormalizeTags(t *testing.T) {
	n := NewNormalizer(anchor)

	cases := []struct {
		name string
		in   any
		want []string
	}{
		{"string slice", []string{"home", "errand", "home"}, []string{"home", "errand"}},
		{"any slice", []any{"a", "b", "a"}, []string{"a", "b"}},
		{"comma string", "home, errand , home", []string{"home", "errand"}},
		{"empty entries dropped", []string{"", "a", " "}, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := n.Normalize(map[string]any{"tags": tc.in})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out["tags"])
		})
	}

	_, err := n.Normalize(map[string]any{"tags": 42})
	require.Error(t, err)

	_, err = n.Normalize(map[string]any{"tags": []any{"ok", 7}})
	require.Error(t, err)
}

func TestNormalizeEmptyPassthrough(t *testing.T) {
	n := NewNormalizer(anchor)

	out, err := n.Normalize(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = n.Normalize(map[string]any{"when": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, out["when"], "non-string date values pass through")
}
