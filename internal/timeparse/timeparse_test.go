package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseKnownPhrases(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)

	w, ok := Parse("yesterday", now)
	require.True(t, ok)
	require.Equal(t, float64(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC).Unix()), w.Start)
	require.Equal(t, float64(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC).Unix()), w.End)

	w, ok = Parse("last week", now)
	require.True(t, ok)
	require.Less(t, w.Start, w.End)

	w, ok = Parse("this month", now)
	require.True(t, ok)
	require.Equal(t, float64(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Unix()), w.Start)
}

func TestParsePastNUnits(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	w, ok := Parse("past 3 days", now)
	require.True(t, ok)
	require.InDelta(t, float64(now.Add(-72*time.Hour).Unix()), w.Start, 1)
	require.InDelta(t, float64(now.Unix()), w.End, 1)

	w, ok = Parse("last 2 weeks", now)
	require.True(t, ok)
	require.InDelta(t, float64(now.Add(-14*24*time.Hour).Unix()), w.Start, 1)
}

func TestParseRejectsUnknownExpression(t *testing.T) {
	_, ok := Parse("whenever season", time.Now())
	require.False(t, ok)

	_, ok = Parse("", time.Now())
	require.False(t, ok)
}

func TestSignificantTermsStripsStopwords(t *testing.T) {
	terms := SignificantTerms("meeting notes from last week about the project")
	require.Contains(t, terms, "meeting")
	require.Contains(t, terms, "notes")
	require.Contains(t, terms, "project")
	require.NotContains(t, terms, "the")
	require.NotContains(t, terms, "from")
}
