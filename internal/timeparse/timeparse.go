// Package timeparse is the thin time-expression helper spec §1 calls for:
// the core "does not interpret natural language"; only this package's
// contract is specified, not its NLP choices (spec §1 Non-goals). It maps a
// natural-language time expression (e.g. "last week", "past 3 days") to a
// [start, end) Unix-epoch window for search_by_timeframe/recall's
// time_start/time_end parameters.
//
// Grounded on GoKitt's pkg/implicit-matcher (Aho-Corasick-based phrase
// dictionary) and pkg/scanner/discovery's stopwords.MustGet("en") usage:
// known relative-time phrases are matched with a single Aho-Corasick
// automaton over a small phrase dictionary, with a regex fallback for
// numeric quantities ("past N days"); SignificantTerms separately strips
// English stopwords from free-form input.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// Window is a resolved [Start, End) time range in seconds since Unix epoch.
type Window struct {
	Start float64
	End   float64
}

// phraseWindow resolves a known phrase to a Window relative to now.
type phraseWindow func(now time.Time) Window

// phraseTable maps a canonicalized known phrase to its resolver. Order does
// not matter; Aho-Corasick matches every phrase present in the input and
// Parse picks the longest match, mirroring GoKitt's LeftmostLongest policy.
var phraseTable = map[string]phraseWindow{
	"today": func(now time.Time) Window {
		start := startOfDay(now)
		return Window{Start: epoch(start), End: epoch(start.Add(24 * time.Hour))}
	},
	"yesterday": func(now time.Time) Window {
		start := startOfDay(now).Add(-24 * time.Hour)
		return Window{Start: epoch(start), End: epoch(start.Add(24 * time.Hour))}
	},
	"this week": func(now time.Time) Window {
		start := startOfWeek(now)
		return Window{Start: epoch(start), End: epoch(now)}
	},
	"last week": func(now time.Time) Window {
		start := startOfWeek(now).Add(-7 * 24 * time.Hour)
		return Window{Start: epoch(start), End: epoch(start.Add(7 * 24 * time.Hour))}
	},
	"this month": func(now time.Time) Window {
		start := startOfMonth(now)
		return Window{Start: epoch(start), End: epoch(now)}
	},
	"last month": func(now time.Time) Window {
		start := startOfMonth(now).AddDate(0, -1, 0)
		end := startOfMonth(now)
		return Window{Start: epoch(start), End: epoch(end)}
	},
	"this year": func(now time.Time) Window {
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: epoch(start), End: epoch(now)}
	},
}

var patterns []string

func init() {
	patterns = make([]string, 0, len(phraseTable))
	for phrase := range phraseTable {
		patterns = append(patterns, phrase)
	}
}

var pastNUnitRe = regexp.MustCompile(`(?i)\b(?:past|last)\s+(\d+)\s*(day|days|hour|hours|week|weeks|month|months)\b`)

// Parse resolves expr to a Window anchored at now. ok is false when no known
// phrase and no "past N <unit>" pattern was found, in which case callers
// should surface a validation error (spec §7: "bad time expression").
func Parse(expr string, now time.Time) (Window, bool) {
	now = now.UTC()
	lowered := strings.ToLower(strings.TrimSpace(expr))
	if lowered == "" {
		return Window{}, false
	}

	if w, ok := matchKnownPhrase(lowered, now); ok {
		return w, true
	}

	if m := pastNUnitRe.FindStringSubmatch(lowered); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return pastNUnits(now, n, m[2]), true
		}
	}

	return Window{}, false
}

// matchKnownPhrase builds (once per call, deliberately simple given the
// dictionary's small fixed size) an Aho-Corasick automaton over the phrase
// table and returns the longest phrase matched in input.
func matchKnownPhrase(input string, now time.Time) (Window, bool) {
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		return Window{}, false
	}

	matches := automaton.FindAllOverlapping([]byte(input))
	if len(matches) == 0 {
		return Window{}, false
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if (m.End - m.Start) > (best.End - best.Start) {
			best = m
		}
	}
	phrase := patterns[best.PatternID]
	resolver, ok := phraseTable[phrase]
	if !ok {
		return Window{}, false
	}
	return resolver(now), true
}

func pastNUnits(now time.Time, n int, unit string) Window {
	var dur time.Duration
	switch {
	case strings.HasPrefix(unit, "hour"):
		dur = time.Duration(n) * time.Hour
	case strings.HasPrefix(unit, "week"):
		dur = time.Duration(n) * 7 * 24 * time.Hour
	case strings.HasPrefix(unit, "month"):
		dur = time.Duration(n) * 30 * 24 * time.Hour
	default: // day(s)
		dur = time.Duration(n) * 24 * time.Hour
	}
	return Window{Start: epoch(now.Add(-dur)), End: epoch(now)}
}

// SignificantTerms strips English stopwords from expr, for callers that want
// to log or inspect the non-temporal remainder of a query string (e.g. a
// combined "meeting notes from last week" query splitting into a content
// term and a time window).
func SignificantTerms(expr string) []string {
	checker := stopwords.MustGet("en")
	var out []string
	for _, word := range strings.Fields(strings.ToLower(expr)) {
		word = strings.Trim(word, ".,!?;:")
		if word == "" || checker.Contains(word) {
			continue
		}
		out = append(out, word)
	}
	return out
}

func epoch(t time.Time) float64 { return float64(t.Unix()) }

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.Add(-time.Duration(offset) * 24 * time.Hour)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
