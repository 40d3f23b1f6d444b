package quality

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is the decompressed shape of a memory's quality metadata, the form
// Apply/ScoreOf operate on. Encode/Decode round-trip this to/from the CSV
// codec spec §6.3 requires when syncing to a remote store under a hard
// metadata size cap.
type Record struct {
	Score        float64
	Provider     string
	Confidence   float64
	CalculatedAt time.Time
	AccessCount  int
	LastAccessed time.Time
	// History holds up to 3 prior (score, calculatedAt) pairs, oldest first.
	History []HistoryEntry
}

// HistoryEntry is one prior scoring event.
type HistoryEntry struct {
	Score        float64
	CalculatedAt time.Time
}

// providerCodes maps known provider names to a single-byte short code, kept
// stable across releases since it's part of the wire format. Unknown
// providers fall back to "u" (unknown) with the name itself stored in an
// extended field, per the 16-part record.
var providerCodes = map[string]string{
	"implicit": "i",
	"ai":       "a",
	"none":     "n",
}

var codeProviders = map[string]string{
	"i": "implicit",
	"a": "ai",
	"n": "none",
}

// legacyRecordParts and extendedRecordParts are the two record widths the
// codec must stay backward-compatible with (spec §6.3): older rows were
// written with 13 comma-separated fields (score, provider code, confidence,
// calculated_at, access_count, last_accessed, then up to 3 history
// score/timestamp pairs); a 16-part extension adds a literal provider name
// field plus two reserved slots for future decision codes, so a full
// provider name survives even when it has no short code.
const (
	legacyRecordParts   = 13
	extendedRecordParts = 16
)

// Encode renders r as a single CSV row (no trailing newline), choosing the
// legacy 13-field form when the provider has a known short code and there's
// no overflow data to carry, or the extended 16-field form otherwise.
func Encode(r Record) (string, error) {
	code, known := providerCodes[r.Provider]
	if !known {
		code = "u"
	}

	fields := []string{
		formatFloat(r.Score),
		code,
		formatFloat(r.Confidence),
		formatTime(r.CalculatedAt),
		strconv.Itoa(r.AccessCount),
		formatTime(r.LastAccessed),
	}
	for i := 0; i < 3; i++ {
		if i < len(r.History) {
			fields = append(fields, formatFloat(r.History[i].Score), formatTime(r.History[i].CalculatedAt))
		} else {
			fields = append(fields, "", "")
		}
	}

	if known {
		return writeCSVRow(fields)
	}

	// Extended form: append the literal provider name and two reserved
	// decision-code slots (currently unused, kept empty).
	fields = append(fields, r.Provider, "", "")
	return writeCSVRow(fields)
}

func writeCSVRow(fields []string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("quality: encode csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("quality: flush csv row: %w", err)
	}
	return strings.TrimRight(sb.String(), "\r\n"), nil
}

// Decode parses a row produced by Encode, accepting both the 13-part legacy
// and 16-part extended widths.
func Decode(row string) (Record, error) {
	r := csv.NewReader(strings.NewReader(row))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return Record{}, fmt.Errorf("quality: decode csv row: %w", err)
	}
	if len(fields) != legacyRecordParts && len(fields) != extendedRecordParts {
		return Record{}, fmt.Errorf("quality: csv row has %d fields, want %d or %d", len(fields), legacyRecordParts, extendedRecordParts)
	}

	rec := Record{}
	rec.Score = parseFloat(fields[0])
	code := fields[1]
	if name, ok := codeProviders[code]; ok {
		rec.Provider = name
	} else if len(fields) == extendedRecordParts && fields[13] != "" {
		rec.Provider = fields[13]
	} else {
		rec.Provider = "unknown"
	}
	rec.Confidence = parseFloat(fields[2])
	rec.CalculatedAt = parseTime(fields[3])
	rec.AccessCount = parseInt(fields[4])
	rec.LastAccessed = parseTime(fields[5])

	for i := 0; i < 3; i++ {
		scoreField := fields[6+i*2]
		tsField := fields[7+i*2]
		if scoreField == "" && tsField == "" {
			continue
		}
		rec.History = append(rec.History, HistoryEntry{
			Score:        parseFloat(scoreField),
			CalculatedAt: parseTime(tsField),
		})
	}
	return rec, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
