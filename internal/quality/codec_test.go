package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripsKnownProvider(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	rec := Record{
		Score:        0.82,
		Provider:     "implicit",
		Confidence:   0.6,
		CalculatedAt: now,
		AccessCount:  12,
		LastAccessed: now.Add(-time.Hour),
		History: []HistoryEntry{
			{Score: 0.5, CalculatedAt: now.Add(-48 * time.Hour)},
		},
	}

	row, err := Encode(rec)
	require.NoError(t, err)

	got, err := Decode(row)
	require.NoError(t, err)
	require.Equal(t, rec.Provider, got.Provider)
	require.InDelta(t, rec.Score, got.Score, 1e-9)
	require.InDelta(t, rec.Confidence, got.Confidence, 1e-9)
	require.Equal(t, rec.AccessCount, got.AccessCount)
	require.WithinDuration(t, rec.CalculatedAt, got.CalculatedAt, time.Second)
	require.Len(t, got.History, 1)
	require.InDelta(t, 0.5, got.History[0].Score, 1e-9)
}

func TestEncodeUnknownProviderUsesExtendedForm(t *testing.T) {
	rec := Record{Score: 0.3, Provider: "local_onnx", Confidence: 0.4, CalculatedAt: time.Now().UTC()}
	row, err := Encode(rec)
	require.NoError(t, err)

	got, err := Decode(row)
	require.NoError(t, err)
	require.Equal(t, "local_onnx", got.Provider)
}

func TestDecodeAcceptsLegacyThirteenPartRecord(t *testing.T) {
	// A hand-built legacy row: score,code,confidence,calculated_at,access_count,
	// last_accessed, then 3 empty history pairs (6 empty fields) = 13 fields.
	row := "0.9,i,0.7,2024-01-01T00:00:00Z,3,2024-01-02T00:00:00Z,,,,,,,"
	rec, err := Decode(row)
	require.NoError(t, err)
	require.Equal(t, "implicit", rec.Provider)
	require.InDelta(t, 0.9, rec.Score, 1e-9)
	require.Empty(t, rec.History)
}

func TestDecodeRejectsWrongFieldCount(t *testing.T) {
	_, err := Decode("0.5,i,0.5")
	require.Error(t, err)
}

func TestTierOfBoundaries(t *testing.T) {
	require.Equal(t, TierHigh, TierOf(0.7))
	require.Equal(t, TierMedium, TierOf(0.5))
	require.Equal(t, TierMedium, TierOf(0.69))
	require.Equal(t, TierLow, TierOf(0.49))
}

func TestRetentionDaysForMatchesTier(t *testing.T) {
	d := DefaultRetentionDays()
	require.Equal(t, 365, d.RetentionDaysFor(0.9))
	require.Equal(t, 180, d.RetentionDaysFor(0.55))
	require.Equal(t, 30, d.RetentionDaysFor(0.1))
}
