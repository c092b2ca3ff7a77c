package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

func testSignal(id, filingHash string, detectedAt time.Time) *domain.SignalRecord {
	clustered := true
	return &domain.SignalRecord{
		SignalID:          id,
		SignalType:        domain.SignalTypeInsiderSelling,
		CompanySymbol:     "ACME",
		FilingType:        "4",
		Confidence:        0.82,
		ThresholdExceeded: true,
		ThresholdValue:    66.67,
		Details: domain.SignalDetails{
			TotalSharesSold:     200000,
			WeightedSharesSold:  295000,
			PercentageSold:      66.67,
			EffectivePercentage: 100,
			Threshold:           40,
			NumTransactions:     3,
			NumUniqueInsiders:   2,
			Insiders:            []string{"John Doe", "Jane Smith"},
			Roles:               []string{"CEO", "CFO"},
			RoleMultiplier:      1.5,
			TimeClustered:       &clustered,
			DateRangeDays:       2,
		},
		FilingHash: filingHash,
		CID:        "QmTest",
		DetectedAt: detectedAt,
	}
}

func TestSignalStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalStore(pool)

	sig := testSignal("s1", "h1", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, store.Insert(ctx, sig))

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, sig.SignalID, got.SignalID)
	assert.Equal(t, sig.Confidence, got.Confidence)
	assert.Equal(t, sig.ThresholdValue, got.ThresholdValue)
	assert.True(t, got.ThresholdExceeded)
	// JSONB round-trips the full details document.
	assert.Equal(t, sig.Details, got.Details)
	assert.True(t, sig.DetectedAt.Equal(got.DetectedAt))

	assert.ErrorIs(t, store.Insert(ctx, sig), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalStore_GetRecentAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalStore(pool)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sig := testSignal(fmt.Sprintf("s%d", i), "h", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Insert(ctx, sig))
	}

	got, err := store.GetRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s4", got[0].SignalID, "newest first")
	assert.Equal(t, "s3", got[1].SignalID)

	_, err = store.GetRecent(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestSignalStore_GetByFilingHash(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalStore(pool)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, testSignal("s2", "h1", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, testSignal("s1", "h1", base)))
	require.NoError(t, store.Insert(ctx, testSignal("s3", "h2", base)))

	got, err := store.GetByFilingHash(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].SignalID, "ordered by detected_at ASC")
	assert.Equal(t, "s2", got[1].SignalID)
}
