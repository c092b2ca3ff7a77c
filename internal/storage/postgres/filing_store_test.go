package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

func testFiling(id, cik string, fetchedAt int64) *domain.Filing {
	return &domain.Filing{
		FilingID:   id,
		CIK:        cik,
		FilingType: "4",
		CID:        "QmTest" + id,
		RawContent: "<ownershipDocument/>",
		FetchedAt:  fetchedAt,
	}
}

func TestFilingStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFilingStore(pool)

	f := testFiling("aaa", "0000320193", 1000)
	require.NoError(t, store.Insert(ctx, f))

	got, err := store.GetByID(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, f.FilingID, got.FilingID)
	assert.Equal(t, f.CIK, got.CIK)
	assert.Equal(t, f.CID, got.CID)
	assert.Equal(t, f.RawContent, got.RawContent)
	assert.Equal(t, f.FetchedAt, got.FetchedAt)
	assert.Positive(t, got.CreatedAt, "created_at filled by default")

	assert.ErrorIs(t, store.Insert(ctx, testFiling("aaa", "other", 2000)), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFilingStore_GetByCIKAndExists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFilingStore(pool)

	require.NoError(t, store.Insert(ctx, testFiling("b", "111", 2000)))
	require.NoError(t, store.Insert(ctx, testFiling("a", "111", 1000)))
	require.NoError(t, store.Insert(ctx, testFiling("c", "222", 1500)))

	got, err := store.GetByCIK(ctx, "111")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].FilingID, "ordered by fetched_at ASC")
	assert.Equal(t, "b", got[1].FilingID)

	exists, err := store.Exists(ctx, "c")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, exists)
}
