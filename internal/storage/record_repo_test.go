package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id string) border.Record {
	r := border.NewRecord(id, border.Defaults{TopY: 250, BottomY: -40, CeilingEnabled: true, FloorEnabled: false})
	r.UpdateLocation("bskyblock_world", 1200, -800, 64)
	return r
}

// testRecordRepo общий контракт всех реализаций RecordRepo
func testRecordRepo(t *testing.T, repo RecordRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		want := sampleRecord("island-a")
		require.NoError(t, repo.Save(ctx, want))

		got, found, err := repo.Load(ctx, "island-a")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, got, "все поля, включая last* и location_initialized, переживают запись")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		got, found, err := repo.Load(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, border.Record{}, got)
	})

	t.Run("Update", func(t *testing.T) {
		r := sampleRecord("island-b")
		require.NoError(t, repo.Save(ctx, r))
		r.TopY = 100
		r.BorderEnabled = false
		require.NoError(t, repo.Save(ctx, r))

		got, found, err := repo.Load(ctx, "island-b")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 100, got.TopY)
		assert.False(t, got.BorderEnabled)
	})

	t.Run("BatchSave and LoadAll", func(t *testing.T) {
		batch := []border.Record{sampleRecord("island-c"), sampleRecord("island-d")}
		require.NoError(t, repo.BatchSave(ctx, batch))

		all, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, r := range all {
			ids = append(ids, r.RegionID)
		}
		assert.ElementsMatch(t, []string{"island-a", "island-b", "island-c", "island-d"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "island-c"))
		_, found, err := repo.Load(ctx, "island-c")
		require.NoError(t, err)
		assert.False(t, found)

		assert.NoError(t, repo.Delete(ctx, "never-existed"))
	})

	t.Run("Empty ID rejected", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, border.Record{}))
	})
}

func TestMemoryRecordRepo(t *testing.T) {
	repo := NewMemoryRecordRepo()
	testRecordRepo(t, repo)
	assert.Equal(t, 3, repo.Count())
}

func TestBadgerRecordRepo(t *testing.T) {
	repo, err := NewBadgerRecordRepo("")
	require.NoError(t, err)
	defer repo.Close()
	testRecordRepo(t, repo)
}

func TestBadgerRecordRepo_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerRecordRepo(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sampleRecord("island-a")))
	require.NoError(t, repo.Close())

	repo, err = NewBadgerRecordRepo(dir)
	require.NoError(t, err)
	defer repo.Close()
	got, found, err := repo.Load(ctx, "island-a")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.LocationInitialized)
	assert.Equal(t, 1200, got.LastCenterX)
}

func TestBoltRecordRepo(t *testing.T) {
	repo, err := NewBoltRecordRepo(filepath.Join(t.TempDir(), "borders.db"))
	require.NoError(t, err)
	defer repo.Close()
	testRecordRepo(t, repo)
}

func TestSQLiteRecordRepo(t *testing.T) {
	repo, err := NewSQLiteRecordRepo(filepath.Join(t.TempDir(), "borders.sqlite"))
	require.NoError(t, err)
	defer repo.Close()
	testRecordRepo(t, repo)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "cassandra"})
	assert.Error(t, err)

	repo, err := Open(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRecordRepo{}, repo)
}
