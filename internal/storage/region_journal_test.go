package storage

import (
	"path/filepath"
	"testing"

	"github.com/annel0/vertical-border/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltRegionJournal_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.db")

	j, err := NewBoltRegionJournal(path)
	require.NoError(t, err)

	m := registry.NewMirror()
	_, err = m.Restore(j)
	require.NoError(t, err)
	m.Upsert(registry.Region{
		ID:       "island-1",
		Geometry: registry.Geometry{World: "bskyblock_world", CenterX: 1200, CenterZ: -800, Radius: 64},
		Owner:    "alice",
		Members:  []string{"bob"},
	})
	m.Upsert(registry.Region{ID: "island-2", Geometry: registry.Geometry{World: "bskyblock_world", Radius: 32}})
	require.True(t, m.Move("island-1", registry.Geometry{World: "bskyblock_world", CenterX: 0, CenterZ: 640, Radius: 64}))
	m.Remove("island-2")
	require.NoError(t, j.Close())

	// Перезапуск: зеркало поднимается из файла без событий реестра
	j, err = NewBoltRegionJournal(path)
	require.NoError(t, err)
	defer j.Close()

	restored := registry.NewMirror()
	n, err := restored.Restore(j)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id, ok := restored.RegionAt("bskyblock_world", 10, 650)
	require.True(t, ok)
	assert.Equal(t, "island-1", id)
	assert.True(t, restored.IsMember("island-1", "bob"))
	_, ok = restored.Geometry("island-2")
	assert.False(t, ok)
}

func TestOpenRegionJournal(t *testing.T) {
	j, err := OpenRegionJournal(Config{Backend: "memory", DataPath: t.TempDir()})
	require.NoError(t, err)
	assert.Nil(t, j, "backend memory живёт без журнала")

	j, err = OpenRegionJournal(Config{Backend: "bolt", DataPath: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.NoError(t, j.Close())
}
