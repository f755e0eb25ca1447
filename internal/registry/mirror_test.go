package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_GeometryAndMembers(t *testing.T) {
	m := NewMirror()
	m.Upsert(Region{
		ID:       "island-1",
		Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 50},
		Owner:    "alice",
		Members:  []string{"bob"},
	})

	g, ok := m.Geometry("island-1")
	require.True(t, ok)
	assert.Equal(t, 50, g.Radius)

	assert.True(t, m.IsMember("island-1", "alice"))
	assert.True(t, m.IsMember("island-1", "bob"))
	assert.False(t, m.IsMember("island-1", "mallory"))
	assert.False(t, m.IsMember("island-2", "alice"))

	_, ok = m.Geometry("island-2")
	assert.False(t, ok)
}

func TestMirror_RegionAt(t *testing.T) {
	m := NewMirror()
	m.Upsert(Region{ID: "a", Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 20}})
	m.Upsert(Region{ID: "b", Geometry: Geometry{World: "w", CenterX: 200, CenterZ: 0, Radius: 20}})

	id, ok := m.RegionAt("w", 20, -20)
	require.True(t, ok)
	assert.Equal(t, "a", id)

	id, ok = m.RegionAt("w", 190, 5)
	require.True(t, ok)
	assert.Equal(t, "b", id)

	_, ok = m.RegionAt("w", 21, 0)
	assert.False(t, ok, "столбец за радиусом не принадлежит региону")
	_, ok = m.RegionAt("nether", 0, 0)
	assert.False(t, ok)
}

func TestMirror_RegionsInChunk(t *testing.T) {
	m := NewMirror()
	m.Upsert(Region{ID: "b", Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 2}})
	m.Upsert(Region{ID: "a", Geometry: Geometry{World: "w", CenterX: 20, CenterZ: 4, Radius: 8}})

	// Чанк (0,0) задевают оба, хотя его центр (8,8) вне "b"
	assert.Equal(t, []string{"a", "b"}, m.RegionsInChunk("w", 0, 0))
	assert.Equal(t, []string{"b"}, m.RegionsInChunk("w", -1, -1))
	assert.Equal(t, []string{"a"}, m.RegionsInChunk("w", 1, 0))
	assert.Empty(t, m.RegionsInChunk("w", 5, 5))
	assert.Empty(t, m.RegionsInChunk("nether", 0, 0))
}

func TestMirror_MoveAndRemove(t *testing.T) {
	m := NewMirror()
	m.Upsert(Region{ID: "a", Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 10}, Owner: "alice"})

	require.True(t, m.Move("a", Geometry{World: "w", CenterX: 1000, CenterZ: 1000, Radius: 10}))
	_, ok := m.RegionAt("w", 0, 0)
	assert.False(t, ok, "старые ячейки индекса очищены")
	id, ok := m.RegionAt("w", 1005, 995)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.True(t, m.IsMember("a", "alice"), "перемещение сохраняет участников")

	assert.False(t, m.Move("missing", Geometry{World: "w"}))

	m.Remove("a")
	_, ok = m.Geometry("a")
	assert.False(t, ok)
	assert.Empty(t, m.Regions())
	assert.Empty(t, m.cells)
}

// memJournal журнал в памяти
type memJournal struct {
	mu      sync.Mutex
	regions map[string]Region
}

func newMemJournal(regions ...Region) *memJournal {
	j := &memJournal{regions: make(map[string]Region)}
	for _, r := range regions {
		j.regions[r.ID] = r
	}
	return j
}

func (j *memJournal) SaveRegion(r Region) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.regions[r.ID] = r
	return nil
}

func (j *memJournal) DeleteRegion(regionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.regions, regionID)
	return nil
}

func (j *memJournal) LoadRegions() ([]Region, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Region, 0, len(j.regions))
	for _, r := range j.regions {
		out = append(out, r)
	}
	return out, nil
}

func TestMirror_RestoreFromJournal(t *testing.T) {
	j := newMemJournal(
		Region{ID: "a", Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 10}, Owner: "alice"},
		Region{ID: "b", Geometry: Geometry{World: "w", CenterX: 500, CenterZ: 0, Radius: 10}},
	)

	m := NewMirror()
	n, err := m.Restore(j)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	id, ok := m.RegionAt("w", 3, -3)
	require.True(t, ok, "индекс построен сразу после восстановления")
	assert.Equal(t, "a", id)
	assert.True(t, m.IsMember("a", "alice"))

	// Дальнейшие изменения попадают в журнал
	m.Upsert(Region{ID: "c", Geometry: Geometry{World: "w", CenterX: -500, CenterZ: 0, Radius: 5}})
	require.True(t, m.Move("a", Geometry{World: "w", CenterX: 100, CenterZ: 100, Radius: 10}))
	m.Remove("b")

	again := NewMirror()
	_, err = again.Restore(j)
	require.NoError(t, err)
	assert.Equal(t, m.Regions(), again.Regions())

	g, ok := again.Geometry("a")
	require.True(t, ok)
	assert.Equal(t, 100, g.CenterX)
	_, ok = again.Geometry("b")
	assert.False(t, ok)
}

func TestMirror_ConcurrentMoveAndRemove(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := NewMirror()
		j := newMemJournal()
		_, err := m.Restore(j)
		require.NoError(t, err)
		m.Upsert(Region{ID: "a", Geometry: Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 10}})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Move("a", Geometry{World: "w", CenterX: 64, CenterZ: 64, Radius: 10})
		}()
		go func() {
			defer wg.Done()
			m.Remove("a")
		}()
		wg.Wait()

		// Удаление либо прошло последним, либо перемещение не нашло регион
		_, ok := m.Geometry("a")
		assert.False(t, ok, "итерация %d: удалённый регион вернулся", i)
		assert.Empty(t, m.cells)
		regions, _ := j.LoadRegions()
		assert.Empty(t, regions, "журнал совпадает с зеркалом")
	}
}

func TestGeometry_Validate(t *testing.T) {
	assert.NoError(t, Geometry{World: "w", Radius: 0}.Validate())
	assert.Error(t, Geometry{Radius: 5}.Validate())
	assert.Error(t, Geometry{World: "w", Radius: -1}.Validate())
}
