package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/vec"
)

// Region запись зеркала о регионе
type Region struct {
	ID       string   `json:"id"`
	Geometry Geometry `json:"geometry"`
	Owner    string   `json:"owner,omitempty"`
	Members  []string `json:"members,omitempty"`
}

// cellKey ячейка пространственного индекса: мир + координаты чанка
type cellKey struct {
	world string
	x, z  int
}

type mirrorRegion struct {
	Region
	members map[string]struct{}
	cells   []cellKey
}

// Journal долговременная копия зеркала: после перезапуска зеркало
// восстанавливается из неё, не дожидаясь повторных событий реестра
type Journal interface {
	SaveRegion(r Region) error
	DeleteRegion(regionID string) error
	LoadRegions() ([]Region, error)
}

// Mirror потокобезопасное зеркало реестра с индексом регионов по чанкам
type Mirror struct {
	mu      sync.RWMutex
	regions map[string]*mirrorRegion
	cells   map[cellKey]map[string]struct{}

	// journal пишется под mu, чтобы порядок записей совпадал с порядком изменений
	journal Journal
	logger  *logging.Logger
}

// NewMirror создаёт пустое зеркало
func NewMirror() *Mirror {
	return &Mirror{
		regions: make(map[string]*mirrorRegion),
		cells:   make(map[cellKey]map[string]struct{}),
		logger:  logging.GetComponentLogger("registry"),
	}
}

// Restore загружает регионы из журнала и дальше пишет в него каждое изменение
func (m *Mirror) Restore(j Journal) (int, error) {
	regions, err := j.LoadRegions()
	if err != nil {
		return 0, fmt.Errorf("загрузка регионов: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range regions {
		m.upsertLocked(r)
	}
	m.journal = j
	m.logger.Info("🗺️ Восстановлено регионов: %d", len(regions))
	return len(regions), nil
}

// Upsert добавляет регион или заменяет его геометрию и участников
func (m *Mirror) Upsert(r Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(r)
	m.save(r)
}

func (m *Mirror) upsertLocked(r Region) {
	m.removeLocked(r.ID)

	mr := &mirrorRegion{Region: r, members: make(map[string]struct{}, len(r.Members)+1)}
	if r.Owner != "" {
		mr.members[r.Owner] = struct{}{}
	}
	for _, id := range r.Members {
		mr.members[id] = struct{}{}
	}

	fp := r.Geometry.Footprint()
	from := vec.Vec2{X: fp.MinX, Z: fp.MinZ}.ToChunkCoords()
	to := vec.Vec2{X: fp.MaxX, Z: fp.MaxZ}.ToChunkCoords()
	for cx := from.X; cx <= to.X; cx++ {
		for cz := from.Z; cz <= to.Z; cz++ {
			key := cellKey{world: r.Geometry.World, x: cx, z: cz}
			set, ok := m.cells[key]
			if !ok {
				set = make(map[string]struct{})
				m.cells[key] = set
			}
			set[r.ID] = struct{}{}
			mr.cells = append(mr.cells, key)
		}
	}
	m.regions[r.ID] = mr
}

// Move меняет только геометрию региона
func (m *Mirror) Move(regionID string, g Geometry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.regions[regionID]
	if !ok {
		return false
	}
	r := mr.Region
	r.Geometry = g
	m.upsertLocked(r)
	m.save(r)
	return true
}

// Remove удаляет регион
func (m *Mirror) Remove(regionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regions[regionID]; !ok {
		return
	}
	m.removeLocked(regionID)
	if m.journal != nil {
		if err := m.journal.DeleteRegion(regionID); err != nil {
			m.logger.Error("❌ Журнал регионов: удаление %s: %v", regionID, err)
		}
	}
}

// save пишет регион в журнал (mu удерживается); ошибка журнала только логируется
func (m *Mirror) save(r Region) {
	if m.journal == nil {
		return
	}
	if err := m.journal.SaveRegion(r); err != nil {
		m.logger.Error("❌ Журнал регионов: запись %s: %v", r.ID, err)
	}
}

func (m *Mirror) removeLocked(regionID string) {
	mr, ok := m.regions[regionID]
	if !ok {
		return
	}
	for _, key := range mr.cells {
		set := m.cells[key]
		delete(set, regionID)
		if len(set) == 0 {
			delete(m.cells, key)
		}
	}
	delete(m.regions, regionID)
}

// Geometry реализует Registry
func (m *Mirror) Geometry(regionID string) (Geometry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.regions[regionID]
	if !ok {
		return Geometry{}, false
	}
	return mr.Geometry, true
}

// RegionAt реализует Registry. При пересечении регионов выбирается меньший id.
func (m *Mirror) RegionAt(world string, x, z int) (string, bool) {
	chunk := vec.Vec2{X: x, Z: z}.ToChunkCoords()

	m.mu.RLock()
	defer m.mu.RUnlock()

	best := ""
	for id := range m.cells[cellKey{world: world, x: chunk.X, z: chunk.Z}] {
		if !m.regions[id].Geometry.Footprint().Contains(x, z) {
			continue
		}
		if best == "" || id < best {
			best = id
		}
	}
	return best, best != ""
}

// RegionsInChunk реализует Registry. Ячейки индекса строятся по диапазону
// чанков следа, поэтому каждый регион ячейки пересекает чанк.
func (m *Mirror) RegionsInChunk(world string, chunkX, chunkZ int) []string {
	m.mu.RLock()
	set := m.cells[cellKey{world: world, x: chunkX, z: chunkZ}]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	m.mu.RUnlock()

	sort.Strings(out)
	return out
}

// IsMember реализует Registry
func (m *Mirror) IsMember(regionID, actorID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.regions[regionID]
	if !ok {
		return false
	}
	_, member := mr.members[actorID]
	return member
}

// Regions копия всех регионов, отсортированная по id
func (m *Mirror) Regions() []Region {
	m.mu.RLock()
	out := make([]Region, 0, len(m.regions))
	for _, mr := range m.regions {
		out = append(out, mr.Region)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
