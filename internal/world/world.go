// Package world хранит блоки игровых миров в памяти: разреженные
// столбцы-чанки с ленивыми секциями 16x16x16. Используется как локальный
// бэкенд массовых правок и как модель мира в тестах.
package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/vec"
)

// ErrUnknownWorld мир с таким именем не зарегистрирован
var ErrUnknownWorld = errors.New("неизвестный мир")

// World один мир с вертикальными пределами
type World struct {
	name   string
	limits border.Limits

	mu     sync.RWMutex
	chunks map[vec.Vec2]*Chunk
}

// NewWorld создаёт пустой мир
func NewWorld(name string, limits border.Limits) *World {
	return &World{
		name:   name,
		limits: limits,
		chunks: make(map[vec.Vec2]*Chunk),
	}
}

// Name имя мира
func (w *World) Name() string { return w.name }

// Limits вертикальные пределы мира
func (w *World) Limits() border.Limits { return w.limits }

func (w *World) chunk(coords vec.Vec2, create bool) *Chunk {
	w.mu.RLock()
	c, ok := w.chunks[coords]
	w.mu.RUnlock()
	if ok || !create {
		return c
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok = w.chunks[coords]; ok {
		return c
	}
	c = NewChunk(coords, w.limits.MinY)
	w.chunks[coords] = c
	return c
}

func (w *World) inside(y int) bool {
	return y >= w.limits.MinY && y < w.limits.MaxY
}

// GetBlock возвращает блок по абсолютной позиции; вне пределов мира всегда воздух
func (w *World) GetBlock(pos vec.Vec3) BlockID {
	if !w.inside(pos.Y) {
		return AirBlockID
	}
	c := w.chunk(pos.Horizontal().ToChunkCoords(), false)
	if c == nil {
		return AirBlockID
	}
	local := pos.Horizontal().LocalInChunk()
	return c.GetBlock(local.X, pos.Y, local.Z)
}

// SetBlock устанавливает блок по абсолютной позиции
func (w *World) SetBlock(pos vec.Vec3, id BlockID) error {
	if !w.inside(pos.Y) {
		return fmt.Errorf("%w: y=%d", border.ErrOutOfBounds, pos.Y)
	}
	local := pos.Horizontal().LocalInChunk()
	w.chunk(pos.Horizontal().ToChunkCoords(), true).SetBlock(local.X, pos.Y, local.Z, id)
	return nil
}

// Fill заполняет объём блоком безусловно (подготовка сцен, генерация)
func (w *World) Fill(v border.Volume, id BlockID) {
	w.forEachChunk(v.Clamp(w.limits), true, func(c *Chunk, minX, maxX, minZ, maxZ int, vol border.Volume) bool {
		c.Mu.Lock()
		for y := vol.MinY; y <= vol.MaxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				for x := minX; x <= maxX; x++ {
					c.setLocked(x, y, z, id)
				}
			}
		}
		c.Mu.Unlock()
		return true
	})
}

// ReplaceBlocks заменяет блоки из mask на to внутри объёма.
// Объём обрезается по пределам мира; отмена контекста проверяется между чанками.
func (w *World) ReplaceBlocks(ctx context.Context, v border.Volume, mask []BlockID, to BlockID) (int, error) {
	v = v.Clamp(w.limits)
	if v.Empty() {
		return 0, nil
	}

	create := containsBlock(mask, AirBlockID)
	changed := 0
	var ctxErr error
	w.forEachChunk(v, create, func(c *Chunk, minX, maxX, minZ, maxZ int, vol border.Volume) bool {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			return false
		}
		if c == nil {
			return true
		}
		changed += c.Replace(minX, maxX, vol.MinY, vol.MaxY, minZ, maxZ, mask, to)
		return true
	})
	if ctxErr != nil {
		return changed, fmt.Errorf("правка %s прервана после %d блоков: %w", v, changed, ctxErr)
	}
	return changed, nil
}

// CountBlocks считает блоки id в объёме
func (w *World) CountBlocks(v border.Volume, id BlockID) int {
	n := 0
	w.forEachChunk(v.Clamp(w.limits), false, func(c *Chunk, minX, maxX, minZ, maxZ int, vol border.Volume) bool {
		if c == nil {
			if id == AirBlockID {
				n += (maxX - minX + 1) * (vol.MaxY - vol.MinY + 1) * (maxZ - minZ + 1)
			}
			return true
		}
		n += c.Count(minX, maxX, vol.MinY, vol.MaxY, minZ, maxZ, id)
		return true
	})
	return n
}

// LoadedChunks координаты существующих чанков (отсортированы)
func (w *World) LoadedChunks() []vec.Vec2 {
	w.mu.RLock()
	out := make([]vec.Vec2, 0, len(w.chunks))
	for c := range w.chunks {
		out = append(out, c)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// forEachChunk обходит чанки, пересекающие объём, передавая локальные границы x/z.
// При create=false несуществующий чанк передаётся как nil.
func (w *World) forEachChunk(v border.Volume, create bool, fn func(c *Chunk, minX, maxX, minZ, maxZ int, vol border.Volume) bool) {
	if v.Empty() {
		return
	}
	from := vec.Vec2{X: v.MinX, Z: v.MinZ}.ToChunkCoords()
	to := vec.Vec2{X: v.MaxX, Z: v.MaxZ}.ToChunkCoords()

	for cx := from.X; cx <= to.X; cx++ {
		for cz := from.Z; cz <= to.Z; cz++ {
			coords := vec.Vec2{X: cx, Z: cz}
			bMinX, bMaxX, bMinZ, bMaxZ := coords.ChunkBounds()
			minX := max(v.MinX, bMinX) - bMinX
			maxX := min(v.MaxX, bMaxX) - bMinX
			minZ := max(v.MinZ, bMinZ) - bMinZ
			maxZ := min(v.MaxZ, bMaxZ) - bMinZ

			c := w.chunk(coords, create)
			if !fn(c, minX, maxX, minZ, maxZ, v) {
				return
			}
		}
	}
}

// Universe набор миров по имени; реализует бэкенд массовых правок
type Universe struct {
	mu     sync.RWMutex
	worlds map[string]*World
	limits border.Limits
}

// NewUniverse создаёт набор миров; миры создаются по требованию с общими пределами
func NewUniverse(limits border.Limits) *Universe {
	return &Universe{
		worlds: make(map[string]*World),
		limits: limits,
	}
}

// World возвращает мир по имени, создавая его при необходимости
func (u *Universe) World(name string) *World {
	u.mu.RLock()
	w, ok := u.worlds[name]
	u.mu.RUnlock()
	if ok {
		return w
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if w, ok = u.worlds[name]; ok {
		return w
	}
	w = NewWorld(name, u.limits)
	u.worlds[name] = w
	return w
}

// Lookup возвращает мир без создания
func (u *Universe) Lookup(name string) (*World, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	w, ok := u.worlds[name]
	return w, ok
}

// ReplaceBlocks выполняет замену в мире объёма
func (u *Universe) ReplaceBlocks(ctx context.Context, v border.Volume, mask []BlockID, to BlockID) (int, error) {
	if v.World == "" {
		return 0, fmt.Errorf("%w: пустое имя мира", ErrUnknownWorld)
	}
	return u.World(v.World).ReplaceBlocks(ctx, v, mask, to)
}

// CountBlocks считает блоки id в объёме; несуществующий мир пуст
func (u *Universe) CountBlocks(v border.Volume, id BlockID) int {
	w, ok := u.Lookup(v.World)
	if !ok {
		if id == AirBlockID {
			return int(v.Clamp(u.limits).Blocks())
		}
		return 0
	}
	return w.CountBlocks(v, id)
}
