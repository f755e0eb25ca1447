package controller

import (
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/vec"
)

// chunkKey ключ подавления повторных загрузок чанка
type chunkKey struct {
	world string
	x, z  int
}

// OnChunkLoaded планирует починку барьеров в загруженном чанке.
// Повторные загрузки того же чанка в окне задержки схлопываются.
func (c *Controller) OnChunkLoaded(world string, chunkX, chunkZ int) {
	if c.closed.Load() || !c.repair.Load() || !c.engine.Available() || !c.engine.PlacementEnabled() {
		return
	}

	key := chunkKey{world: world, x: chunkX, z: chunkZ}
	c.chunksMu.Lock()
	defer c.chunksMu.Unlock()
	if _, pending := c.chunks[key]; pending {
		return
	}
	c.chunks[key] = time.AfterFunc(c.opts.ChunkDebounce, func() {
		c.chunksMu.Lock()
		delete(c.chunks, key)
		c.chunksMu.Unlock()
		c.repairChunk(key)
	})
}

func (c *Controller) repairChunk(key chunkKey) {
	minX, maxX, minZ, maxZ := vec.Vec2{X: key.x, Z: key.z}.ChunkBounds()
	chunk := border.Footprint{World: key.world, MinX: minX, MaxX: maxX, MinZ: minZ, MaxZ: maxZ}
	for _, regionID := range c.registry.RegionsInChunk(key.world, key.x, key.z) {
		c.repairRegionChunk(regionID, chunk)
	}
}

func (c *Controller) repairRegionChunk(regionID string, chunk border.Footprint) {
	queued := false
	err := c.withLane(regionID, func(l *lane) error {
		// Запись читается под очередью региона и только из кэша:
		// загрузка чанка не должна создавать записи
		rec, ok := c.store.Get(regionID)
		if !ok || !rec.BorderEnabled {
			return nil
		}
		l.ensurePlacement(rec, true)
		if !l.placed.any() || len(l.stale) > 0 {
			return nil
		}
		if _, ok := chunk.Intersect(l.placed.footprint); !ok {
			return nil
		}
		c.enqueue(l, kindRepair, chunk)
		queued = true
		return nil
	})
	if err == nil && queued {
		c.logger.Trace("🧩 Починка чанка %s [%d..%d, %d..%d] для %s", chunk.World, chunk.MinX, chunk.MaxX, chunk.MinZ, chunk.MaxZ, regionID)
	}
}
