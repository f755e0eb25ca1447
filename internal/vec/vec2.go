package vec

// ChunkShift размер чанка по горизонтали (16 блоков) в виде сдвига
const ChunkShift = 4

// Vec2 представляет горизонтальные координаты (X, Z)
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует глобальные координаты в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> ChunkShift, Z: v.Z >> ChunkShift} // Деление на 16 с округлением вниз
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// ChunkKey упаковывает координаты чанка в один int64 (старшие 32 бита X, младшие Z)
func (v Vec2) ChunkKey() int64 {
	return int64(v.X)<<32 | int64(uint32(v.Z))
}

// ChunkBounds возвращает включительные границы чанка в блочных координатах.
// v трактуется как координаты чанка.
func (v Vec2) ChunkBounds() (minX, maxX, minZ, maxZ int) {
	minX = v.X << ChunkShift
	minZ = v.Z << ChunkShift
	return minX, minX + 15, minZ, minZ + 15
}
