package world

import (
	"sync"

	"github.com/annel0/vertical-border/internal/vec"
)

// SectionSize сторона секции чанка в блоках
const SectionSize = 16

const sectionVolume = SectionSize * SectionSize * SectionSize

// section куб 16x16x16; индекс (y*16+z)*16+x
type section struct {
	blocks [sectionVolume]BlockID
	solid  int // количество непустых (не воздух) ячеек
}

func sectionIndex(lx, ly, lz int) int {
	return (ly*SectionSize+lz)*SectionSize + lx
}

// Chunk представляет столбец мира 16x16 блоков по горизонтали.
// Секции по вертикали создаются лениво: отсутствующая секция целиком состоит из воздуха.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире

	minY     int
	sections map[int]*section

	ChangeCounter int          // Счетчик изменений
	Mu            sync.RWMutex // Мьютекс для безопасного доступа
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(coords vec.Vec2, minY int) *Chunk {
	return &Chunk{
		Coords:   coords,
		minY:     minY,
		sections: make(map[int]*section),
	}
}

// split делит абсолютную высоту на номер секции и локальную высоту
func (c *Chunk) split(y int) (int, int) {
	rel := y - c.minY
	return rel >> vec.ChunkShift, rel & (SectionSize - 1)
}

// GetBlock возвращает ID блока по локальным x/z и абсолютной высоте
func (c *Chunk) GetBlock(lx, y, lz int) BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	sy, ly := c.split(y)
	s, ok := c.sections[sy]
	if !ok {
		return AirBlockID
	}
	return s.blocks[sectionIndex(lx, ly, lz)]
}

// SetBlock устанавливает блок по локальным x/z и абсолютной высоте
func (c *Chunk) SetBlock(lx, y, lz int, id BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.setLocked(lx, y, lz, id)
}

func (c *Chunk) setLocked(lx, y, lz int, id BlockID) bool {
	sy, ly := c.split(y)
	s, ok := c.sections[sy]
	if !ok {
		if id == AirBlockID {
			return false
		}
		s = &section{}
		c.sections[sy] = s
	}
	idx := sectionIndex(lx, ly, lz)
	old := s.blocks[idx]
	if old == id {
		return false
	}
	s.blocks[idx] = id
	if old == AirBlockID {
		s.solid++
	} else if id == AirBlockID {
		s.solid--
	}
	if s.solid == 0 {
		delete(c.sections, sy)
	}
	c.ChangeCounter++
	return true
}

// Replace заменяет блоки из mask на to в локальном параллелепипеде.
// Границы x/z локальные (0..15), y абсолютные. Возвращает число изменённых блоков.
func (c *Chunk) Replace(minX, maxX, minY, maxY, minZ, maxZ int, mask []BlockID, to BlockID) int {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	airInMask := containsBlock(mask, AirBlockID)
	changed := 0
	for y := minY; y <= maxY; y++ {
		sy, ly := c.split(y)
		s, ok := c.sections[sy]
		if !ok && !airInMask {
			// Пустая секция: заменять нечего, пропускаем её остаток
			y = c.minY + (sy+1)*SectionSize - 1
			continue
		}
		for z := minZ; z <= maxZ; z++ {
			for x := minX; x <= maxX; x++ {
				var cur BlockID
				if s != nil {
					cur = s.blocks[sectionIndex(x, ly, z)]
				}
				if cur == to || !containsBlock(mask, cur) {
					continue
				}
				if c.setLocked(x, y, z, to) {
					changed++
				}
				// секция могла появиться или исчезнуть
				s = c.sections[sy]
			}
		}
	}
	return changed
}

// Count считает блоки id в локальном параллелепипеде
func (c *Chunk) Count(minX, maxX, minY, maxY, minZ, maxZ int, id BlockID) int {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	n := 0
	for y := minY; y <= maxY; y++ {
		sy, ly := c.split(y)
		s, ok := c.sections[sy]
		if !ok {
			if id == AirBlockID {
				n += (maxX - minX + 1) * (maxZ - minZ + 1)
			}
			continue
		}
		for z := minZ; z <= maxZ; z++ {
			for x := minX; x <= maxX; x++ {
				if s.blocks[sectionIndex(x, ly, z)] == id {
					n++
				}
			}
		}
	}
	return n
}

// HasChanges возвращает true, если в чанке есть изменения
func (c *Chunk) HasChanges() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return c.ChangeCounter > 0
}

func containsBlock(mask []BlockID, id BlockID) bool {
	for _, m := range mask {
		if m == id {
			return true
		}
	}
	return false
}
