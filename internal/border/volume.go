package border

import "fmt"

// Limits вертикальные пределы мира.
// MinY включительно, MaxY исключительно (как высота постройки в мире);
// допустимые значения высот границы лежат в [MinY, MaxY].
type Limits struct {
	MinY int
	MaxY int
}

// DefaultLimits пределы по умолчанию: -64..320
var DefaultLimits = Limits{MinY: -64, MaxY: 320}

// Contains попадает ли значение высоты в допустимый диапазон
func (l Limits) Contains(y int) bool {
	return y >= l.MinY && y <= l.MaxY
}

// TopBlock самый верхний существующий блок мира
func (l Limits) TopBlock() int {
	return l.MaxY - 1
}

// Footprint горизонтальный след региона (включительные границы)
type Footprint struct {
	World string
	MinX  int
	MaxX  int
	MinZ  int
	MaxZ  int
}

// FootprintAround строит квадратный след вокруг центра с заданным радиусом
func FootprintAround(world string, centerX, centerZ, radius int) Footprint {
	return Footprint{
		World: world,
		MinX:  centerX - radius,
		MaxX:  centerX + radius,
		MinZ:  centerZ - radius,
		MaxZ:  centerZ + radius,
	}
}

// Empty след не содержит ни одного столбца
func (f Footprint) Empty() bool {
	return f.MinX > f.MaxX || f.MinZ > f.MaxZ
}

// Contains содержит ли след столбец (x, z)
func (f Footprint) Contains(x, z int) bool {
	return x >= f.MinX && x <= f.MaxX && z >= f.MinZ && z <= f.MaxZ
}

// Intersect пересечение двух следов; ok=false, если пересечения нет
func (f Footprint) Intersect(other Footprint) (Footprint, bool) {
	if f.World != other.World {
		return Footprint{}, false
	}
	out := Footprint{
		World: f.World,
		MinX:  max(f.MinX, other.MinX),
		MaxX:  min(f.MaxX, other.MaxX),
		MinZ:  max(f.MinZ, other.MinZ),
		MaxZ:  min(f.MaxZ, other.MaxZ),
	}
	if out.Empty() {
		return Footprint{}, false
	}
	return out, true
}

// Slab вертикальный срез следа [minY, maxY]
func (f Footprint) Slab(minY, maxY int) Volume {
	return Volume{
		World: f.World,
		MinX:  f.MinX,
		MaxX:  f.MaxX,
		MinY:  minY,
		MaxY:  maxY,
		MinZ:  f.MinZ,
		MaxZ:  f.MaxZ,
	}
}

// CeilingVolume объём над потолком: [topY, верх мира]
func (f Footprint) CeilingVolume(topY int, l Limits) Volume {
	return f.Slab(topY, l.TopBlock()).Clamp(l)
}

// FloorVolume объём под полом: [низ мира, bottomY]
func (f Footprint) FloorVolume(bottomY int, l Limits) Volume {
	return f.Slab(l.MinY, bottomY).Clamp(l)
}

func (f Footprint) String() string {
	return fmt.Sprintf("%s[x %d..%d, z %d..%d]", f.World, f.MinX, f.MaxX, f.MinZ, f.MaxZ)
}

// Volume осевой параллелепипед с включительными границами
type Volume struct {
	World string `json:"world"`
	MinX  int    `json:"min_x"`
	MaxX  int    `json:"max_x"`
	MinY  int    `json:"min_y"`
	MaxY  int    `json:"max_y"`
	MinZ  int    `json:"min_z"`
	MaxZ  int    `json:"max_z"`
}

// Empty объём не содержит ни одного блока
func (v Volume) Empty() bool {
	return v.MinX > v.MaxX || v.MinY > v.MaxY || v.MinZ > v.MaxZ
}

// Blocks количество блоков в объёме
func (v Volume) Blocks() int64 {
	if v.Empty() {
		return 0
	}
	return int64(v.MaxX-v.MinX+1) * int64(v.MaxY-v.MinY+1) * int64(v.MaxZ-v.MinZ+1)
}

// Clamp обрезает объём по вертикальным пределам мира
func (v Volume) Clamp(l Limits) Volume {
	v.MinY = max(v.MinY, l.MinY)
	v.MaxY = min(v.MaxY, l.TopBlock())
	return v
}

// Contains содержит ли объём блок (x, y, z)
func (v Volume) Contains(x, y, z int) bool {
	return x >= v.MinX && x <= v.MaxX &&
		y >= v.MinY && y <= v.MaxY &&
		z >= v.MinZ && z <= v.MaxZ
}

// Footprint горизонтальная проекция объёма
func (v Volume) Footprint() Footprint {
	return Footprint{World: v.World, MinX: v.MinX, MaxX: v.MaxX, MinZ: v.MinZ, MaxZ: v.MaxZ}
}

func (v Volume) String() string {
	return fmt.Sprintf("%s[x %d..%d, y %d..%d, z %d..%d]",
		v.World, v.MinX, v.MaxX, v.MinY, v.MaxY, v.MinZ, v.MaxZ)
}
