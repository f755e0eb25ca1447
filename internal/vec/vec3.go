package vec

import "math"

// Vec3 представляет блочную позицию в мире
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет точную позицию актёра
type Vec3Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Horizontal возвращает проекцию на плоскость XZ
func (v Vec3) Horizontal() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// ToFloat центр блока по горизонтали, низ блока по вертикали
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X) + 0.5, Y: float64(v.Y), Z: float64(v.Z) + 0.5}
}

// Block возвращает блок, в котором находится точка (округление вниз)
func (v Vec3Float) Block() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// WithY возвращает копию позиции с другой высотой
func (v Vec3Float) WithY(y float64) Vec3Float {
	v.Y = y
	return v
}
