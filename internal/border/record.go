// Package border содержит модель данных вертикальной границы региона:
// запись с высотами потолка и пола, флаги включения и геометрию
// последней физической установки барьеров.
package border

import "fmt"

// Plane выбирает плоскость границы
type Plane string

const (
	PlaneTop    Plane = "top"
	PlaneBottom Plane = "bottom"
)

// ParsePlane разбирает "top"/"bottom"
func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case PlaneTop, PlaneBottom:
		return Plane(s), nil
	}
	return "", fmt.Errorf("неизвестная плоскость %q (ожидается top|bottom)", s)
}

// ToggleTarget выбирает переключаемый флаг
type ToggleTarget string

const (
	ToggleAll     ToggleTarget = "all"
	ToggleCeiling ToggleTarget = "ceiling"
	ToggleFloor   ToggleTarget = "floor"
)

// ParseToggleTarget разбирает "all"/"ceiling"/"floor"
func ParseToggleTarget(s string) (ToggleTarget, error) {
	switch ToggleTarget(s) {
	case ToggleAll, ToggleCeiling, ToggleFloor:
		return ToggleTarget(s), nil
	}
	return "", fmt.Errorf("неизвестный тип переключения %q (ожидается all|ceiling|floor)", s)
}

// Defaults значения для новых записей (из глобальной конфигурации)
type Defaults struct {
	TopY           int
	BottomY        int
	CeilingEnabled bool
	FloorEnabled   bool
}

// DefaultsProvider отдаёт актуальные значения по умолчанию.
// Конфигурация может перезагружаться, поэтому значения читаются при каждом создании.
type DefaultsProvider func() Defaults

// Record конфигурация вертикальной границы одного региона.
//
// Last* описывают, где барьеры физически были установлены последний раз.
// Это не текущая геометрия региона: она принадлежит реестру регионов.
type Record struct {
	RegionID       string `json:"unique_id" bson:"_id"`
	TopY           int    `json:"top_y" bson:"top_y"`
	BottomY        int    `json:"bottom_y" bson:"bottom_y"`
	BorderEnabled  bool   `json:"border_enabled" bson:"border_enabled"`
	CeilingEnabled bool   `json:"ceiling_enabled" bson:"ceiling_enabled"`
	FloorEnabled   bool   `json:"floor_enabled" bson:"floor_enabled"`

	LastCenterX         int    `json:"last_center_x" bson:"last_center_x"`
	LastCenterZ         int    `json:"last_center_z" bson:"last_center_z"`
	LastRange           int    `json:"last_protection_range" bson:"last_protection_range"`
	LastWorld           string `json:"last_world,omitempty" bson:"last_world,omitempty"`
	LocationInitialized bool   `json:"location_initialized" bson:"location_initialized"`
}

// NewRecord создаёт запись с значениями по умолчанию.
// Граница включена; геометрия не инициализирована.
func NewRecord(regionID string, d Defaults) Record {
	return Record{
		RegionID:       regionID,
		TopY:           d.TopY,
		BottomY:        d.BottomY,
		BorderEnabled:  true,
		CeilingEnabled: d.CeilingEnabled,
		FloorEnabled:   d.FloorEnabled,
	}
}

// CeilingActive потолок действует (граница включена и потолок включён)
func (r Record) CeilingActive() bool {
	return r.BorderEnabled && r.CeilingEnabled
}

// FloorActive пол действует (граница включена и пол включён)
func (r Record) FloorActive() bool {
	return r.BorderEnabled && r.FloorEnabled
}

// HeightRange расстояние между потолком и полом
func (r Record) HeightRange() int {
	return r.TopY - r.BottomY
}

// Height возвращает высоту выбранной плоскости
func (r Record) Height(p Plane) int {
	if p == PlaneTop {
		return r.TopY
	}
	return r.BottomY
}

// LastFootprint возвращает горизонтальный след последней установки.
// ok=false, если барьеры ещё ни разу не ставились.
func (r Record) LastFootprint() (Footprint, bool) {
	if !r.LocationInitialized {
		return Footprint{}, false
	}
	return FootprintAround(r.LastWorld, r.LastCenterX, r.LastCenterZ, r.LastRange), true
}

// UpdateLocation запоминает геометрию, на которой барьеры установлены
func (r *Record) UpdateLocation(world string, centerX, centerZ, rng int) {
	r.LastWorld = world
	r.LastCenterX = centerX
	r.LastCenterZ = centerZ
	r.LastRange = rng
	r.LocationInitialized = true
}

// SameLocation совпадает ли последняя установка с указанной геометрией
func (r Record) SameLocation(world string, centerX, centerZ, rng int) bool {
	return r.LocationInitialized &&
		r.LastWorld == world &&
		r.LastCenterX == centerX &&
		r.LastCenterZ == centerZ &&
		r.LastRange == rng
}
