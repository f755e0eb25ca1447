// Package registry отражает внешний реестр регионов (claim registry):
// геометрию, участников и поиск региона по точке. Движок границ только
// читает реестр; изменения приходят событиями жизненного цикла.
package registry

import (
	"fmt"

	"github.com/annel0/vertical-border/internal/border"
)

// Geometry текущая геометрия региона во внешнем реестре
type Geometry struct {
	World   string `json:"world"`
	CenterX int    `json:"center_x"`
	CenterZ int    `json:"center_z"`
	Radius  int    `json:"radius"` // радиус защиты
}

// Footprint горизонтальный след региона
func (g Geometry) Footprint() border.Footprint {
	return border.FootprintAround(g.World, g.CenterX, g.CenterZ, g.Radius)
}

// Validate проверяет геометрию из события
func (g Geometry) Validate() error {
	if g.World == "" {
		return fmt.Errorf("пустое имя мира")
	}
	if g.Radius < 0 {
		return fmt.Errorf("отрицательный радиус %d", g.Radius)
	}
	return nil
}

// MatchesLast совпадает ли геометрия с последней установкой записи
func (g Geometry) MatchesLast(r border.Record) bool {
	return r.SameLocation(g.World, g.CenterX, g.CenterZ, g.Radius)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%s@(%d,%d)r%d", g.World, g.CenterX, g.CenterZ, g.Radius)
}

// Registry узкий интерфейс чтения реестра регионов
type Registry interface {
	// Geometry текущая геометрия региона; ok=false для неизвестного региона
	Geometry(regionID string) (Geometry, bool)
	// RegionAt регион, которому принадлежит столбец (x, z) мира
	RegionAt(world string, x, z int) (string, bool)
	// RegionsInChunk регионы, след которых задевает чанк, по возрастанию id
	RegionsInChunk(world string, chunkX, chunkZ int) []string
	// IsMember является ли актёр владельцем или участником региона
	IsMember(regionID, actorID string) bool
}
