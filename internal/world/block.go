package world

import (
	"fmt"
	"strings"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Пустые (проходимые) блоки
	AirBlockID     BlockID = iota // 0
	CaveAirBlockID                // 1
	VoidAirBlockID                // 2

	// Твёрдые блоки
	StoneBlockID // 3
	GrassBlockID // 4
	DirtBlockID  // 5
	WaterBlockID // 6

	// Специальные блоки (начиная с 1000)
	BarrierBlockID BlockID = 1000 // Невидимый непроходимый барьер
	BedrockBlockID BlockID = 1001
)

var blockNames = map[BlockID]string{
	AirBlockID:     "air",
	CaveAirBlockID: "cave_air",
	VoidAirBlockID: "void_air",
	StoneBlockID:   "stone",
	GrassBlockID:   "grass",
	DirtBlockID:    "dirt",
	WaterBlockID:   "water",
	BarrierBlockID: "barrier",
	BedrockBlockID: "bedrock",
}

// PassableBlocks блоки, которые считаются пустыми при заполнении барьером
var PassableBlocks = []BlockID{AirBlockID, CaveAirBlockID, VoidAirBlockID}

func (b BlockID) String() string {
	if name, ok := blockNames[b]; ok {
		return name
	}
	return fmt.Sprintf("block#%d", uint16(b))
}

// IsPassable пустой ли блок (любой вид воздуха)
func (b BlockID) IsPassable() bool {
	return b == AirBlockID || b == CaveAirBlockID || b == VoidAirBlockID
}

// ParseBlock разбирает имя блока ("barrier", "minecraft:barrier")
func ParseBlock(name string) (BlockID, error) {
	name = strings.TrimPrefix(strings.ToLower(name), "minecraft:")
	for id, n := range blockNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("неизвестный блок %q", name)
}

// ParseBlocks разбирает список имён блоков
func ParseBlocks(names []string) ([]BlockID, error) {
	ids := make([]BlockID, 0, len(names))
	for _, n := range names {
		id, err := ParseBlock(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BlockNames возвращает имена блоков списка
func BlockNames(ids []BlockID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return names
}
