package world

import (
	"testing"

	"github.com/annel0/vertical-border/internal/vec"
)

func TestChunkCreateAndGetBlock(t *testing.T) {
	coords := vec.Vec2{X: 5, Z: 10}
	chunk := NewChunk(coords, -64)

	// Проверяем координаты
	if chunk.Coords.X != 5 || chunk.Coords.Z != 10 {
		t.Errorf("Ожидались координаты {5,10}, получено {%d,%d}", chunk.Coords.X, chunk.Coords.Z)
	}

	// Проверяем, что блоки инициализированы как пустые
	if id := chunk.GetBlock(3, 70, 4); id != AirBlockID {
		t.Errorf("Ожидался пустой блок (AirBlockID), получен %s", id)
	}

	// Устанавливаем и проверяем блок
	chunk.SetBlock(3, 70, 4, StoneBlockID)
	if id := chunk.GetBlock(3, 70, 4); id != StoneBlockID {
		t.Errorf("Ожидался StoneBlockID, получен %s", id)
	}
	if !chunk.HasChanges() {
		t.Error("Ожидались изменения в чанке")
	}
}

func TestChunkSectionsAreReleased(t *testing.T) {
	chunk := NewChunk(vec.Vec2{}, -64)

	chunk.SetBlock(0, -64, 0, StoneBlockID)
	chunk.SetBlock(15, 319, 15, StoneBlockID)
	if len(chunk.sections) != 2 {
		t.Fatalf("Ожидалось 2 секции, получено %d", len(chunk.sections))
	}

	chunk.SetBlock(0, -64, 0, AirBlockID)
	if len(chunk.sections) != 1 {
		t.Errorf("Пустая секция должна удаляться, секций %d", len(chunk.sections))
	}
}

func TestChunkReplaceWithMask(t *testing.T) {
	chunk := NewChunk(vec.Vec2{}, -64)
	chunk.SetBlock(1, 100, 1, StoneBlockID)
	chunk.SetBlock(2, 100, 2, CaveAirBlockID)

	// 4x2x4 = 32 ячейки, одна из них камень
	changed := chunk.Replace(0, 3, 100, 101, 0, 3, PassableBlocks, BarrierBlockID)
	if changed != 31 {
		t.Errorf("Ожидалась замена 31 блока, получено %d", changed)
	}
	if id := chunk.GetBlock(1, 100, 1); id != StoneBlockID {
		t.Errorf("Камень не должен заменяться, получен %s", id)
	}

	// Повторная замена ничего не меняет
	if changed := chunk.Replace(0, 3, 100, 101, 0, 3, PassableBlocks, BarrierBlockID); changed != 0 {
		t.Errorf("Повторная замена изменила %d блоков", changed)
	}

	cleared := chunk.Replace(0, 15, -64, 319, 0, 15, []BlockID{BarrierBlockID}, AirBlockID)
	if cleared != 31 {
		t.Errorf("Ожидалась очистка 31 барьера, получено %d", cleared)
	}
	if n := chunk.Count(0, 15, -64, 319, 0, 15, StoneBlockID); n != 1 {
		t.Errorf("Ожидался 1 блок камня, получено %d", n)
	}
}
