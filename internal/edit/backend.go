package edit

import (
	"context"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/world"
)

// Backend массовая замена блоков по маске внутри объёма.
// Реализации: world.Universe (в памяти) и NATSBackend (удалённый игровой сервер).
type Backend interface {
	ReplaceBlocks(ctx context.Context, v border.Volume, mask []world.BlockID, to world.BlockID) (int, error)
}

var (
	// fillMask заполнение трогает только пустые блоки
	fillMask = world.PassableBlocks
	// clearMask очистка трогает только барьеры
	clearMask = []world.BlockID{world.BarrierBlockID}
)
