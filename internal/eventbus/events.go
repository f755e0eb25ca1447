package eventbus

import (
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/vec"
)

// Типы событий
const (
	// Жизненный цикл регионов (источник: реестр регионов)
	TypeRegionCreated = "RegionCreated"
	TypeRegionDeleted = "RegionDeleted"
	TypeRegionReset   = "RegionReset"
	TypeRegionMoved   = "RegionMoved"

	// Мир (источник: игровой сервер)
	TypeChunkLoaded = "ChunkLoaded"
	TypeActorMoved  = "ActorMoved"

	// Исходящие события сервиса границ
	TypeActorCorrected   = "ActorCorrected"
	TypeBorderEditFailed = "BorderEditFailed"
)

// SourceBorder имя этого сервиса в Envelope.Source
const SourceBorder = "vertical-border"

// RegionCreated регион создан
type RegionCreated struct {
	RegionID string            `json:"region_id"`
	Geometry registry.Geometry `json:"geometry"`
	Owner    string            `json:"owner,omitempty"`
	Members  []string          `json:"members,omitempty"`
}

// RegionDeleted регион удалён
type RegionDeleted struct {
	RegionID string `json:"region_id"`
}

// RegionReset регион сброшен (возможно, на новом месте)
type RegionReset struct {
	RegionID string            `json:"region_id"`
	Geometry registry.Geometry `json:"geometry"`
	Owner    string            `json:"owner,omitempty"`
	Members  []string          `json:"members,omitempty"`
}

// RegionMoved изменилась геометрия региона (центр или радиус)
type RegionMoved struct {
	RegionID string            `json:"region_id"`
	Geometry registry.Geometry `json:"geometry"`
}

// ChunkLoaded игровой сервер загрузил чанк
type ChunkLoaded struct {
	World  string `json:"world"`
	ChunkX int    `json:"chunk_x"`
	ChunkZ int    `json:"chunk_z"`
}

// ActorMoved актёр сменил позицию
type ActorMoved struct {
	ActorID string        `json:"actor_id"`
	World   string        `json:"world"`
	From    vec.Vec3Float `json:"from"`
	To      vec.Vec3Float `json:"to"`
	// Bypass актёр с правом обхода границ
	Bypass bool `json:"bypass,omitempty"`
}

// ActorCorrected актёр пересёк плоскость; Teleport=false означает только предупреждение
type ActorCorrected struct {
	ActorID  string        `json:"actor_id"`
	RegionID string        `json:"region_id"`
	World    string        `json:"world"`
	Plane    string        `json:"plane"`
	Teleport bool          `json:"teleport"`
	Position vec.Vec3Float `json:"position"`
	Message  string        `json:"message"`
}

// BorderEditFailed последовательность правок региона завершилась ошибкой
type BorderEditFailed struct {
	RegionID string `json:"region_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}
