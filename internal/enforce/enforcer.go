// Package enforce удерживает актёров между полом и потолком региона.
// Проверка опирается только на логическую запись границы и не зависит
// от того, стоят ли физические барьеры.
package enforce

import (
	"sync/atomic"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/metrics"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"github.com/annel0/vertical-border/internal/vec"
)

// Ключи сообщений для игрового клиента
const (
	MessageHitCeiling = "verticalborder.messages.hit-ceiling"
	MessageHitFloor   = "verticalborder.messages.hit-floor"
)

// Settings параметры реакции на пересечение; меняются при перезагрузке конфигурации
type Settings struct {
	// TeleportBack возвращать актёра; иначе только сообщение
	TeleportBack bool
	// TeleportDistance отступ от плоскости при возврате
	TeleportDistance int
	Defaults         border.DefaultsProvider
}

// Move перемещение актёра
type Move struct {
	ActorID string
	World   string
	From    vec.Vec3Float
	To      vec.Vec3Float
	Bypass  bool
}

// Correction реакция на пересечение плоскости
type Correction struct {
	RegionID string
	Plane    border.Plane
	// Teleport=true: Position содержит безопасную позицию
	Teleport bool
	Position vec.Vec3Float
	Message  string
}

// Enforcer проверяет перемещения актёров
type Enforcer struct {
	store    *storage.BoundaryStore
	registry registry.Registry
	settings atomic.Pointer[Settings]
	metrics  *metrics.BorderMetrics
	logger   *logging.Logger
}

// New создаёт контролёр перемещений
func New(store *storage.BoundaryStore, reg registry.Registry, s Settings, m *metrics.BorderMetrics) *Enforcer {
	e := &Enforcer{
		store:    store,
		registry: reg,
		metrics:  m,
		logger:   logging.GetComponentLogger("enforce"),
	}
	e.SetSettings(s)
	return e
}

// SetSettings заменяет параметры (перезагрузка конфигурации)
func (e *Enforcer) SetSettings(s Settings) {
	e.settings.Store(&s)
}

// Check проверяет перемещение. Вызывается из горячего цикла: читает только
// кэш записей и никогда не инициирует правок мира.
func (e *Enforcer) Check(m Move) (Correction, bool) {
	from, to := m.From.Block(), m.To.Block()
	if from.Equals(to) || m.Bypass {
		return Correction{}, false
	}

	regionID, ok := e.registry.RegionAt(m.World, to.X, to.Z)
	if !ok {
		return Correction{}, false
	}

	s := e.settings.Load()
	rec, ok := e.store.Get(regionID)
	if !ok {
		if s.Defaults == nil {
			return Correction{}, false
		}
		rec = border.NewRecord(regionID, s.Defaults())
	}
	if !rec.BorderEnabled {
		return Correction{}, false
	}

	var (
		plane   border.Plane
		safeY   int
		message string
	)
	switch {
	case rec.CeilingEnabled && to.Y >= rec.TopY:
		plane, safeY, message = border.PlaneTop, rec.TopY-s.TeleportDistance, MessageHitCeiling
	case rec.FloorEnabled && to.Y <= rec.BottomY:
		plane, safeY, message = border.PlaneBottom, rec.BottomY+s.TeleportDistance, MessageHitFloor
	default:
		return Correction{}, false
	}

	c := Correction{RegionID: regionID, Plane: plane, Teleport: s.TeleportBack, Position: m.To, Message: message}
	if s.TeleportBack {
		c.Position = m.To.WithY(float64(safeY))
	}
	e.metrics.Correction(string(plane))
	e.logger.Trace("🚧 %s пересёк %s региона %s на y=%d", m.ActorID, plane, regionID, to.Y)
	return c, true
}
