package controller

import (
	"context"
	"fmt"

	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/registry"
)

// Handler обработчик событий жизненного цикла регионов.
// Controller реализует его; события приходят асинхронно и не упорядочены
// между разными регионами.
type Handler interface {
	OnRegionCreated(ctx context.Context, regionID string, g registry.Geometry) (*Pending, error)
	OnRegionDeleted(ctx context.Context, regionID string) (*Pending, error)
	OnRegionReset(ctx context.Context, regionID string, g registry.Geometry) (*Pending, error)
	OnChunkLoaded(world string, chunkX, chunkZ int)
}

var _ Handler = (*Controller)(nil)

// WorldFilter сообщает, исключён ли мир из обработки
type WorldFilter func(world string) bool

// SubscribeLifecycle подписывает обработчик на события реестра и мира.
// Зеркало реестра обновляется до вызова обработчика, чтобы контроллер
// видел актуальную геометрию. События исключённых миров только обновляют зеркало.
func SubscribeLifecycle(ctx context.Context, bus eventbus.EventBus, h Handler, mirror *registry.Mirror, skip WorldFilter) (eventbus.Subscription, error) {
	if skip == nil {
		skip = func(string) bool { return false }
	}
	logger := logging.GetComponentLogger("lifecycle")

	filter := eventbus.Filter{Types: []string{
		eventbus.TypeRegionCreated,
		eventbus.TypeRegionDeleted,
		eventbus.TypeRegionReset,
		eventbus.TypeRegionMoved,
		eventbus.TypeChunkLoaded,
	}}

	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		if err := dispatchLifecycle(ctx, ev, h, mirror, skip); err != nil {
			logger.Warn("⚠️ Событие %s %s не обработано: %v", ev.EventType, ev.ID, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("подписка на события реестра: %w", err)
	}
	logger.Info("📡 Подписка на события реестра активирована")
	return sub, nil
}

func dispatchLifecycle(ctx context.Context, ev *eventbus.Envelope, h Handler, mirror *registry.Mirror, skip WorldFilter) error {
	switch ev.EventType {
	case eventbus.TypeRegionCreated:
		var p eventbus.RegionCreated
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if err := p.Geometry.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.RegionID, err)
		}
		mirror.Upsert(registry.Region{ID: p.RegionID, Geometry: p.Geometry, Owner: p.Owner, Members: p.Members})
		if skip(p.Geometry.World) {
			return nil
		}
		_, err := h.OnRegionCreated(ctx, p.RegionID, p.Geometry)
		return err

	case eventbus.TypeRegionDeleted:
		var p eventbus.RegionDeleted
		if err := ev.Decode(&p); err != nil {
			return err
		}
		g, known := mirror.Geometry(p.RegionID)
		mirror.Remove(p.RegionID)
		if known && skip(g.World) {
			return nil
		}
		_, err := h.OnRegionDeleted(ctx, p.RegionID)
		return err

	case eventbus.TypeRegionReset:
		var p eventbus.RegionReset
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if err := p.Geometry.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.RegionID, err)
		}
		mirror.Upsert(registry.Region{ID: p.RegionID, Geometry: p.Geometry, Owner: p.Owner, Members: p.Members})
		if skip(p.Geometry.World) {
			return nil
		}
		_, err := h.OnRegionReset(ctx, p.RegionID, p.Geometry)
		return err

	case eventbus.TypeRegionMoved:
		// Барьеры переносятся только командой update
		var p eventbus.RegionMoved
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if err := p.Geometry.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.RegionID, err)
		}
		if !mirror.Move(p.RegionID, p.Geometry) {
			return fmt.Errorf("%s: %w", p.RegionID, ErrUnknownRegion)
		}
		return nil

	case eventbus.TypeChunkLoaded:
		var p eventbus.ChunkLoaded
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if !skip(p.World) {
			h.OnChunkLoaded(p.World, p.ChunkX, p.ChunkZ)
		}
		return nil
	}
	return nil
}

// BusNotifier публикует отказы правок в шину событий
type BusNotifier struct {
	bus    eventbus.EventBus
	logger *logging.Logger
}

// NewBusNotifier создаёт уведомитель поверх шины
func NewBusNotifier(bus eventbus.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logging.GetControllerLogger()}
}

// EditFailed публикует BorderEditFailed
func (n *BusNotifier) EditFailed(ctx context.Context, regionID, kind string, err error) {
	ev, encErr := eventbus.NewEnvelope(eventbus.TypeBorderEditFailed, eventbus.SourceBorder, 7, eventbus.BorderEditFailed{
		RegionID: regionID,
		Kind:     kind,
		Error:    err.Error(),
	})
	if encErr != nil {
		n.logger.Error("❌ Уведомление об отказе %s: %v", regionID, encErr)
		return
	}
	ev.CorrelationID = regionID
	if pubErr := n.bus.Publish(ctx, ev); pubErr != nil {
		n.logger.Warn("⚠️ Уведомление об отказе %s не отправлено: %v", regionID, pubErr)
	}
}
