package controller

import (
	"context"
	"fmt"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/registry"
)

// GetRecord возвращает запись региона, создавая значения по умолчанию
func (c *Controller) GetRecord(ctx context.Context, regionID string) (border.Record, error) {
	return c.store.GetOrCreate(ctx, regionID, c.opts.Defaults)
}

// load читает запись под блокировкой региона и инициализирует проекцию барьеров
func (c *Controller) load(ctx context.Context, l *lane) (border.Record, error) {
	rec, err := c.store.GetOrCreate(ctx, l.id, c.opts.Defaults)
	if err != nil {
		return border.Record{}, fmt.Errorf("чтение записи %s: %w", l.id, err)
	}
	l.ensurePlacement(rec, true)
	return rec, nil
}

// SetHeight устанавливает высоту плоскости.
// Логическое значение сохраняется сразу; правки барьеров идут в очередь региона.
func (c *Controller) SetHeight(ctx context.Context, regionID string, p border.Plane, value int) (int, *Pending, error) {
	var (
		result  int
		pending *Pending
	)
	err := c.withLane(regionID, func(l *lane) error {
		rec, err := c.load(ctx, l)
		if err != nil {
			return err
		}
		if err := border.ValidateHeight(rec, p, value, c.opts.Limits); err != nil {
			return err
		}
		result = value
		if rec.Height(p) == value {
			pending = resolvedPending(nil)
			return nil
		}

		rec = rec.WithHeight(p, value)
		c.store.Save(rec)
		pending = c.enqueue(l, kindReconcile, border.Footprint{})
		c.logger.Info("📏 %s: %s=%d", regionID, p, value)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return result, pending, nil
}

// AdjustHeight сдвигает плоскость на delta
func (c *Controller) AdjustHeight(ctx context.Context, regionID string, p border.Plane, delta int) (int, *Pending, error) {
	var (
		result  int
		pending *Pending
	)
	err := c.withLane(regionID, func(l *lane) error {
		rec, err := c.load(ctx, l)
		if err != nil {
			return err
		}
		value := rec.Height(p) + delta
		if err := border.ValidateHeight(rec, p, value, c.opts.Limits); err != nil {
			return err
		}
		result = value
		if delta == 0 {
			pending = resolvedPending(nil)
			return nil
		}

		c.store.Save(rec.WithHeight(p, value))
		pending = c.enqueue(l, kindReconcile, border.Footprint{})
		c.logger.Info("📏 %s: %s %+d → %d", regionID, p, delta, value)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return result, pending, nil
}

// Toggle переключает флаг и возвращает новое состояние
func (c *Controller) Toggle(ctx context.Context, regionID string, target border.ToggleTarget) (bool, *Pending, error) {
	var (
		state   bool
		pending *Pending
	)
	err := c.withLane(regionID, func(l *lane) error {
		rec, err := c.load(ctx, l)
		if err != nil {
			return err
		}
		switch target {
		case border.ToggleAll:
			rec.BorderEnabled = !rec.BorderEnabled
			state = rec.BorderEnabled
		case border.ToggleCeiling:
			rec.CeilingEnabled = !rec.CeilingEnabled
			state = rec.CeilingEnabled
		case border.ToggleFloor:
			rec.FloorEnabled = !rec.FloorEnabled
			state = rec.FloorEnabled
		default:
			return fmt.Errorf("неизвестный тип переключения %q", target)
		}

		c.store.Save(rec)
		pending = c.enqueue(l, kindReconcile, border.Footprint{})
		c.logger.Info("🔀 %s: %s → %t", regionID, target, state)
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return state, pending, nil
}

// Relocate переносит барьеры на текущую геометрию региона из реестра
func (c *Controller) Relocate(ctx context.Context, regionID string) (*Pending, error) {
	g, ok := c.registry.Geometry(regionID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", regionID, ErrUnknownRegion)
	}

	var pending *Pending
	err := c.withLane(regionID, func(l *lane) error {
		rec, err := c.load(ctx, l)
		if err != nil {
			return err
		}
		if !rec.BorderEnabled {
			return fmt.Errorf("%s: %w", regionID, ErrBorderDisabled)
		}
		if len(l.stale) == 0 && c.placedAt(l, rec, g) {
			return fmt.Errorf("%s (%s): %w", regionID, g, ErrNoChange)
		}

		l.target = &g
		pending = c.enqueue(l, kindReconcile, border.Footprint{})
		c.logger.Info("🚚 %s: перенос барьеров на %s", regionID, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// placedAt стоят (или встанут после очереди) ли барьеры на геометрии g
func (c *Controller) placedAt(l *lane, rec border.Record, g registry.Geometry) bool {
	if l.target != nil {
		return *l.target == g
	}
	if l.placed.known {
		return l.placed.footprint == g.Footprint()
	}
	return g.MatchesLast(rec)
}

// Refresh безусловно снимает и ставит барьеры на текущей геометрии
func (c *Controller) Refresh(ctx context.Context, regionID string) (*Pending, error) {
	g, ok := c.registry.Geometry(regionID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", regionID, ErrUnknownRegion)
	}

	var pending *Pending
	err := c.withLane(regionID, func(l *lane) error {
		if _, err := c.load(ctx, l); err != nil {
			return err
		}
		l.target = &g
		pending = c.enqueue(l, kindRefresh, border.Footprint{})
		c.logger.Info("🔄 %s: обновление барьеров на %s", regionID, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// OnRegionCreated создаёт запись по умолчанию и ставит барьеры на геометрии региона.
// Повторная доставка события не трогает уже существующую запись: высоты и
// переключатели оператора сохраняются, согласуется только геометрия.
func (c *Controller) OnRegionCreated(ctx context.Context, regionID string, g registry.Geometry) (*Pending, error) {
	var pending *Pending
	err := c.withLane(regionID, func(l *lane) error {
		rec, exists := c.store.Get(regionID)
		if !exists {
			var err error
			if rec, exists, err = c.store.Lookup(ctx, regionID); err != nil {
				return err
			}
		}
		l.ensurePlacement(rec, exists)

		if exists {
			c.logger.Debug("🔁 %s: запись уже есть, согласуется геометрия %s", regionID, g)
		} else {
			c.store.Save(border.NewRecord(regionID, c.opts.Defaults()))
			c.logger.Info("🆕 %s: граница создана на %s", regionID, g)
		}

		l.target = &g
		pending = c.enqueue(l, kindReconcile, border.Footprint{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// OnRegionDeleted снимает барьеры и удаляет запись.
// Барьеры, которые ни разу не ставились, не снимаются.
func (c *Controller) OnRegionDeleted(ctx context.Context, regionID string) (*Pending, error) {
	var pending *Pending
	err := c.withLane(regionID, func(l *lane) error {
		rec, exists := c.store.Get(regionID)
		l.ensurePlacement(rec, exists)

		c.store.Delete(regionID)
		l.target = nil
		if !l.placed.known && len(l.stale) == 0 && len(l.queue) == 0 && !l.running {
			pending = resolvedPending(nil)
		} else {
			pending = c.enqueue(l, kindRemove, border.Footprint{})
		}
		c.logger.Info("🗑️ %s: граница удалена", regionID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// OnRegionReset заменяет запись значениями по умолчанию и переставляет барьеры:
// старые объёмы снимаются до заполнения новых
func (c *Controller) OnRegionReset(ctx context.Context, regionID string, g registry.Geometry) (*Pending, error) {
	var pending *Pending
	err := c.withLane(regionID, func(l *lane) error {
		old, exists := c.store.Get(regionID)
		l.ensurePlacement(old, exists)

		rec := border.NewRecord(regionID, c.opts.Defaults())
		if exists {
			keepLocation(&rec, old)
		}
		c.store.Save(rec)

		l.target = &g
		pending = c.enqueue(l, kindRefresh, border.Footprint{})
		c.logger.Info("♻️ %s: граница сброшена, геометрия %s", regionID, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// keepLocation переносит учёт установленных барьеров из старой записи
func keepLocation(dst *border.Record, old border.Record) {
	if old.LocationInitialized {
		dst.UpdateLocation(old.LastWorld, old.LastCenterX, old.LastCenterZ, old.LastRange)
	}
}
