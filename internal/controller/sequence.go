package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/edit"
	"github.com/annel0/vertical-border/internal/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type taskKind int

const (
	// kindReconcile привести барьеры к записи минимальной правкой
	kindReconcile taskKind = iota
	// kindRefresh безусловно снять и поставить барьеры заново
	kindRefresh
	// kindRemove снять барьеры удалённого региона
	kindRemove
	// kindRepair дозаполнить барьеры в загруженном чанке
	kindRepair
)

func (k taskKind) String() string {
	switch k {
	case kindReconcile:
		return "reconcile"
	case kindRefresh:
		return "refresh"
	case kindRemove:
		return "remove"
	case kindRepair:
		return "repair"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type task struct {
	kind    taskKind
	chunk   border.Footprint // только для kindRepair
	waiters []*Pending
}

// placement проекция физически установленных барьеров региона
type placement struct {
	known     bool
	footprint border.Footprint
	top       int
	bottom    int
	ceiling   bool
	floor     bool
}

func (p placement) any() bool {
	return p.known && (p.ceiling || p.floor)
}

// volumes полные объёмы обеих плоскостей независимо от флагов
func (p placement) volumes(l border.Limits) []border.Volume {
	if !p.known {
		return nil
	}
	return []border.Volume{
		p.footprint.CeilingVolume(p.top, l),
		p.footprint.FloorVolume(p.bottom, l),
	}
}

// active объёмы включённых плоскостей
func (p placement) active(l border.Limits) []border.Volume {
	if !p.known {
		return nil
	}
	var out []border.Volume
	if p.ceiling {
		out = append(out, p.footprint.CeilingVolume(p.top, l))
	}
	if p.floor {
		out = append(out, p.footprint.FloorVolume(p.bottom, l))
	}
	return out
}

// sequence спланированная последовательность: сначала все очистки, потом заполнения
type sequence struct {
	kind   taskKind
	clears []border.Volume
	fills  []border.Volume

	from placement
	to   placement
	// moves меняет ли последовательность проекцию установленных барьеров
	moves bool
	// target геометрия переноса, использованная при планировании
	target *registry.Geometry
}

func (s *sequence) empty() bool {
	return len(s.clears) == 0 && len(s.fills) == 0
}

// plan строит последовательность по текущему состоянию (l.mu удерживается)
func (c *Controller) plan(l *lane, t *task) *sequence {
	lim := c.opts.Limits
	seq := &sequence{kind: t.kind, from: l.placed, to: l.placed}

	switch t.kind {
	case kindRemove:
		seq.clears = appendUnique(seq.clears, l.stale...)
		seq.clears = appendUnique(seq.clears, l.placed.volumes(lim)...)
		seq.to = placement{}
		seq.moves = true
		return seq

	case kindRepair:
		if len(l.stale) > 0 || !l.placed.any() {
			return seq
		}
		inter, ok := t.chunk.Intersect(l.placed.footprint)
		if !ok {
			return seq
		}
		part := l.placed
		part.footprint = inter
		seq.fills = part.active(lim)
		return seq
	}

	rec, ok := c.store.Get(l.id)
	if !ok {
		// Запись удалена: очередь снятия уже стоит следом
		return seq
	}
	fp, ok := c.desiredFootprint(l)
	if !ok {
		c.logger.Debug("🤷 %s: геометрия неизвестна, правки пропущены", l.id)
		return seq
	}

	to := placement{
		known:     true,
		footprint: fp,
		top:       rec.TopY,
		bottom:    rec.BottomY,
		ceiling:   rec.CeilingActive(),
		floor:     rec.FloorActive(),
	}
	seq.to = to
	seq.moves = true
	seq.target = l.target

	from := l.placed
	full := t.kind == kindRefresh || len(l.stale) > 0 || !from.known || from.footprint != to.footprint
	if full {
		seq.clears = appendUnique(seq.clears, l.stale...)
		seq.clears = appendUnique(seq.clears, from.volumes(lim)...)
		if t.kind == kindRefresh {
			seq.clears = appendUnique(seq.clears, to.active(lim)...)
		}
		seq.fills = to.active(lim)
		return seq
	}

	seq.clears, seq.fills = diffPlanes(from, to, lim)
	return seq
}

// desiredFootprint: цель переноса, затем след установленных барьеров,
// затем текущая геометрия реестра. Регион, неизвестный реестру и без
// установленных барьеров, не получает заполнения.
func (c *Controller) desiredFootprint(l *lane) (border.Footprint, bool) {
	if l.target != nil {
		return l.target.Footprint(), true
	}
	if l.placed.known {
		return l.placed.footprint, true
	}
	if g, ok := c.registry.Geometry(l.id); ok {
		return g.Footprint(), true
	}
	return border.Footprint{}, false
}

// diffPlanes минимальные правки при неизменном следе.
// Новый объём плоскости либо надмножество старого (дозаполнить срез),
// либо подмножество (очистить освободившийся срез).
func diffPlanes(from, to placement, lim border.Limits) (clears, fills []border.Volume) {
	fp := to.footprint
	add := func(dst *[]border.Volume, v border.Volume) {
		if v = v.Clamp(lim); !v.Empty() {
			*dst = append(*dst, v)
		}
	}

	switch {
	case from.ceiling && to.ceiling:
		if to.top < from.top {
			add(&fills, fp.Slab(to.top, from.top-1))
		} else if to.top > from.top {
			add(&clears, fp.Slab(from.top, to.top-1))
		}
	case !from.ceiling && to.ceiling:
		add(&fills, fp.CeilingVolume(to.top, lim))
	case from.ceiling && !to.ceiling:
		add(&clears, fp.CeilingVolume(from.top, lim))
	}

	switch {
	case from.floor && to.floor:
		if to.bottom > from.bottom {
			add(&fills, fp.Slab(from.bottom+1, to.bottom))
		} else if to.bottom < from.bottom {
			add(&clears, fp.Slab(to.bottom+1, from.bottom))
		}
	case !from.floor && to.floor:
		add(&fills, fp.FloorVolume(to.bottom, lim))
	case from.floor && !to.floor:
		add(&clears, fp.FloorVolume(from.bottom, lim))
	}
	return clears, fills
}

func appendUnique(dst []border.Volume, vs ...border.Volume) []border.Volume {
next:
	for _, v := range vs {
		if v.Empty() {
			continue
		}
		for _, d := range dst {
			if d == v {
				continue next
			}
		}
		dst = append(dst, v)
	}
	return dst
}

// execute выполняет последовательность вне блокировки региона
func (c *Controller) execute(regionID string, seq *sequence) error {
	if seq.empty() {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.EditTimeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "border.sequence", trace.WithAttributes(
		attribute.String("region.id", regionID),
		attribute.String("sequence.kind", seq.kind.String()),
		attribute.Int("sequence.clears", len(seq.clears)),
		attribute.Int("sequence.fills", len(seq.fills)),
	))
	defer span.End()

	cleared, err := c.phase(ctx, seq.clears, c.engine.ClearBarrier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		return fmt.Errorf("очистка: %w", err)
	}
	filled, err := c.phase(ctx, seq.fills, c.engine.FillWithBarrier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill failed")
		return fmt.Errorf("заполнение: %w", err)
	}

	span.SetAttributes(attribute.Int("blocks.cleared", cleared), attribute.Int("blocks.filled", filled))
	c.logger.Debug("🧱 %s %s: снято %d, поставлено %d блоков", regionID, seq.kind, cleared, filled)
	return nil
}

// cancelWait сколько ждать остановки правки после отмены по таймауту
const cancelWait = time.Second

// phase запускает правки параллельно и ждёт все. После первой ошибки
// остальные правки фазы отменяются. По таймауту ctx правки отменяются и
// ожидаются ещё не дольше cancelWait.
func (c *Controller) phase(ctx context.Context, vols []border.Volume, op func(context.Context, border.Volume) *edit.Future) (int, error) {
	if len(vols) == 0 {
		return 0, nil
	}
	opCtx, cancelOps := context.WithCancel(ctx)
	defer cancelOps()

	counts := make([]int, len(vols))
	var g errgroup.Group
	for i, v := range vols {
		i, f := i, op(opCtx, v)
		g.Go(func() error {
			select {
			case <-f.Done():
			case <-ctx.Done():
				cancelOps()
				select {
				case <-f.Done():
				case <-time.After(cancelWait):
					c.logger.Warn("⚠️ Правка %s не остановилась за %v после отмены", v, cancelWait)
				}
				return ctx.Err()
			}
			n, err, _ := f.Result()
			counts[i] = n
			if err != nil {
				cancelOps()
			}
			return err
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}

// finish применяет итог последовательности (l.mu удерживается)
func (c *Controller) finish(l *lane, seq *sequence, err error) {
	if err != nil {
		// Исход неизвестен: при следующей последовательности всё затронутое
		// будет снято целиком
		lim := c.opts.Limits
		l.stale = appendUnique(l.stale, seq.clears...)
		l.stale = appendUnique(l.stale, seq.fills...)
		l.stale = appendUnique(l.stale, seq.from.volumes(lim)...)
		l.stale = appendUnique(l.stale, seq.to.volumes(lim)...)
		if seq.moves {
			l.placed = seq.to
		}
		return
	}

	if seq.kind == kindRepair {
		return
	}
	if !seq.empty() || seq.moves {
		l.stale = nil
	}
	if !seq.moves {
		return
	}
	l.placed = seq.to
	if seq.target != nil && l.target == seq.target {
		l.target = nil
	}

	// Запоминаем место установки; запись перечитывается, чтобы не затереть
	// изменения, сделанные во время правки
	if !seq.to.known {
		return
	}
	rec, ok := c.store.Get(l.id)
	if !ok {
		return
	}
	fp := seq.to.footprint
	cx, cz, r := (fp.MinX+fp.MaxX)/2, (fp.MinZ+fp.MaxZ)/2, (fp.MaxX-fp.MinX)/2
	if rec.SameLocation(fp.World, cx, cz, r) {
		return
	}
	rec.UpdateLocation(fp.World, cx, cz, r)
	c.store.Save(rec)
}
