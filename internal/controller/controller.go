// Package controller согласует логическую конфигурацию вертикальных границ
// с физическими барьерами. Изменения записей применяются сразу, а правки
// объёмов выстраиваются в очередь региона и выполняются строго по одной:
// очистка старого объёма всегда завершается до заполнения нового.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/edit"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/metrics"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Notifier получает отказы физических правок (для уведомления инициатора)
type Notifier interface {
	EditFailed(ctx context.Context, regionID, kind string, err error)
}

// Options параметры контроллера
type Options struct {
	Limits   border.Limits
	Defaults border.DefaultsProvider
	// EditTimeout ограничивает одну последовательность очистка→заполнение
	EditTimeout time.Duration
	// ChunkDebounce задержка починки загруженного чанка
	ChunkDebounce time.Duration
	// RepairOnChunkLoad чинить барьеры в загружаемых чанках
	RepairOnChunkLoad bool

	Metrics  *metrics.BorderMetrics
	Notifier Notifier
}

// Controller оркестрирует записи границ и правки объёмов
type Controller struct {
	store    *storage.BoundaryStore
	engine   *edit.Engine
	registry registry.Registry
	opts     Options
	repair   atomic.Bool

	metrics *metrics.BorderMetrics
	logger  *logging.Logger
	tracer  trace.Tracer

	lanesMu sync.Mutex
	lanes   map[string]*lane

	chunksMu sync.Mutex
	chunks   map[chunkKey]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New создаёт контроллер
func New(store *storage.BoundaryStore, engine *edit.Engine, reg registry.Registry, opts Options) (*Controller, error) {
	if store == nil || engine == nil || reg == nil {
		return nil, errors.New("controller: store, engine и registry обязательны")
	}
	if opts.Defaults == nil {
		return nil, errors.New("controller: не задан источник значений по умолчанию")
	}
	if opts.Limits == (border.Limits{}) {
		opts.Limits = border.DefaultLimits
	}
	if opts.Limits.MinY >= opts.Limits.MaxY {
		return nil, fmt.Errorf("controller: неверные пределы мира %d..%d", opts.Limits.MinY, opts.Limits.MaxY)
	}
	if opts.EditTimeout <= 0 {
		opts.EditTimeout = 5 * time.Minute
	}
	if opts.ChunkDebounce <= 0 {
		opts.ChunkDebounce = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:    store,
		engine:   engine,
		registry: reg,
		opts:     opts,
		metrics:  opts.Metrics,
		logger:   logging.GetControllerLogger(),
		tracer:   otel.Tracer("vertical-border/controller"),
		lanes:    make(map[string]*lane),
		chunks:   make(map[chunkKey]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.repair.Store(opts.RepairOnChunkLoad)
	return c, nil
}

// Limits вертикальные пределы мира
func (c *Controller) Limits() border.Limits {
	return c.opts.Limits
}

// SetRepairOnChunkLoad включает или выключает починку чанков (перезагрузка конфигурации)
func (c *Controller) SetRepairOnChunkLoad(enabled bool) {
	c.repair.Store(enabled)
}

// Close прекращает приём операций и ждёт завершения очередей.
// Если ctx истекает раньше, выполняющиеся правки отменяются.
func (c *Controller) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.chunksMu.Lock()
	for key, t := range c.chunks {
		t.Stop()
		delete(c.chunks, key)
	}
	c.chunksMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return fmt.Errorf("остановка контроллера: %w", ctx.Err())
	}
}

// lane очередь физических правок одного региона.
// mu охватывает все изменения записи региона и состояние очереди.
type lane struct {
	id   string
	refs atomic.Int32

	mu      sync.Mutex
	queue   []*task
	current *task
	running bool

	initialized bool
	placed      placement
	// stale объёмы, состояние которых неизвестно после неудачной правки
	stale []border.Volume
	// target геометрия, на которую следует перенести барьеры
	target *registry.Geometry
}

func (l *lane) idle() bool {
	return !l.running && len(l.queue) == 0 && len(l.stale) == 0 && l.target == nil
}

// acquire возвращает очередь региона, создавая её при необходимости
func (c *Controller) acquire(regionID string) *lane {
	c.lanesMu.Lock()
	defer c.lanesMu.Unlock()

	l, ok := c.lanes[regionID]
	if !ok {
		l = &lane{id: regionID}
		c.lanes[regionID] = l
		c.metrics.LaneOpened()
	}
	l.refs.Add(1)
	return l
}

// release освобождает ссылку; простаивающая очередь удаляется
func (c *Controller) release(l *lane) {
	c.lanesMu.Lock()
	defer c.lanesMu.Unlock()

	if l.refs.Add(-1) > 0 {
		return
	}
	l.mu.Lock()
	idle := l.idle()
	l.mu.Unlock()
	if idle && c.lanes[l.id] == l {
		delete(c.lanes, l.id)
		c.metrics.LaneClosed()
	}
}

// withLane выполняет fn под блокировкой региона
func (c *Controller) withLane(regionID string, fn func(l *lane) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	l := c.acquire(regionID)
	defer c.release(l)

	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l)
}

// ensurePlacement инициализирует проекцию установленных барьеров из записи.
// Вызывается до любого изменения записи.
func (l *lane) ensurePlacement(rec border.Record, exists bool) {
	if l.initialized {
		return
	}
	l.initialized = true
	if !exists {
		return
	}
	fp, ok := rec.LastFootprint()
	if !ok {
		return
	}
	l.placed = placement{
		known:     true,
		footprint: fp,
		top:       rec.TopY,
		bottom:    rec.BottomY,
		ceiling:   rec.CeilingActive(),
		floor:     rec.FloorActive(),
	}
}

// enqueue ставит задачу в очередь региона (l.mu удерживается).
// Согласование присоединяется к последней ожидающей задаче, если та
// тоже согласование или обновление; задача планируется при запуске.
func (c *Controller) enqueue(l *lane, kind taskKind, chunk border.Footprint) *Pending {
	p := newPending()

	if n := len(l.queue); n > 0 && (kind == kindReconcile || kind == kindRefresh) {
		last := l.queue[n-1]
		if last.kind == kindReconcile || last.kind == kindRefresh {
			if kind == kindRefresh {
				last.kind = kindRefresh
			}
			last.waiters = append(last.waiters, p)
			return p
		}
	}

	l.queue = append(l.queue, &task{kind: kind, chunk: chunk, waiters: []*Pending{p}})
	c.metrics.Queued(1)

	if !l.running {
		l.running = true
		l.refs.Add(1)
		c.wg.Add(1)
		go c.drain(l)
	}
	return p
}

// sync возвращает ожидание всех уже поставленных задач региона
func (l *lane) sync() *Pending {
	if n := len(l.queue); n > 0 {
		p := newPending()
		l.queue[n-1].waiters = append(l.queue[n-1].waiters, p)
		return p
	}
	if l.running && l.current != nil {
		p := newPending()
		l.current.waiters = append(l.current.waiters, p)
		return p
	}
	return resolvedPending(nil)
}

// Sync ждёт завершения всех последовательностей региона, поставленных до вызова
func (c *Controller) Sync(ctx context.Context, regionID string) error {
	var p *Pending
	err := c.withLane(regionID, func(l *lane) error {
		p = l.sync()
		return nil
	})
	if err != nil {
		return err
	}
	return p.Wait(ctx)
}

func (c *Controller) drain(l *lane) {
	defer c.wg.Done()
	defer c.release(l)

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.current = nil
			l.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		l.current = t
		c.metrics.Queued(-1)
		seq := c.plan(l, t)
		l.mu.Unlock()

		start := time.Now()
		err := c.execute(l.id, seq)
		c.metrics.ObserveSequence(t.kind.String(), time.Since(start), err)

		l.mu.Lock()
		c.finish(l, seq, err)
		waiters := t.waiters
		t.waiters = nil
		l.current = nil
		l.mu.Unlock()

		if err != nil {
			c.logger.Error("❌ Правка границы %s (%s) не удалась: %v", l.id, t.kind, err)
			if c.opts.Notifier != nil {
				c.opts.Notifier.EditFailed(c.ctx, l.id, t.kind.String(), err)
			}
		}
		for _, w := range waiters {
			w.resolve(err)
		}
	}
}
