// Package edit выполняет асинхронные массовые правки объёмов:
// заполнение пустот барьером и снятие барьера. Пакет ничего не знает
// о регионах и работает только с координатными объёмами.
package edit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/metrics"
	"github.com/annel0/vertical-border/internal/world"
)

// Options параметры движка
type Options struct {
	// Workers максимум одновременно выполняемых правок
	Workers int
	// PlacementEnabled разрешена ли установка барьеров (очистка разрешена всегда)
	PlacementEnabled bool
	Metrics          *metrics.BorderMetrics
}

// DefaultOptions параметры по умолчанию
func DefaultOptions() Options {
	return Options{Workers: 4, PlacementEnabled: true}
}

// Engine исполняет правки вне потока вызывающего.
// Каждая операция сразу возвращает Future; ожидание слота исполнителя
// происходит в отдельной горутине.
type Engine struct {
	backend   Backend
	placement atomic.Bool
	sem       chan struct{}
	metrics   *metrics.BorderMetrics
	logger    *logging.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// NewEngine создаёт движок. backend=nil означает отсутствие бэкенда:
// все операции возвращают разрешённый результат 0.
func NewEngine(backend Backend, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend: backend,
		sem:     make(chan struct{}, opts.Workers),
		metrics: opts.Metrics,
		logger:  logging.GetEditLogger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	e.placement.Store(opts.PlacementEnabled)

	if backend == nil {
		e.logger.Warn("⚠️ %v: барьеры не будут ставиться и сниматься", ErrBackendUnavailable)
	}
	return e
}

// Available подключён ли бэкенд
func (e *Engine) Available() bool {
	return e.backend != nil
}

// PlacementEnabled разрешена ли установка барьеров
func (e *Engine) PlacementEnabled() bool {
	return e.placement.Load()
}

// SetPlacementEnabled включает или выключает установку барьеров (перезагрузка конфигурации)
func (e *Engine) SetPlacementEnabled(enabled bool) {
	e.placement.Store(enabled)
}

// FillWithBarrier заменяет пустые блоки объёма барьером.
// Постройки игроков не затрагиваются.
func (e *Engine) FillWithBarrier(ctx context.Context, v border.Volume) *Future {
	if !e.placement.Load() {
		return Resolved(0)
	}
	return e.submit(ctx, OpFill, v, fillMask, world.BarrierBlockID)
}

// ClearBarrier заменяет барьеры объёма воздухом; остальное не трогает
func (e *Engine) ClearBarrier(ctx context.Context, v border.Volume) *Future {
	return e.submit(ctx, OpClear, v, clearMask, world.AirBlockID)
}

func (e *Engine) submit(ctx context.Context, op Op, v border.Volume, mask []world.BlockID, to world.BlockID) *Future {
	if e.backend == nil || v.Empty() {
		return Resolved(0)
	}
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return Failed(&EditError{Op: op, Volume: v, Err: ErrEngineClosed})
	}

	f := newFuture()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		changed, err := e.run(ctx, op, v, mask, to)
		e.metrics.ObserveEdit(string(op), changed, err)
		f.resolve(changed, err)
	}()
	return f
}

func (e *Engine) run(ctx context.Context, op Op, v border.Volume, mask []world.BlockID, to world.BlockID) (changed int, err error) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, &EditError{Op: op, Volume: v, Err: ctx.Err()}
	case <-e.ctx.Done():
		return 0, &EditError{Op: op, Volume: v, Err: ErrEngineClosed}
	}
	defer func() { <-e.sem }()

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			changed, err = 0, &EditError{Op: op, Volume: v, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	changed, err = e.backend.ReplaceBlocks(opCtx, v, mask, to)
	if err != nil {
		e.logger.Error("❌ %s %s: %v", op, v, err)
		return changed, &EditError{Op: op, Volume: v, Err: err}
	}
	e.logger.Debug("🧱 %s %s: %d блоков за %v", op, v, changed, time.Since(start))
	return changed, nil
}

// Close отменяет выполняющиеся правки и ждёт их завершения
func (e *Engine) Close() {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return
	}
	e.closed = true
	e.closeMu.Unlock()

	e.cancel()
	e.wg.Wait()
}
