package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/logging"
)

// pendingOp отложенная запись в долговременное хранилище
type pendingOp struct {
	record  border.Record
	deleted bool
}

// BoundaryStore владеет кэшем записей границ и фоново сохраняет изменения.
//
// Кэш хранит значения, а не указатели: каждый вызов Get возвращает копию,
// поэтому изменения вне Save не видны другим читателям.
// Запись в хранилище асинхронная и по принципу «последняя побеждает»:
// несколько Save одного региона до сброса схлопываются в одну запись.
type BoundaryStore struct {
	repo   RecordRepo
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]border.Record

	pendingMu sync.Mutex
	pending   map[string]pendingOp
	inflight  map[string]pendingOp // пакет, который пишет flushPending
	deletes   uint64
	wake      chan struct{}

	// writeMu упорядочивает фактические записи фонового писателя и Flush
	writeMu      sync.Mutex
	writeTimeout time.Duration

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBoundaryStore создаёт хранилище и запускает фонового писателя.
// writeTimeout ограничивает одну запись в repo.
func NewBoundaryStore(repo RecordRepo, writeTimeout time.Duration) *BoundaryStore {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	s := &BoundaryStore{
		repo:         repo,
		logger:       logging.GetStorageLogger(),
		cache:        make(map[string]border.Record),
		pending:      make(map[string]pendingOp),
		wake:         make(chan struct{}, 1),
		writeTimeout: writeTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.writer()
	return s
}

// Preload загружает все записи из хранилища в кэш.
// Уже закэшированные записи не перезаписываются.
func (s *BoundaryStore) Preload(ctx context.Context) (int, error) {
	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("предзагрузка записей: %w", err)
	}

	s.mu.Lock()
	loaded := 0
	for _, r := range records {
		if _, ok := s.cache[r.RegionID]; ok {
			continue
		}
		s.cache[r.RegionID] = r
		loaded++
	}
	s.mu.Unlock()

	s.logger.Info("📦 Загружено %d записей границ", loaded)
	return loaded, nil
}

// Get возвращает запись только из кэша; никогда не создаёт и не загружает
func (s *BoundaryStore) Get(regionID string) (border.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.cache[regionID]
	return r, ok
}

// GetOrCreate возвращает запись из кэша, затем из хранилища, иначе создаёт
// новую со значениями defaults. Новая запись кэшируется, но не сохраняется.
// Запись, удаление которой ещё не дошло до хранилища, считается отсутствующей.
func (s *BoundaryStore) GetOrCreate(ctx context.Context, regionID string, defaults border.DefaultsProvider) (border.Record, error) {
	r, _, err := s.fetch(ctx, regionID, defaults)
	return r, err
}

// Lookup как GetOrCreate, но без создания: отсутствующая запись не кэшируется
func (s *BoundaryStore) Lookup(ctx context.Context, regionID string) (border.Record, bool, error) {
	return s.fetch(ctx, regionID, nil)
}

func (s *BoundaryStore) fetch(ctx context.Context, regionID string, defaults border.DefaultsProvider) (border.Record, bool, error) {
	for {
		if r, ok := s.Get(regionID); ok {
			return r, true, nil
		}

		epoch, deleting := s.deleteState(regionID)
		var (
			loaded border.Record
			found  bool
		)
		if !deleting {
			var err error
			loaded, found, err = s.repo.Load(ctx, regionID)
			if err != nil {
				return border.Record{}, false, fmt.Errorf("загрузка записи %s: %w", regionID, err)
			}
		}

		s.mu.Lock()
		// Кто-то мог успеть положить запись, пока шла загрузка
		if r, ok := s.cache[regionID]; ok {
			s.mu.Unlock()
			return r, true, nil
		}
		// Во время загрузки прошло удаление: прочитанное могло устареть
		if now, _ := s.deleteState(regionID); now != epoch {
			s.mu.Unlock()
			continue
		}
		if !found {
			if defaults == nil {
				s.mu.Unlock()
				return border.Record{}, false, nil
			}
			loaded = border.NewRecord(regionID, defaults())
		}
		s.cache[regionID] = loaded
		s.mu.Unlock()
		return loaded, found, nil
	}
}

// Save обновляет кэш и планирует запись в хранилище; не блокирует вызывающего
func (s *BoundaryStore) Save(r border.Record) {
	s.mu.Lock()
	s.cache[r.RegionID] = r
	s.mu.Unlock()

	s.schedule(r.RegionID, pendingOp{record: r})
}

// Delete удаляет запись из кэша и планирует удаление из хранилища.
// Удаление планируется до очистки кэша: GetOrCreate, не нашедший запись
// в кэше, уже видит его и не поднимает запись из хранилища.
func (s *BoundaryStore) Delete(regionID string) {
	s.pendingMu.Lock()
	s.deletes++
	s.pendingMu.Unlock()
	s.schedule(regionID, pendingOp{deleted: true})

	s.mu.Lock()
	delete(s.cache, regionID)
	s.mu.Unlock()
}

// Records копия всех закэшированных записей, отсортированная по id
func (s *BoundaryStore) Records() []border.Record {
	s.mu.RLock()
	out := make([]border.Record, 0, len(s.cache))
	for _, r := range s.cache {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

// Len количество записей в кэше
func (s *BoundaryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// deleteState счётчик удалений и ждёт ли регион удаления из хранилища
// (в очереди или в пакете, который пишется прямо сейчас)
func (s *BoundaryStore) deleteState(regionID string) (uint64, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if op, ok := s.pending[regionID]; ok {
		return s.deletes, op.deleted
	}
	return s.deletes, s.inflight[regionID].deleted
}

func (s *BoundaryStore) schedule(regionID string, op pendingOp) {
	s.pendingMu.Lock()
	s.pending[regionID] = op
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *BoundaryStore) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.flushPending(context.Background())
		case <-s.stop:
			return
		}
	}
}

// flushPending записывает накопленные операции. Ошибки логируются:
// вызывающие Save не ждут подтверждения.
func (s *BoundaryStore) flushPending(ctx context.Context) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.pendingMu.Lock()
	batch := s.pending
	s.pending = make(map[string]pendingOp)
	s.inflight = batch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		s.inflight = nil
		s.pendingMu.Unlock()
	}()

	failed := 0
	for id, op := range batch {
		opCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		var err error
		if op.deleted {
			err = s.repo.Delete(opCtx, id)
		} else {
			err = s.repo.Save(opCtx, op.record)
		}
		cancel()
		if err != nil {
			failed++
			s.logger.Error("❌ Не удалось записать границу %s: %v", id, err)
		}
	}
	if len(batch) > 0 {
		s.logger.Debug("💾 Записано %d изменений границ (ошибок: %d)", len(batch)-failed, failed)
	}
	return failed
}

// Flush синхронно записывает все ожидающие изменения
func (s *BoundaryStore) Flush(ctx context.Context) error {
	if failed := s.flushPending(ctx); failed > 0 {
		return fmt.Errorf("не удалось записать %d изменений", failed)
	}
	return nil
}

// SaveAll записывает ожидающие удаления и весь кэш одним пакетом (остановка)
func (s *BoundaryStore) SaveAll(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	records := s.Records()
	if err := s.repo.BatchSave(ctx, records); err != nil {
		return fmt.Errorf("пакетное сохранение %d записей: %w", len(records), err)
	}
	s.logger.Info("💾 Сохранено %d записей границ", len(records))
	return nil
}

// Close останавливает писателя, сохраняет всё и закрывает хранилище
func (s *BoundaryStore) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		err = s.SaveAll(ctx)
		if cerr := s.repo.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
