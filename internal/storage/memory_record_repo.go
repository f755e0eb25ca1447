package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/vertical-border/internal/border"
)

// MemoryRecordRepo реализует RecordRepo в памяти.
// Используется для тестирования и разработки без внешних зависимостей.
type MemoryRecordRepo struct {
	mu      sync.RWMutex
	records map[string]border.Record
}

// NewMemoryRecordRepo создает новый in-memory репозиторий записей
func NewMemoryRecordRepo() *MemoryRecordRepo {
	return &MemoryRecordRepo{
		records: make(map[string]border.Record),
	}
}

// Load загружает запись из памяти
func (r *MemoryRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return border.Record{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[regionID]
	return rec, ok, nil
}

// LoadAll возвращает все записи, отсортированные по идентификатору
func (r *MemoryRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]border.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}

// Save сохраняет запись в памяти
func (r *MemoryRecordRepo) Save(ctx context.Context, rec border.Record) error {
	if err := validateID(rec.RegionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.records[rec.RegionID] = rec
	r.mu.Unlock()
	return nil
}

// Delete удаляет запись из памяти
func (r *MemoryRecordRepo) Delete(ctx context.Context, regionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.records, regionID)
	r.mu.Unlock()
	return nil
}

// BatchSave сохраняет несколько записей
func (r *MemoryRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	for _, rec := range records {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Count возвращает количество записей (для тестов и отладки)
func (r *MemoryRecordRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Close ничего не делает для in-memory хранилища
func (r *MemoryRecordRepo) Close() error {
	return nil
}
