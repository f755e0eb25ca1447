package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annel0/vertical-border/internal/border"
)

// RecordRepo определяет интерфейс долговременного хранения записей границ.
// Записи привязаны к идентификатору региона.
type RecordRepo interface {
	// Load загружает запись региона.
	// Возвращает:
	//   border.Record - запись
	//   bool - true если запись найдена
	//   error - ошибка при загрузке
	Load(ctx context.Context, regionID string) (border.Record, bool, error)

	// LoadAll загружает все записи (предзагрузка кэша при старте, экспорт)
	LoadAll(ctx context.Context) ([]border.Record, error)

	// Save сохраняет запись (upsert)
	Save(ctx context.Context, r border.Record) error

	// Delete удаляет запись; удаление отсутствующей записи не ошибка
	Delete(ctx context.Context, regionID string) error

	// BatchSave сохраняет несколько записей одновременно (сброс при остановке)
	BatchSave(ctx context.Context, records []border.Record) error

	// Close освобождает соединения
	Close() error
}

// encodeRecord сериализует запись для key-value хранилищ
func encodeRecord(r border.Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записи %s: %w", r.RegionID, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (border.Record, error) {
	var r border.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return border.Record{}, fmt.Errorf("ошибка десериализации записи: %w", err)
	}
	return r, nil
}

func validateID(regionID string) error {
	if regionID == "" {
		return fmt.Errorf("пустой идентификатор региона")
	}
	return nil
}
