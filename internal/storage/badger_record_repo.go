package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "border:"

// BadgerRecordRepo хранит записи границ во встроенной BadgerDB
type BadgerRecordRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerRecordRepo открывает BadgerDB в каталоге dataPath/borders.
// dataPath="" открывает базу в памяти (тесты).
func NewBadgerRecordRepo(dataPath string) (*BadgerRecordRepo, error) {
	var opts badger.Options
	var dbPath string
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(dataPath, "borders")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerRecordRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func badgerKey(regionID string) []byte {
	return []byte(badgerKeyPrefix + regionID)
}

// Load загружает запись из BadgerDB
func (r *BadgerRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return border.Record{}, false, fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return border.Record{}, false, err
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(regionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return border.Record{}, false, nil
	}
	if err != nil {
		return border.Record{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return border.Record{}, false, err
	}
	return rec, true, nil
}

// LoadAll обходит все записи по префиксу
func (r *BadgerRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var out []border.Record
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}
	return out, nil
}

// Save сохраняет запись в BadgerDB
func (r *BadgerRecordRepo) Save(ctx context.Context, rec border.Record) error {
	return r.BatchSave(ctx, []border.Record{rec})
}

// BatchSave сохраняет записи в одной транзакции
func (r *BadgerRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			if err := validateID(rec.RegionID); err != nil {
				return err
			}
			data, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(badgerKey(rec.RegionID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Delete удаляет запись из BadgerDB
func (r *BadgerRecordRepo) Delete(ctx context.Context, regionID string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(regionID))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// Close закрывает хранилище данных
func (r *BadgerRecordRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	return r.db.Close()
}
