package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/boltdb/bolt"
)

var borderBucket = []byte("border")

// BoltRecordRepo хранит записи границ в одном файле BoltDB
type BoltRecordRepo struct {
	db *bolt.DB
}

// NewBoltRecordRepo открывает (или создаёт) файл базы
func NewBoltRecordRepo(path string) (*BoltRecordRepo, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к файлу BoltDB")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BoltDB: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(borderBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать bucket: %w", err)
	}
	return &BoltRecordRepo{db: db}, nil
}

// Load загружает запись
func (r *BoltRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return border.Record{}, false, err
	}

	var data []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(borderBucket).Get([]byte(regionID))
		if value != nil {
			data = append([]byte{}, value...)
		}
		return nil
	})
	if err != nil {
		return border.Record{}, false, fmt.Errorf("ошибка чтения из BoltDB: %w", err)
	}
	if data == nil {
		return border.Record{}, false, nil
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return border.Record{}, false, err
	}
	return rec, true, nil
}

// LoadAll обходит bucket курсором
func (r *BoltRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	var out []border.Record
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(borderBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("запись %s: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save сохраняет запись
func (r *BoltRecordRepo) Save(ctx context.Context, rec border.Record) error {
	return r.BatchSave(ctx, []border.Record{rec})
}

// BatchSave сохраняет записи в одной транзакции
func (r *BoltRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(borderBucket)
		for _, rec := range records {
			if err := validateID(rec.RegionID); err != nil {
				return err
			}
			data, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(rec.RegionID), data); err != nil {
				return fmt.Errorf("ошибка сохранения в BoltDB: %w", err)
			}
		}
		return nil
	})
}

// Delete удаляет запись
func (r *BoltRecordRepo) Delete(ctx context.Context, regionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(borderBucket).Delete([]byte(regionID))
	})
}

// Close закрывает файл базы
func (r *BoltRecordRepo) Close() error {
	return r.db.Close()
}
