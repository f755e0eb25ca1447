package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/annel0/vertical-border/internal/registry"
	"github.com/boltdb/bolt"
)

var regionsBucket = []byte("regions")

// BoltRegionJournal хранит зеркало реестра регионов в отдельном файле BoltDB.
// Файл локальный для экземпляра сервиса и не зависит от backend записей.
type BoltRegionJournal struct {
	db *bolt.DB
}

var _ registry.Journal = (*BoltRegionJournal)(nil)

// OpenRegionJournal открывает журнал в DataPath; для backend memory журнала нет
func OpenRegionJournal(cfg Config) (*BoltRegionJournal, error) {
	if cfg.Backend == "memory" || cfg.DataPath == "" {
		return nil, nil
	}
	return NewBoltRegionJournal(filepath.Join(cfg.DataPath, "regions.db"))
}

// NewBoltRegionJournal открывает (или создаёт) файл журнала
func NewBoltRegionJournal(path string) (*BoltRegionJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть журнал регионов: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(regionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать bucket: %w", err)
	}
	return &BoltRegionJournal{db: db}, nil
}

// SaveRegion записывает регион
func (j *BoltRegionJournal) SaveRegion(r registry.Region) error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("кодирование региона %s: %w", r.ID, err)
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(regionsBucket).Put([]byte(r.ID), data)
	})
}

// DeleteRegion удаляет регион
func (j *BoltRegionJournal) DeleteRegion(regionID string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(regionsBucket).Delete([]byte(regionID))
	})
}

// LoadRegions все регионы журнала
func (j *BoltRegionJournal) LoadRegions() ([]registry.Region, error) {
	var out []registry.Region
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(regionsBucket).ForEach(func(k, v []byte) error {
			var r registry.Region
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("регион %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close закрывает файл журнала
func (j *BoltRegionJournal) Close() error {
	return j.db.Close()
}
