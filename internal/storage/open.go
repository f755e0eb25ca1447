package storage

import (
	"fmt"
	"path/filepath"
)

// Config выбор и настройки долговременного хранилища
type Config struct {
	// Backend: memory | badger | bolt | sqlite | maria | redis | mongo
	Backend             string      `yaml:"backend"`
	DataPath            string      `yaml:"data_path"`
	MariaDSN            string      `yaml:"maria_dsn"`
	Redis               RedisConfig `yaml:"redis"`
	Mongo               MongoConfig `yaml:"mongo"`
	WriteTimeoutSeconds int         `yaml:"write_timeout_seconds"`
}

// DefaultConfig встроенная BadgerDB в ./data
func DefaultConfig() Config {
	return Config{
		Backend:             "badger",
		DataPath:            "data",
		Redis:               DefaultRedisConfig(),
		WriteTimeoutSeconds: 10,
	}
}

// Open создаёт репозиторий по конфигурации
func Open(cfg Config) (RecordRepo, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryRecordRepo(), nil
	case "badger", "":
		return NewBadgerRecordRepo(cfg.DataPath)
	case "bolt":
		return NewBoltRecordRepo(filepath.Join(cfg.DataPath, "borders.db"))
	case "sqlite":
		return NewSQLiteRecordRepo(filepath.Join(cfg.DataPath, "borders.sqlite"))
	case "maria", "mysql":
		return NewMariaRecordRepo(cfg.MariaDSN)
	case "redis":
		return NewRedisRecordRepo(cfg.Redis)
	case "mongo":
		return NewMongoRecordRepo(cfg.Mongo)
	}
	return nil, fmt.Errorf("неизвестный backend хранилища %q", cfg.Backend)
}
