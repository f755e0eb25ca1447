package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // Адрес Redis сервера
	Password string `yaml:"password"` // Пароль (пустой если не требуется)
	DB       int    `yaml:"db"`       // Номер базы данных
	Key      string `yaml:"key"`      // Хеш, в котором лежат записи
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		Key:  "border:records",
	}
}

// RedisRecordRepo хранит записи в одном хеше Redis: поле = id региона, значение = JSON.
// Записи границ живут без TTL.
type RedisRecordRepo struct {
	client *redis.Client
	key    string
}

// NewRedisRecordRepo создаёт новый Redis репозиторий записей
func NewRedisRecordRepo(cfg RedisConfig) (*RedisRecordRepo, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisConfig().Key
	}

	// Создаём клиент Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Проверяем подключение
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", cfg.Addr)
	return &RedisRecordRepo{client: client, key: cfg.Key}, nil
}

// Load загружает запись
func (r *RedisRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	data, err := r.client.HGet(ctx, r.key, regionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return border.Record{}, false, nil
	}
	if err != nil {
		return border.Record{}, false, fmt.Errorf("failed to get record %s: %w", regionID, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return border.Record{}, false, err
	}
	return rec, true, nil
}

// LoadAll загружает весь хеш
func (r *RedisRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	out := make([]border.Record, 0, len(all))
	for id, data := range all {
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}

// Save сохраняет запись
func (r *RedisRecordRepo) Save(ctx context.Context, rec border.Record) error {
	if err := validateID(rec.RegionID); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, rec.RegionID, data).Err(); err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.RegionID, err)
	}
	return nil
}

// BatchSave сохраняет записи одним пайплайном
func (r *RedisRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, rec := range records {
		if err := validateID(rec.RegionID); err != nil {
			return err
		}
		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.key, rec.RegionID, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch save records: %w", err)
	}
	return nil
}

// Delete удаляет запись
func (r *RedisRecordRepo) Delete(ctx context.Context, regionID string) error {
	if err := r.client.HDel(ctx, r.key, regionID).Err(); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", regionID, err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisRecordRepo) Close() error {
	return r.client.Close()
}
