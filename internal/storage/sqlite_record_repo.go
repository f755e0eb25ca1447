package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteRecordRepo реализует RecordRepo во встроенной SQLite (без cgo)
type SQLiteRecordRepo struct {
	sqlRecordRepo
}

// NewSQLiteRecordRepo открывает файл базы и создаёт схему
func NewSQLiteRecordRepo(path string) (*SQLiteRecordRepo, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS border_records (
			region_id            TEXT    PRIMARY KEY,
			top_y                INTEGER NOT NULL,
			bottom_y             INTEGER NOT NULL,
			border_enabled       INTEGER NOT NULL DEFAULT 1,
			ceiling_enabled      INTEGER NOT NULL DEFAULT 1,
			floor_enabled        INTEGER NOT NULL DEFAULT 1,
			last_center_x        INTEGER NOT NULL DEFAULT 0,
			last_center_z        INTEGER NOT NULL DEFAULT 0,
			last_range           INTEGER NOT NULL DEFAULT 0,
			last_world           TEXT    NOT NULL DEFAULT '',
			location_initialized INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы border_records: %w", err)
	}

	return &SQLiteRecordRepo{sqlRecordRepo{
		db: db,
		upsert: `
			INSERT INTO border_records (` + selectColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(region_id) DO UPDATE SET
				top_y = excluded.top_y,
				bottom_y = excluded.bottom_y,
				border_enabled = excluded.border_enabled,
				ceiling_enabled = excluded.ceiling_enabled,
				floor_enabled = excluded.floor_enabled,
				last_center_x = excluded.last_center_x,
				last_center_z = excluded.last_center_z,
				last_range = excluded.last_range,
				last_world = excluded.last_world,
				location_initialized = excluded.location_initialized
		`,
	}}, nil
}
