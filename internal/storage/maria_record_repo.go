package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaRecordRepo реализует RecordRepo для базы данных MariaDB/MySQL.
// Использует таблицу border_records.
type MariaRecordRepo struct {
	sqlRecordRepo
}

// NewMariaRecordRepo создает новый репозиторий записей для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaRecordRepo(dsn string) (*MariaRecordRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaRecordRepo{sqlRecordRepo{
		db: db,
		upsert: `
			INSERT INTO border_records (` + selectColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				top_y = VALUES(top_y),
				bottom_y = VALUES(bottom_y),
				border_enabled = VALUES(border_enabled),
				ceiling_enabled = VALUES(ceiling_enabled),
				floor_enabled = VALUES(floor_enabled),
				last_center_x = VALUES(last_center_x),
				last_center_z = VALUES(last_center_z),
				last_range = VALUES(last_range),
				last_world = VALUES(last_world),
				location_initialized = VALUES(location_initialized),
				updated_at = CURRENT_TIMESTAMP
		`,
	}}

	// Создаем таблицу, если она не существует
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу border_records, если она не существует.
func (r *MariaRecordRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS border_records (
			region_id            VARCHAR(64)  PRIMARY KEY,
			top_y                INT          NOT NULL,
			bottom_y             INT          NOT NULL,
			border_enabled       BOOLEAN      NOT NULL DEFAULT TRUE,
			ceiling_enabled      BOOLEAN      NOT NULL DEFAULT TRUE,
			floor_enabled        BOOLEAN      NOT NULL DEFAULT TRUE,
			last_center_x        INT          NOT NULL DEFAULT 0,
			last_center_z        INT          NOT NULL DEFAULT 0,
			last_range           INT          NOT NULL DEFAULT 0,
			last_world           VARCHAR(128) NOT NULL DEFAULT '',
			location_initialized BOOLEAN      NOT NULL DEFAULT FALSE,
			updated_at           TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			                     ON UPDATE    CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы border_records: %w", err)
	}
	return nil
}
