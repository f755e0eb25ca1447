package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annel0/vertical-border/internal/border"
)

const selectColumns = `region_id, top_y, bottom_y, border_enabled, ceiling_enabled, floor_enabled,
	last_center_x, last_center_z, last_range, last_world, location_initialized`

// sqlRecordRepo общая часть SQL-репозиториев; диалекты отличаются DDL и upsert
type sqlRecordRepo struct {
	db     *sql.DB
	upsert string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (border.Record, error) {
	var rec border.Record
	err := row.Scan(
		&rec.RegionID, &rec.TopY, &rec.BottomY,
		&rec.BorderEnabled, &rec.CeilingEnabled, &rec.FloorEnabled,
		&rec.LastCenterX, &rec.LastCenterZ, &rec.LastRange, &rec.LastWorld,
		&rec.LocationInitialized,
	)
	return rec, err
}

func recordArgs(rec border.Record) []any {
	return []any{
		rec.RegionID, rec.TopY, rec.BottomY,
		rec.BorderEnabled, rec.CeilingEnabled, rec.FloorEnabled,
		rec.LastCenterX, rec.LastCenterZ, rec.LastRange, rec.LastWorld,
		rec.LocationInitialized,
	}
}

// Load загружает запись региона
func (r *sqlRecordRepo) Load(ctx context.Context, regionID string) (border.Record, bool, error) {
	query := `SELECT ` + selectColumns + ` FROM border_records WHERE region_id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, regionID))
	if errors.Is(err, sql.ErrNoRows) {
		// Запись не найдена - регион ещё не настраивался
		return border.Record{}, false, nil
	}
	if err != nil {
		return border.Record{}, false, fmt.Errorf("ошибка загрузки записи %s: %w", regionID, err)
	}
	return rec, true, nil
}

// LoadAll загружает все записи
func (r *sqlRecordRepo) LoadAll(ctx context.Context) ([]border.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM border_records ORDER BY region_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var out []border.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Save сохраняет запись (upsert)
func (r *sqlRecordRepo) Save(ctx context.Context, rec border.Record) error {
	if err := validateID(rec.RegionID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.upsert, recordArgs(rec)...); err != nil {
		return fmt.Errorf("ошибка сохранения записи %s: %w", rec.RegionID, err)
	}
	return nil
}

// BatchSave сохраняет записи в одной транзакции
func (r *sqlRecordRepo) BatchSave(ctx context.Context, records []border.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.upsert)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if err := validateID(rec.RegionID); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return fmt.Errorf("ошибка сохранения записи %s: %w", rec.RegionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// Delete удаляет запись
func (r *sqlRecordRepo) Delete(ctx context.Context, regionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM border_records WHERE region_id = ?`, regionID); err != nil {
		return fmt.Errorf("ошибка удаления записи %s: %w", regionID, err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (r *sqlRecordRepo) Close() error {
	return r.db.Close()
}
