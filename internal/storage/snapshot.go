package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/klauspost/compress/zstd"
)

// WriteSnapshot пишет записи как JSONL, сжатый zstd
func WriteSnapshot(w io.Writer, records []border.Record) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	je := json.NewEncoder(enc)
	for _, r := range records {
		if err := je.Encode(r); err != nil {
			_ = enc.Close()
			return fmt.Errorf("запись %s: %w", r.RegionID, err)
		}
	}
	return enc.Close()
}

// ReadSnapshot читает записи из zstd JSONL
func ReadSnapshot(r io.Reader) ([]border.Record, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []border.Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec border.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		if err := validateID(rec.RegionID); err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportSnapshot выгружает все записи repo в файл; возвращает их количество
func ExportSnapshot(ctx context.Context, repo RecordRepo, path string) (int, error) {
	records, err := repo.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	if err := WriteSnapshot(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return len(records), os.Rename(tmp, path)
}

// ImportSnapshot загружает записи из файла в repo (upsert)
func ImportSnapshot(ctx context.Context, repo RecordRepo, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	records, err := ReadSnapshot(f)
	if err != nil {
		return 0, fmt.Errorf("чтение снимка %s: %w", path, err)
	}
	if err := repo.BatchSave(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
