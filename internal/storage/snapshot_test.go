package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryRecordRepo()
	require.NoError(t, src.BatchSave(ctx, []border.Record{sampleRecord("a"), sampleRecord("b")}))

	path := filepath.Join(t.TempDir(), "snap", "borders.jsonl.zst")
	n, err := ExportSnapshot(ctx, src, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst, err := NewBoltRecordRepo(filepath.Join(t.TempDir(), "borders.db"))
	require.NoError(t, err)
	defer dst.Close()

	n, err = ImportSnapshot(ctx, dst, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want, _ := src.LoadAll(ctx)
	got, err := dst.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshot_RejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, []border.Record{{TopY: 5}}))

	_, err := ReadSnapshot(&buf)
	assert.Error(t, err, "запись без идентификатора отклоняется")

	_, err = ReadSnapshot(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
