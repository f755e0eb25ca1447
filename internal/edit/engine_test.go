package edit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = border.DefaultLimits

func ceiling(top int) border.Volume {
	return border.FootprintAround("w", 0, 0, 4).CeilingVolume(top, limits)
}

// blockingBackend держит правки до закрытия release
type blockingBackend struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingBackend) ReplaceBlocks(ctx context.Context, v border.Volume, _ []world.BlockID, _ world.BlockID) (int, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return int(v.Blocks()), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type failingBackend struct{}

func (failingBackend) ReplaceBlocks(context.Context, border.Volume, []world.BlockID, world.BlockID) (int, error) {
	return 0, errors.New("edit session closed")
}

func TestEngine_FillAndClear(t *testing.T) {
	u := world.NewUniverse(limits)
	e := NewEngine(u, DefaultOptions())
	defer e.Close()
	ctx := context.Background()

	v := ceiling(300)
	n, err := e.FillWithBarrier(ctx, v).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(v.Blocks()), n)
	assert.Equal(t, n, u.CountBlocks(v, world.BarrierBlockID))

	n, err = e.ClearBarrier(ctx, v).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(v.Blocks()), n)
	assert.Zero(t, u.CountBlocks(v, world.BarrierBlockID))
}

func TestEngine_NoBackendIsNoop(t *testing.T) {
	e := NewEngine(nil, DefaultOptions())
	defer e.Close()

	assert.False(t, e.Available())
	for _, f := range []*Future{e.FillWithBarrier(context.Background(), ceiling(300)), e.ClearBarrier(context.Background(), ceiling(300))} {
		n, err, ok := f.Result()
		require.True(t, ok, "результат должен быть разрешён сразу")
		assert.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestEngine_PlacementDisabledSkipsFillOnly(t *testing.T) {
	u := world.NewUniverse(limits)
	v := ceiling(300)
	_, err := u.ReplaceBlocks(context.Background(), v, world.PassableBlocks, world.BarrierBlockID)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.PlacementEnabled = false
	e := NewEngine(u, opts)
	defer e.Close()

	n, err, ok := e.FillWithBarrier(context.Background(), ceiling(250)).Result()
	require.True(t, ok)
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.ClearBarrier(context.Background(), v).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int(v.Blocks()), n, "очистка работает и при запрете установки")

	e.SetPlacementEnabled(true)
	assert.True(t, e.PlacementEnabled())
}

func TestEngine_BackendErrorIsEditFailed(t *testing.T) {
	e := NewEngine(failingBackend{}, DefaultOptions())
	defer e.Close()

	_, err := e.FillWithBarrier(context.Background(), ceiling(300)).Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEditFailed)

	var ee *EditError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, OpFill, ee.Op)
	assert.Contains(t, err.Error(), "edit session closed")
}

func TestEngine_DoesNotBlockCaller(t *testing.T) {
	b := &blockingBackend{release: make(chan struct{})}
	opts := DefaultOptions()
	opts.Workers = 1
	e := NewEngine(b, opts)
	defer e.Close()

	start := time.Now()
	first := e.FillWithBarrier(context.Background(), ceiling(300))
	second := e.FillWithBarrier(context.Background(), ceiling(310))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "вызов не ждёт исполнителя")

	_, _, ok := first.Result()
	assert.False(t, ok)

	// Ожидание с таймаутом не отменяет правку
	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := first.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(b.release)
	_, err = first.Wait(context.Background())
	assert.NoError(t, err)
	_, err = second.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestEngine_OperationContextCancels(t *testing.T) {
	b := &blockingBackend{release: make(chan struct{})}
	e := NewEngine(b, DefaultOptions())
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.ClearBarrier(ctx, ceiling(300)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrEditFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_Close(t *testing.T) {
	b := &blockingBackend{release: make(chan struct{})}
	e := NewEngine(b, DefaultOptions())

	f := e.FillWithBarrier(context.Background(), ceiling(300))
	e.Close()

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrEditFailed, "закрытие прерывает выполняющиеся правки")

	_, err = e.ClearBarrier(context.Background(), ceiling(300)).Wait(context.Background())
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngine_EmptyVolume(t *testing.T) {
	b := &blockingBackend{release: make(chan struct{})}
	e := NewEngine(b, DefaultOptions())
	defer e.Close()

	n, err, ok := e.FillWithBarrier(context.Background(), ceiling(320)).Result()
	require.True(t, ok)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, b.calls.Load())
}
