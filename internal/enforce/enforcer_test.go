package enforce

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"github.com/annel0/vertical-border/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaults = border.Defaults{TopY: 100, BottomY: 0, CeilingEnabled: true, FloorEnabled: true}

func newEnforcer(t *testing.T, teleport bool) (*Enforcer, *storage.BoundaryStore) {
	t.Helper()
	store := storage.NewBoundaryStore(storage.NewMemoryRecordRepo(), time.Second)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	mirror := registry.NewMirror()
	mirror.Upsert(registry.Region{ID: "r1", Geometry: registry.Geometry{World: "w", Radius: 10}})

	e := New(store, mirror, Settings{
		TeleportBack:     teleport,
		TeleportDistance: 2,
		Defaults:         func() border.Defaults { return defaults },
	}, nil)
	return e, store
}

func move(fromY, toY float64) Move {
	return Move{
		ActorID: "a1",
		World:   "w",
		From:    vec.Vec3Float{X: 0.5, Y: fromY, Z: 0.5},
		To:      vec.Vec3Float{X: 0.5, Y: toY, Z: 0.5},
	}
}

func TestEnforcer_Check(t *testing.T) {
	e, store := newEnforcer(t, true)
	store.Save(border.NewRecord("r1", border.Defaults{TopY: 50, BottomY: 10, CeilingEnabled: true, FloorEnabled: true}))

	tests := []struct {
		name  string
		m     Move
		want  bool
		plane border.Plane
		y     float64
	}{
		{name: "inside", m: move(20, 21), want: false},
		{name: "same block", m: move(50.1, 50.7), want: false},
		{name: "ceiling reached", m: move(49.5, 50.2), want: true, plane: border.PlaneTop, y: 48},
		{name: "floor reached", m: move(11, 10.9), want: true, plane: border.PlaneBottom, y: 12},
		{name: "outside region", m: Move{World: "w", From: vec.Vec3Float{X: 100}, To: vec.Vec3Float{X: 100, Y: 90}}, want: false},
		{name: "other world", m: Move{World: "nether", From: vec.Vec3Float{Y: 1}, To: vec.Vec3Float{Y: 90}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := e.Check(tt.m)
			require.Equal(t, tt.want, ok)
			if !ok {
				return
			}
			assert.Equal(t, "r1", c.RegionID)
			assert.Equal(t, tt.plane, c.Plane)
			assert.True(t, c.Teleport)
			assert.Equal(t, tt.y, c.Position.Y)
			assert.Equal(t, tt.m.To.X, c.Position.X)
		})
	}
}

func TestEnforcer_Bypass(t *testing.T) {
	e, _ := newEnforcer(t, true)
	m := move(99, 150)
	m.Bypass = true
	_, ok := e.Check(m)
	assert.False(t, ok)
}

func TestEnforcer_MessageOnly(t *testing.T) {
	e, _ := newEnforcer(t, false)

	c, ok := e.Check(move(99, 101))
	require.True(t, ok, "без записи используются значения по умолчанию")
	assert.False(t, c.Teleport)
	assert.Equal(t, 101.0, c.Position.Y, "позиция не меняется")
	assert.Equal(t, MessageHitCeiling, c.Message)
}

func TestEnforcer_DisabledBorderNeverActs(t *testing.T) {
	e, store := newEnforcer(t, true)
	rec := border.NewRecord("r1", defaults)
	rec.BorderEnabled = false
	store.Save(rec)

	for y := -64.0; y <= 320; y += 7 {
		_, ok := e.Check(move(y-1, y))
		assert.False(t, ok, "y=%v", y)
	}
}

func TestEnforcer_PlaneDisabled(t *testing.T) {
	e, store := newEnforcer(t, true)
	rec := border.NewRecord("r1", defaults)
	rec.CeilingEnabled = false
	store.Save(rec)

	_, ok := e.Check(move(99, 150))
	assert.False(t, ok)
	c, ok := e.Check(move(1, -3))
	require.True(t, ok)
	assert.Equal(t, border.PlaneBottom, c.Plane)
}

func TestEnforcer_SetSettings(t *testing.T) {
	e, _ := newEnforcer(t, true)
	e.SetSettings(Settings{TeleportBack: true, TeleportDistance: 5, Defaults: func() border.Defaults { return defaults }})

	c, ok := e.Check(move(99, 100))
	require.True(t, ok)
	assert.Equal(t, 95.0, c.Position.Y)
}

func TestSubscribe(t *testing.T) {
	e, _ := newEnforcer(t, true)
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	corrected := make(chan eventbus.ActorCorrected, 1)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeActorCorrected}}, func(ctx context.Context, ev *eventbus.Envelope) {
		var p eventbus.ActorCorrected
		if ev.Decode(&p) == nil {
			corrected <- p
		}
	})
	require.NoError(t, err)

	sub, err := Subscribe(context.Background(), bus, e, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev, err := eventbus.NewEnvelope(eventbus.TypeActorMoved, "game", 5, eventbus.ActorMoved{
		ActorID: "a1",
		World:   "w",
		From:    vec.Vec3Float{Y: 99},
		To:      vec.Vec3Float{Y: 104},
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))

	select {
	case p := <-corrected:
		assert.Equal(t, "a1", p.ActorID)
		assert.Equal(t, "r1", p.RegionID)
		assert.Equal(t, string(border.PlaneTop), p.Plane)
		assert.Equal(t, 98.0, p.Position.Y)
	case <-time.After(2 * time.Second):
		t.Fatal("ActorCorrected не опубликован")
	}
}

func TestSubscribe_BusHandlerNotBlockedByCorrections(t *testing.T) {
	e, _ := newEnforcer(t, true)
	// Буфер на одно событие: исправления конкурируют за место с перемещениями
	bus := eventbus.NewMemoryBus(1)
	defer bus.Close()

	var corrected atomic.Int32
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeActorCorrected}}, func(ctx context.Context, ev *eventbus.Envelope) {
		corrected.Add(1)
	})
	require.NoError(t, err)

	sub, err := Subscribe(context.Background(), bus, e, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	const moves = 5
	go func() {
		for i := 0; i < moves; i++ {
			ev, err := eventbus.NewEnvelope(eventbus.TypeActorMoved, "game", 5, eventbus.ActorMoved{
				ActorID: fmt.Sprintf("a%d", i),
				World:   "w",
				From:    vec.Vec3Float{Y: 99},
				To:      vec.Vec3Float{Y: 104},
			})
			if err != nil {
				return
			}
			_ = bus.Publish(context.Background(), ev)
		}
	}()

	assert.Eventually(t, func() bool { return corrected.Load() == moves }, 900*time.Millisecond, 5*time.Millisecond,
		"все исправления доставлены без ожидания таймаута публикации")
}
