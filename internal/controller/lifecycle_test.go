package controller

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publish(t *testing.T, bus eventbus.EventBus, eventType string, payload any) {
	t.Helper()
	ev, err := eventbus.NewEnvelope(eventType, "claims", 5, payload)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
}

func TestSubscribeLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	skip := func(world string) bool { return world == "creative" }
	sub, err := SubscribeLifecycle(context.Background(), bus, e.c, e.mirror, skip)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	g := geometry(0, 0)
	publish(t, bus, eventbus.TypeRegionCreated, eventbus.RegionCreated{RegionID: "r1", Geometry: g, Owner: "alice", Members: []string{"bob"}})

	require.Eventually(t, func() bool {
		rec, ok := e.store.Get("r1")
		return ok && g.MatchesLast(rec)
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.mirror.IsMember("r1", "bob"))
	assert.Positive(t, e.barriers())

	t.Run("moved updates mirror only", func(t *testing.T) {
		moved := geometry(40, 0)
		publish(t, bus, eventbus.TypeRegionMoved, eventbus.RegionMoved{RegionID: "r1", Geometry: moved})
		require.Eventually(t, func() bool {
			cur, _ := e.mirror.Geometry("r1")
			return cur == moved
		}, 2*time.Second, 10*time.Millisecond)

		rec, _ := e.store.Get("r1")
		assert.True(t, g.MatchesLast(rec), "барьеры переносятся только командой update")
	})

	t.Run("disabled world is ignored", func(t *testing.T) {
		cg := registry.Geometry{World: "creative", CenterX: 0, CenterZ: 0, Radius: 2}
		publish(t, bus, eventbus.TypeRegionCreated, eventbus.RegionCreated{RegionID: "r2", Geometry: cg})
		require.Eventually(t, func() bool {
			_, ok := e.mirror.Geometry("r2")
			return ok
		}, 2*time.Second, 10*time.Millisecond)
		_, ok := e.store.Get("r2")
		assert.False(t, ok)
	})

	t.Run("deleted removes record and barriers", func(t *testing.T) {
		publish(t, bus, eventbus.TypeRegionDeleted, eventbus.RegionDeleted{RegionID: "r1"})
		require.Eventually(t, func() bool {
			_, ok := e.store.Get("r1")
			return !ok
		}, 2*time.Second, 10*time.Millisecond)
		e.sync(t, "r1")
		assert.Zero(t, e.barriers())
		_, known := e.mirror.Geometry("r1")
		assert.False(t, known)
	})
}

func TestBusNotifier(t *testing.T) {
	bus := eventbus.NewMemoryBus(8)
	defer bus.Close()

	got := make(chan eventbus.BorderEditFailed, 1)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeBorderEditFailed}}, func(ctx context.Context, ev *eventbus.Envelope) {
		var p eventbus.BorderEditFailed
		if ev.Decode(&p) == nil {
			got <- p
		}
	})
	require.NoError(t, err)

	NewBusNotifier(bus).EditFailed(context.Background(), "r1", "refresh", assert.AnError)

	select {
	case p := <-got:
		assert.Equal(t, "r1", p.RegionID)
		assert.Equal(t, "refresh", p.Kind)
		assert.Equal(t, assert.AnError.Error(), p.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("уведомление не доставлено")
	}
}
