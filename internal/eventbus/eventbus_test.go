package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/vertical-border/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	ev, err := NewEnvelope(TypeRegionCreated, "bentobox", 5, RegionCreated{
		RegionID: "island-1",
		Geometry: registry.Geometry{World: "w", CenterX: 10, CenterZ: -10, Radius: 50},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeRegionCreated, ev.EventType)

	var got RegionCreated
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, "island-1", got.RegionID)
	assert.Equal(t, 50, got.Geometry.Radius)
}

func TestMemoryBus_FilterAndOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeRegionDeleted}}, func(ctx context.Context, ev *Envelope) {
		var p RegionDeleted
		if ev.Decode(&p) == nil {
			mu.Lock()
			got = append(got, p.RegionID)
			mu.Unlock()
		}
	})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		ev, _ := NewEnvelope(TypeRegionDeleted, "test", 5, RegionDeleted{RegionID: id})
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	other, _ := NewEnvelope(TypeChunkLoaded, "test", 5, ChunkLoaded{World: "w"})
	require.NoError(t, bus.Publish(context.Background(), other))

	require.NoError(t, bus.Close())
	assert.Equal(t, []string{"a", "b", "c"}, got, "события доставляются по порядку и по фильтру")

	stats := bus.Metrics()
	assert.Equal(t, uint64(4), stats.Published)
	assert.Equal(t, uint64(3), stats.Consumed)

	assert.Error(t, bus.Publish(context.Background(), other), "закрытая шина не принимает события")
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	calls := make(chan struct{}, 8)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)

	ev, _ := NewEnvelope(TypeChunkLoaded, "test", 5, ChunkLoaded{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())
	assert.Len(t, calls, 0)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	ev, _ := NewEnvelope(TypeChunkLoaded, "test", 5, ChunkLoaded{})
	require.NoError(t, bus.Publish(context.Background(), ev))

	prev := me.collect(Stats{})
	assert.Equal(t, 1.0, testutil.ToFloat64(me.published))
	me.collect(prev)
	assert.Equal(t, 1.0, testutil.ToFloat64(me.published), "повторный сбор не удваивает счётчик")
}
