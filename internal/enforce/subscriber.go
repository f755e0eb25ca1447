package enforce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/vertical-border/internal/eventbus"
)

const (
	publishTimeout = time.Second
	// correctionQueue очередь исправлений между обработчиком и публикатором
	correctionQueue = 256
)

// moveSubscription подписка на перемещения вместе с публикатором исправлений
type moveSubscription struct {
	sub  eventbus.Subscription
	out  chan *eventbus.Envelope
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *moveSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		close(s.stop)
		<-s.done
	})
}

// publish отправляет исправления в шину из своей горутины: обработчик шины
// не ждёт места в её буфере
func (s *moveSubscription) publish(ctx context.Context, bus eventbus.EventBus, e *Enforcer) {
	defer close(s.done)
	for {
		select {
		case out := <-s.out:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := bus.Publish(pctx, out); err != nil {
				e.logger.Warn("⚠️ ActorCorrected %s не опубликован: %v", out.CorrelationID, err)
			}
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Subscribe проверяет события ActorMoved из шины и публикует ActorCorrected.
// skip исключает миры из проверки; nil проверяет все.
func Subscribe(ctx context.Context, bus eventbus.EventBus, e *Enforcer, skip func(world string) bool) (eventbus.Subscription, error) {
	ms := &moveSubscription{
		out:  make(chan *eventbus.Envelope, correctionQueue),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	filter := eventbus.Filter{Types: []string{eventbus.TypeActorMoved}}
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		var p eventbus.ActorMoved
		if err := ev.Decode(&p); err != nil {
			e.logger.Warn("⚠️ %v", err)
			return
		}
		if skip != nil && skip(p.World) {
			return
		}

		c, ok := e.Check(Move{ActorID: p.ActorID, World: p.World, From: p.From, To: p.To, Bypass: p.Bypass})
		if !ok {
			return
		}
		out, err := eventbus.NewEnvelope(eventbus.TypeActorCorrected, eventbus.SourceBorder, 8, eventbus.ActorCorrected{
			ActorID:  p.ActorID,
			RegionID: c.RegionID,
			World:    p.World,
			Plane:    string(c.Plane),
			Teleport: c.Teleport,
			Position: c.Position,
			Message:  c.Message,
		})
		if err != nil {
			e.logger.Error("❌ %v", err)
			return
		}
		out.CorrelationID = ev.ID
		select {
		case ms.out <- out:
		case <-ms.stop:
		default:
			e.logger.Warn("⚠️ Очередь исправлений заполнена, ActorCorrected для %s отброшен", p.ActorID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("подписка на перемещения: %w", err)
	}
	ms.sub = sub
	go ms.publish(ctx, bus, e)
	return ms, nil
}
