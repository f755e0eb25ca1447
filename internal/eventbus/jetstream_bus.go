package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/annel0/vertical-border/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	consumer  string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222, stream: "BORDER_EVENTS".
// consumer задаёт префикс durable-подписок, чтобы после перезапуска
// сервис продолжал чтение с места остановки.
func NewJetStreamBus(url, stream, consumer string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "BORDER_EVENTS"
	}
	if consumer == "" {
		consumer = "vertical_border"
	}

	nc, err := nats.Connect(url, nats.Name("vertical-border"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure stream exists (subjects: events.*)
	_, err = js.StreamInfo(stream)
	if err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{"events.*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	logging.Info("📡 JetStream подключен: %s stream=%s", url, stream)
	return &JetStreamBus{nc: nc, js: js, stream: stream, consumer: consumer}, nil
}

// Conn подключение NATS (переиспользуется бэкендом правок)
func (jb *JetStreamBus) Conn() *nats.Conn {
	return jb.nc
}

// Publish сериализует Envelope в JSON и публикует в subject events.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	subj := fmt.Sprintf("events.%s", ev.EventType)
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = jb.js.Publish(subj, data, nats.Context(ctx))
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe привязывается к durable consumer и вызывает handler асинхронно.
// Если в фильтре несколько типов, подписка идёт на events.* с фильтрацией на месте.
//
// Consumer создаётся явно и подписка делается через Bind: Unsubscribe при
// остановке не удаляет его, и после перезапуска чтение продолжается с
// последнего подтверждённого сообщения.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := "events.*"
	name := "all"
	if len(f.Types) == 1 {
		subj = fmt.Sprintf("events.%s", f.Types[0])
		name = f.Types[0]
	} else if len(f.Types) > 1 {
		name = strings.Join(f.Types, "_")
	}

	durable := fmt.Sprintf("%s_%s", jb.consumer, name)
	if err := jb.ensureConsumer(durable, subj); err != nil {
		return nil, err
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logging.Warn("⚠️ JetStream: не удалось разобрать событие %s: %v", msg.Subject, err)
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.Bind(jb.stream, durable), nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("подписка %s: %w", durable, err)
	}

	return &jetSub{natSub}, nil
}

// ensureConsumer создаёт push-consumer durable, если его ещё нет
func (jb *JetStreamBus) ensureConsumer(durable, subj string) error {
	if _, err := jb.js.ConsumerInfo(jb.stream, durable); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("consumer %s: %w", durable, err)
	}

	_, err := jb.js.AddConsumer(jb.stream, &nats.ConsumerConfig{
		Durable:        durable,
		DeliverSubject: nats.NewInbox(),
		DeliverPolicy:  nats.DeliverAllPolicy,
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        30 * time.Second,
		FilterSubject:  subj,
	})
	if err != nil {
		return fmt.Errorf("add consumer %s: %w", durable, err)
	}
	logging.Info("📡 JetStream: создан consumer %s (%s)", durable, subj)
	return nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // jetstream keeps its own queue
	}
}

// Close дожидается отправки буфера и закрывает подключение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
