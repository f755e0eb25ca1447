package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	notifySendBuffer = 64
	notifyWriteWait  = 5 * time.Second
	notifyPingEvery  = 30 * time.Second
)

// Notification сообщение потока уведомлений
type Notification struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RegionID  string    `json:"region_id"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
}

// NotificationHub рассылает отказы правок подключённым операторам по websocket
type NotificationHub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	sub     eventbus.Subscription
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewNotificationHub создаёт хаб без подписки на шину
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logging.GetAPILogger(),
		clients: make(map[*hubClient]struct{}),
	}
}

// Attach подписывает хаб на BorderEditFailed
func (h *NotificationHub) Attach(ctx context.Context, bus eventbus.EventBus) error {
	filter := eventbus.Filter{Types: []string{eventbus.TypeBorderEditFailed}}
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		var p eventbus.BorderEditFailed
		if err := ev.Decode(&p); err != nil {
			h.logger.Warn("⚠️ %v", err)
			return
		}
		h.Broadcast(Notification{
			Type:      ev.EventType,
			Timestamp: ev.Timestamp,
			RegionID:  p.RegionID,
			Kind:      p.Kind,
			Error:     p.Error,
		})
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()
	return nil
}

// Broadcast отправляет уведомление всем клиентам; медленные клиенты отключаются
func (h *NotificationHub) Broadcast(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients количество подключённых клиентов
func (h *NotificationHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle поднимает websocket-соединение оператора
func (h *NotificationHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &hubClient{conn: conn, send: make(chan []byte, notifySendBuffer)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("🔌 Оператор подключился к уведомлениям (%s)", c.ClientIP())

	go h.readLoop(client)
	h.writeLoop(client)
}

// readLoop читает только управляющие кадры; закрытие соединения снимает клиента
func (h *NotificationHub) readLoop(c *hubClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *NotificationHub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(notifyPingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(notifyWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(notifyWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *NotificationHub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close отписывается от шины и отключает клиентов
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub != nil {
		h.sub.Unsubscribe()
		h.sub = nil
	}
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
