package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/world"
	"github.com/nats-io/nats.go"
)

// ReplaceRequest запрос массовой замены игровому серверу
type ReplaceRequest struct {
	Volume border.Volume `json:"volume"`
	Mask   []string      `json:"mask"`
	To     string        `json:"to"`
}

// ReplaceReply ответ игрового сервера
type ReplaceReply struct {
	Changed int    `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// NATSBackend отправляет правки игровому серверу по NATS request/reply.
// Сервер применяет замену в своей сессии редактирования и отвечает числом блоков.
type NATSBackend struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewNATSBackend создаёт бэкенд поверх существующего подключения.
// timeout ограничивает ожидание ответа, если у контекста нет дедлайна.
func NewNATSBackend(conn *nats.Conn, subject string, timeout time.Duration) (*NATSBackend, error) {
	if conn == nil {
		return nil, errors.New("nats connection is nil")
	}
	if subject == "" {
		return nil, errors.New("nats subject is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSBackend{conn: conn, subject: subject, timeout: timeout}, nil
}

// ReplaceBlocks реализует Backend
func (b *NATSBackend) ReplaceBlocks(ctx context.Context, v border.Volume, mask []world.BlockID, to world.BlockID) (int, error) {
	data, err := json.Marshal(ReplaceRequest{
		Volume: v,
		Mask:   world.BlockNames(mask),
		To:     to.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal replace request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	msg, err := b.conn.RequestWithContext(ctx, b.subject, data)
	if err != nil {
		return 0, fmt.Errorf("nats request %s: %w", b.subject, err)
	}

	var reply ReplaceReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return 0, fmt.Errorf("unmarshal replace reply: %w", err)
	}
	if reply.Error != "" {
		return reply.Changed, errors.New(reply.Error)
	}
	return reply.Changed, nil
}
