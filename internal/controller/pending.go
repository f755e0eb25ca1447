package controller

import (
	"context"
	"sync"
)

// Pending завершение физической последовательности правок региона.
// Логическое изменение к этому моменту уже применено.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolvedPending(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done закрывается после завершения последовательности
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait ждёт завершения или отмены контекста
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err результат; ok=false, пока последовательность выполняется
func (p *Pending) Err() (err error, ok bool) {
	select {
	case <-p.done:
		return p.err, true
	default:
		return nil, false
	}
}
