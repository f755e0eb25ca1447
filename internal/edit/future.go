package edit

import (
	"context"
	"sync"
)

// Future результат асинхронной правки: количество изменённых блоков или ошибка.
// Разрешается ровно один раз.
type Future struct {
	done chan struct{}
	once sync.Once

	changed int
	err     error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved возвращает уже разрешённый результат
func Resolved(changed int) *Future {
	f := newFuture()
	f.resolve(changed, nil)
	return f
}

// Failed возвращает уже завершившийся ошибкой результат
func Failed(err error) *Future {
	f := newFuture()
	f.resolve(0, err)
	return f
}

func (f *Future) resolve(changed int, err error) {
	f.once.Do(func() {
		f.changed = changed
		f.err = err
		close(f.done)
	})
}

// Done закрывается после разрешения
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result возвращает результат; ok=false, если правка ещё выполняется
func (f *Future) Result() (changed int, err error, ok bool) {
	select {
	case <-f.done:
		return f.changed, f.err, true
	default:
		return 0, nil, false
	}
}

// Wait ждёт разрешения или отмены контекста.
// Отмена контекста не отменяет саму правку.
func (f *Future) Wait(ctx context.Context) (int, error) {
	select {
	case <-f.done:
		return f.changed, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
