package edit

import (
	"errors"
	"fmt"

	"github.com/annel0/vertical-border/internal/border"
)

var (
	// ErrBackendUnavailable бэкенд массовых правок не подключён; правки становятся no-op
	ErrBackendUnavailable = errors.New("бэкенд массовых правок недоступен")
	// ErrEditFailed бэкенд завершил правку ошибкой; итог в мире неизвестен
	ErrEditFailed = errors.New("массовая правка не удалась")
	// ErrEngineClosed движок остановлен
	ErrEngineClosed = errors.New("движок правок остановлен")
)

// Op тип примитивной правки
type Op string

const (
	OpFill  Op = "fill"
	OpClear Op = "clear"
)

// EditError ошибка конкретной правки
type EditError struct {
	Op     Op
	Volume border.Volume
	Err    error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Volume, ErrEditFailed, e.Err)
}

// Is позволяет errors.Is(err, ErrEditFailed)
func (e *EditError) Is(target error) bool {
	return target == ErrEditFailed
}

func (e *EditError) Unwrap() error {
	return e.Err
}
