package border

import (
	"errors"
	"fmt"
)

var (
	// ErrInverted потолок оказался бы не выше пола
	ErrInverted = errors.New("потолок должен быть выше пола")
	// ErrOutOfBounds значение за вертикальными пределами мира
	ErrOutOfBounds = errors.New("высота за пределами мира")
)

// HeightError отказ в изменении высоты с подробностями для пользователя
type HeightError struct {
	Plane   Plane
	Value   int // запрошенное значение
	Current int // текущее значение плоскости
	Limits  Limits
	Err     error // ErrInverted или ErrOutOfBounds
}

func (e *HeightError) Error() string {
	if errors.Is(e.Err, ErrOutOfBounds) {
		return fmt.Sprintf("%s=%d: %v (допустимо %d..%d, текущее %d)",
			e.Plane, e.Value, e.Err, e.Limits.MinY, e.Limits.MaxY, e.Current)
	}
	return fmt.Sprintf("%s=%d: %v (текущее %d)", e.Plane, e.Value, e.Err, e.Current)
}

func (e *HeightError) Unwrap() error {
	return e.Err
}

// ValidateHeight проверяет новое значение плоскости относительно записи.
// Сначала проверяются пределы мира, затем порядок потолок > пол.
func ValidateHeight(r Record, p Plane, value int, l Limits) error {
	current := r.Height(p)
	if !l.Contains(value) {
		return &HeightError{Plane: p, Value: value, Current: current, Limits: l, Err: ErrOutOfBounds}
	}
	switch p {
	case PlaneTop:
		if value <= r.BottomY {
			return &HeightError{Plane: p, Value: value, Current: current, Limits: l, Err: ErrInverted}
		}
	case PlaneBottom:
		if value >= r.TopY {
			return &HeightError{Plane: p, Value: value, Current: current, Limits: l, Err: ErrInverted}
		}
	default:
		return fmt.Errorf("неизвестная плоскость %q", p)
	}
	return nil
}

// WithHeight возвращает копию записи с новым значением плоскости
func (r Record) WithHeight(p Plane, value int) Record {
	if p == PlaneTop {
		r.TopY = value
	} else {
		r.BottomY = value
	}
	return r
}
