package controller

import "errors"

var (
	// ErrUnknownRegion регион отсутствует в реестре
	ErrUnknownRegion = errors.New("регион не найден в реестре")
	// ErrBorderDisabled граница региона выключена
	ErrBorderDisabled = errors.New("граница региона выключена")
	// ErrNoChange геометрия не изменилась с последней установки
	ErrNoChange = errors.New("геометрия региона не изменилась")
	// ErrClosed контроллер остановлен
	ErrClosed = errors.New("контроллер остановлен")
)
