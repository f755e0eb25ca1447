package config

import (
	"sync"

	"github.com/annel0/vertical-border/internal/border"
)

// Runtime текущая конфигурация с перезагрузкой. Настройки, которые можно
// менять на лету (значения по умолчанию, реакция на пересечение, флаги
// барьеров, исключённые миры), читаются через него; остальное требует
// перезапуска.
type Runtime struct {
	mu       sync.RWMutex
	path     string
	cfg      *Config
	onReload []func(*Config)
}

// NewRuntime оборачивает загруженную конфигурацию
func NewRuntime(cfg *Config, path string) *Runtime {
	return &Runtime{cfg: cfg, path: path}
}

// Current снимок текущей конфигурации
func (r *Runtime) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Defaults реализует border.DefaultsProvider
func (r *Runtime) Defaults() border.Defaults {
	return r.Current().BorderDefaults()
}

// WorldDisabled исключён ли мир в текущей конфигурации
func (r *Runtime) WorldDisabled(world string) bool {
	return r.Current().WorldDisabled(world)
}

// OnReload регистрирует обработчик, вызываемый после успешной перезагрузки
func (r *Runtime) OnReload(fn func(*Config)) {
	r.mu.Lock()
	r.onReload = append(r.onReload, fn)
	r.mu.Unlock()
}

// Reload перечитывает файл. Пределы мира и хранилище не меняются:
// они переносятся из текущей конфигурации.
func (r *Runtime) Reload() (*Config, error) {
	r.mu.RLock()
	path, old := r.path, r.cfg
	r.mu.RUnlock()

	next, _, err := Load(path)
	if err != nil {
		return nil, err
	}
	next.World = old.World
	next.Storage = old.Storage
	next.EventBus = old.EventBus
	next.Server = old.Server
	if err := next.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cfg = next
	hooks := append([]func(*Config){}, r.onReload...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(next)
	}
	return next, nil
}
