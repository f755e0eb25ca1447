// Package config загружает YAML-конфигурацию сервиса границ.
// Отсутствующие в файле значения берутся из Default().
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/storage"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath переменная окружения с путём к файлу конфигурации
const EnvConfigPath = "BORDER_CONFIG"

// EnvJWTSecret переменная окружения с секретом JWT
const EnvJWTSecret = "BORDER_JWT_SECRET"

// Config корневая структура конфигурации приложения
type Config struct {
	Defaults       DefaultsConfig    `yaml:"defaults" json:"defaults"`
	World          WorldConfig       `yaml:"world" json:"world"`
	Enforcement    EnforcementConfig `yaml:"enforcement" json:"enforcement"`
	Barriers       BarriersConfig    `yaml:"barriers" json:"barriers"`
	Storage        storage.Config    `yaml:"storage" json:"storage"`
	EventBus       EventBusConfig    `yaml:"eventbus" json:"eventbus"`
	Server         ServerConfig      `yaml:"server" json:"server"`
	Auth           AuthConfig        `yaml:"auth" json:"auth"`
	Telemetry      TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Logging        LoggingConfig     `yaml:"logging" json:"logging"`
	DisabledWorlds []string          `yaml:"disabled_worlds" json:"disabled_worlds"`
}

// DefaultsConfig значения для новых записей границ
type DefaultsConfig struct {
	TopY           int  `yaml:"top_y" json:"top_y"`
	BottomY        int  `yaml:"bottom_y" json:"bottom_y"`
	CeilingEnabled bool `yaml:"ceiling_enabled" json:"ceiling_enabled"`
	FloorEnabled   bool `yaml:"floor_enabled" json:"floor_enabled"`
}

// WorldConfig вертикальные пределы мира (max_y исключительно)
type WorldConfig struct {
	MinY int `yaml:"min_y" json:"min_y"`
	MaxY int `yaml:"max_y" json:"max_y"`
}

type EnforcementConfig struct {
	TeleportBack     bool `yaml:"teleport_back" json:"teleport_back"`
	TeleportDistance int  `yaml:"teleport_distance" json:"teleport_distance"`
}

// BarriersConfig физические барьеры
type BarriersConfig struct {
	PlaceBarrierBlocks    bool   `yaml:"place_barrier_blocks" json:"place_barrier_blocks"`
	RegenerateOnChunkLoad bool   `yaml:"regenerate_on_chunk_load" json:"regenerate_on_chunk_load"`
	ChunkDebounceMs       int    `yaml:"chunk_debounce_ms" json:"chunk_debounce_ms"`
	EditTimeoutSeconds    int    `yaml:"edit_timeout_seconds" json:"edit_timeout_seconds"`
	EditWorkers           int    `yaml:"edit_workers" json:"edit_workers"`
	Backend               string `yaml:"backend" json:"backend"` // memory | nats
	NATSSubject           string `yaml:"nats_subject" json:"nats_subject"`
}

type EventBusConfig struct {
	URL       string `yaml:"url" json:"url"`
	Stream    string `yaml:"stream" json:"stream"`
	Consumer  string `yaml:"consumer" json:"consumer"`
	Retention int    `yaml:"retention_hours" json:"retention_hours"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port" json:"rest_port"`
	MetricsPort int `yaml:"metrics_port" json:"metrics_port"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" json:"-"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Files bool   `yaml:"files" json:"files"`
}

// Default полная конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			TopY:           320,
			BottomY:        -64,
			CeilingEnabled: true,
			FloorEnabled:   true,
		},
		World: WorldConfig{MinY: border.DefaultLimits.MinY, MaxY: border.DefaultLimits.MaxY},
		Enforcement: EnforcementConfig{
			TeleportBack:     true,
			TeleportDistance: 2,
		},
		Barriers: BarriersConfig{
			PlaceBarrierBlocks:    true,
			RegenerateOnChunkLoad: true,
			ChunkDebounceMs:       250,
			EditTimeoutSeconds:    300,
			EditWorkers:           4,
			Backend:               "memory",
			NATSSubject:           "world.edit.replace",
		},
		Storage: storage.DefaultConfig(),
		EventBus: EventBusConfig{
			Stream:    "BORDER_EVENTS",
			Consumer:  "vertical-border",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{ServiceName: "vertical-border"},
		Logging:   LoggingConfig{Level: "info", Files: true},
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error
	if c.World.MinY >= c.World.MaxY {
		errs = append(errs, fmt.Errorf("world: min_y=%d должен быть меньше max_y=%d", c.World.MinY, c.World.MaxY))
	}
	lim := c.Limits()
	if !lim.Contains(c.Defaults.TopY) || !lim.Contains(c.Defaults.BottomY) {
		errs = append(errs, fmt.Errorf("defaults: высоты %d/%d вне пределов %d..%d",
			c.Defaults.TopY, c.Defaults.BottomY, lim.MinY, lim.MaxY))
	}
	if c.Defaults.TopY <= c.Defaults.BottomY {
		errs = append(errs, fmt.Errorf("defaults: top_y=%d: %w", c.Defaults.TopY, border.ErrInverted))
	}
	if c.Enforcement.TeleportDistance < 0 {
		errs = append(errs, fmt.Errorf("enforcement: отрицательный teleport_distance"))
	}
	switch c.Barriers.Backend {
	case "memory", "nats":
	default:
		errs = append(errs, fmt.Errorf("barriers: неизвестный backend %q", c.Barriers.Backend))
	}
	if c.Barriers.Backend == "nats" && c.EventBus.URL == "" {
		errs = append(errs, errors.New("barriers: backend nats требует eventbus.url"))
	}
	return errors.Join(errs...)
}

// Limits вертикальные пределы мира
func (c *Config) Limits() border.Limits {
	return border.Limits{MinY: c.World.MinY, MaxY: c.World.MaxY}
}

// BorderDefaults значения для новых записей
func (c *Config) BorderDefaults() border.Defaults {
	return border.Defaults{
		TopY:           c.Defaults.TopY,
		BottomY:        c.Defaults.BottomY,
		CeilingEnabled: c.Defaults.CeilingEnabled,
		FloorEnabled:   c.Defaults.FloorEnabled,
	}
}

// WorldDisabled исключён ли мир из обработки
func (c *Config) WorldDisabled(world string) bool {
	for _, w := range c.DisabledWorlds {
		if w == world {
			return true
		}
	}
	return false
}

func (b *BarriersConfig) EditTimeout() time.Duration {
	return time.Duration(b.EditTimeoutSeconds) * time.Second
}

func (b *BarriersConfig) ChunkDebounce() time.Duration {
	return time.Duration(b.ChunkDebounceMs) * time.Millisecond
}

func (e *EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BORDER_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BORDER_METRICS_PORT", 2112)
}

// GetJWTSecret секрет из конфига или BORDER_JWT_SECRET
func (a *AuthConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv(EnvJWTSecret)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берётся BORDER_CONFIG; без файла возвращаются значения по умолчанию.
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := Default()
	if path == "" {
		return cfg, "", nil // конфиг не задан — использовать дефолты
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("чтение конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("разбор %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("конфигурация %s: %w", path, err)
	}
	return cfg, path, nil
}
