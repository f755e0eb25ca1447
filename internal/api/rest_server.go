// Package api предоставляет REST-интерфейс команд границ для операторов
// и игроков, а также поток уведомлений об отказах правок.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/vertical-border/internal/auth"
	"github.com/annel0/vertical-border/internal/config"
	"github.com/annel0/vertical-border/internal/controller"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/middleware"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	controller *controller.Controller
	registry   registry.Registry
	tokens     *auth.TokenService
	runtime    *config.Runtime
	hub        *NotificationHub
	metrics    *ServerMetrics
	logger     *logging.Logger

	port       string
	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port       string // порт для запуска сервера
	Controller *controller.Controller
	Registry   registry.Registry
	Tokens     *auth.TokenService
	Runtime    *config.Runtime  // nil отключает /admin/reload
	Hub        *NotificationHub // nil отключает поток уведомлений
	// Registerer для HTTP-метрик; nil означает дефолтный регистр
	Registerer prometheus.Registerer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Controller == nil || cfg.Registry == nil || cfg.Tokens == nil {
		return nil, errors.New("api: controller, registry и tokens обязательны")
	}
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("border_api"))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw, err := middleware.NewPrometheusMiddleware("border_api", cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("api: метрики HTTP: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	rs := &RestServer{
		router:     router,
		controller: cfg.Controller,
		registry:   cfg.Registry,
		tokens:     cfg.Tokens,
		runtime:    cfg.Runtime,
		hub:        cfg.Hub,
		metrics:    NewServerMetrics(),
		logger:     logging.GetAPILogger(),
		port:       cfg.Port,
	}
	rs.setupRoutes()
	return rs, nil
}

// Handler http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Health check
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.Use(rs.jwtMiddleware())

	// Команды игрока: только свой регион
	player := api.Group("/border/:region")
	player.Use(rs.memberMiddleware())
	{
		player.GET("", rs.handleInfo)
		player.POST("/toggle", rs.handlePlayerToggle)
	}

	// Команды оператора
	admin := api.Group("/admin")
	admin.Use(rs.adminMiddleware())
	{
		admin.GET("/border/:region", rs.handleInfo)
		admin.POST("/border/:region/height", rs.handleSetHeight)
		admin.POST("/border/:region/adjust", rs.handleAdjustHeight)
		admin.POST("/border/:region/toggle", rs.handleToggle)
		admin.POST("/border/:region/update", rs.handleRelocate)
		admin.POST("/border/:region/refresh", rs.handleRefresh)
		admin.POST("/reload", rs.handleReload)
		if rs.hub != nil {
			admin.GET("/notifications", rs.hub.Handle)
		}
	}
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rs.logger.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	return rs.httpServer.Shutdown(ctx)
}
