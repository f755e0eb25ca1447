package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/vertical-border/internal/api"
	"github.com/annel0/vertical-border/internal/auth"
	"github.com/annel0/vertical-border/internal/config"
	"github.com/annel0/vertical-border/internal/controller"
	"github.com/annel0/vertical-border/internal/edit"
	"github.com/annel0/vertical-border/internal/enforce"
	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/logging"
	"github.com/annel0/vertical-border/internal/metrics"
	"github.com/annel0/vertical-border/internal/observability"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"github.com/annel0/vertical-border/internal/world"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или BORDER_CONFIG)")
	flag.Parse()

	cfg, path, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// === ЛОГИРОВАНИЕ ===
	if cfg.Logging.Files {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
	}
	logging.GetLoggerManager().EnableFileOutput(cfg.Logging.Files)
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Logging.Level), logging.DEBUG)
	defer logging.GetLoggerManager().CloseAll()

	if path != "" {
		logging.Info("📄 Конфигурация: %s", path)
	}
	logging.Info("🧱 Запуск сервиса вертикальных границ...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.NewRuntime(cfg, path)); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	logging.Info("👋 Сервис успешно остановлен")
}

func run(ctx context.Context, rt *config.Runtime) error {
	cfg := rt.Current()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()

	borderMetrics, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("метрики: %w", err)
	}

	// === ХРАНИЛИЩЕ ===
	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	store := storage.NewBoundaryStore(repo, time.Duration(cfg.Storage.WriteTimeoutSeconds)*time.Second)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Close(sctx); err != nil {
			logging.Error("❌ Ошибка сохранения записей: %v", err)
		}
	}()
	n, err := store.Preload(ctx)
	if err != nil {
		return fmt.Errorf("загрузка записей: %w", err)
	}
	logging.Info("📦 Загружено записей границ: %d (%s)", n, cfg.Storage.Backend)

	// === ШИНА СОБЫТИЙ ===
	var (
		bus    eventbus.EventBus
		jetBus *eventbus.JetStreamBus
	)
	if cfg.EventBus.URL != "" {
		jetBus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, cfg.EventBus.Consumer, cfg.EventBus.RetentionDuration())
		if err != nil {
			return fmt.Errorf("шина событий: %w", err)
		}
		bus = jetBus
		logging.Info("📡 JetStream: %s (stream %s)", cfg.EventBus.URL, cfg.EventBus.Stream)
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Warn("⚠️ eventbus.url не задан: используется шина в памяти")
	}
	defer bus.Close()

	busMetrics, err := eventbus.NewMetricsExporter(bus, nil)
	if err != nil {
		return fmt.Errorf("метрики шины: %w", err)
	}
	busMetrics.Start()
	defer busMetrics.Stop()

	if sub, err := eventbus.StartLoggingListener(bus); err == nil {
		defer sub.Unsubscribe()
	}

	// === ПРАВКИ МИРА ===
	var backend edit.Backend
	switch cfg.Barriers.Backend {
	case "nats":
		if jetBus == nil {
			return errors.New("barriers.backend=nats требует eventbus.url")
		}
		nb, err := edit.NewNATSBackend(jetBus.Conn(), cfg.Barriers.NATSSubject, cfg.Barriers.EditTimeout())
		if err != nil {
			return fmt.Errorf("бэкенд правок: %w", err)
		}
		backend = nb
	default:
		backend = world.NewUniverse(cfg.Limits())
	}
	engine := edit.NewEngine(backend, edit.Options{
		Workers:          cfg.Barriers.EditWorkers,
		PlacementEnabled: cfg.Barriers.PlaceBarrierBlocks,
		Metrics:          borderMetrics,
	})
	defer engine.Close()

	// === КОНТРОЛЛЕР ===
	mirror := registry.NewMirror()
	journal, err := storage.OpenRegionJournal(cfg.Storage)
	if err != nil {
		return fmt.Errorf("журнал регионов: %w", err)
	}
	if journal != nil {
		defer journal.Close()
		if _, err := mirror.Restore(journal); err != nil {
			return err
		}
	}
	ctrl, err := controller.New(store, engine, mirror, controller.Options{
		Limits:            cfg.Limits(),
		Defaults:          rt.Defaults,
		EditTimeout:       cfg.Barriers.EditTimeout(),
		ChunkDebounce:     cfg.Barriers.ChunkDebounce(),
		RepairOnChunkLoad: cfg.Barriers.RegenerateOnChunkLoad,
		Metrics:           borderMetrics,
		Notifier:          controller.NewBusNotifier(bus),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Barriers.EditTimeout())
		defer cancel()
		if err := ctrl.Close(sctx); err != nil {
			logging.Warn("⚠️ Правки не завершены до остановки: %v", err)
		}
	}()

	lifecycle, err := controller.SubscribeLifecycle(ctx, bus, ctrl, mirror, rt.WorldDisabled)
	if err != nil {
		return fmt.Errorf("подписка на жизненный цикл: %w", err)
	}
	defer lifecycle.Unsubscribe()

	enforcer := enforce.New(store, mirror, enforceSettings(rt), borderMetrics)
	moves, err := enforce.Subscribe(ctx, bus, enforcer, rt.WorldDisabled)
	if err != nil {
		return fmt.Errorf("подписка на перемещения: %w", err)
	}
	defer moves.Unsubscribe()

	rt.OnReload(func(c *config.Config) {
		enforcer.SetSettings(enforceSettings(rt))
		ctrl.SetRepairOnChunkLoad(c.Barriers.RegenerateOnChunkLoad)
		engine.SetPlacementEnabled(c.Barriers.PlaceBarrierBlocks)
	})

	// === REST API ===
	tokens, err := auth.NewTokenService(cfg.Auth.GetJWTSecret(), 24*time.Hour)
	if err != nil {
		return fmt.Errorf("JWT: %w", err)
	}
	hub := api.NewNotificationHub()
	if err := hub.Attach(ctx, bus); err != nil {
		return fmt.Errorf("уведомления: %w", err)
	}
	defer hub.Close()

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	rest, err := api.NewRestServer(api.Config{
		Port:       restPort,
		Controller: ctrl,
		Registry:   mirror,
		Tokens:     tokens,
		Runtime:    rt,
		Hub:        hub,
	})
	if err != nil {
		return err
	}

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() { errCh <- rest.Start() }()
	go func() {
		logging.Info("📊 Prometheus метрики на %s/metrics", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ Ошибка HTTP сервера: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rest.Stop(sctx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	_ = metricsServer.Shutdown(sctx)
	return nil
}

func enforceSettings(rt *config.Runtime) enforce.Settings {
	c := rt.Current()
	return enforce.Settings{
		TeleportBack:     c.Enforcement.TeleportBack,
		TeleportDistance: c.Enforcement.TeleportDistance,
		Defaults:         rt.Defaults,
	}
}
