package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/annel0/vertical-border/internal/auth"
	"github.com/annel0/vertical-border/internal/config"
	"github.com/annel0/vertical-border/internal/eventbus"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"github.com/annel0/vertical-border/internal/vec"
)

func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML конфигурации (или BORDER_CONFIG)")
		command    = flag.String("cmd", "", "Команда: export, import, token, secret, emit")
		file       = flag.String("file", "borders.json.zst", "Файл снимка для export/import")
		actor      = flag.String("actor", "", "Идентификатор актёра для token")
		admin      = flag.Bool("admin", false, "Токен оператора")
		ttl        = flag.Duration("ttl", 24*time.Hour, "Срок действия токена")
		event      = flag.String("event", "", "Тип события для emit: created, deleted, reset, moved, chunk, move")
		region     = flag.String("region", "", "Идентификатор региона")
		worldName  = flag.String("world", "world", "Мир")
		x          = flag.Int("x", 0, "X центра региона / чанка / позиции")
		y          = flag.Int("y", 0, "Y позиции (для move)")
		z          = flag.Int("z", 0, "Z центра региона / чанка / позиции")
		radius     = flag.Int("radius", 50, "Радиус защиты региона")
		owner      = flag.String("owner", "", "Владелец региона")
		members    = flag.String("members", "", "Участники региона (через запятую)")
	)
	flag.Parse()

	cfg, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch *command {
	case "export":
		err = exportRecords(ctx, cfg, *file)
	case "import":
		err = importRecords(ctx, cfg, *file)
	case "token":
		err = issueToken(cfg, *actor, *admin, *ttl)
	case "secret":
		var secret string
		if secret, err = auth.GenerateSecureSecret(); err == nil {
			fmt.Println(secret)
		}
	case "emit":
		g := registry.Geometry{World: *worldName, CenterX: *x, CenterZ: *z, Radius: *radius}
		err = emit(ctx, cfg, *event, *region, g, *owner, parseStringList(*members), vec.Vec3{X: *x, Y: *y, Z: *z})
	default:
		fmt.Printf("❌ Неизвестная команда: %q\n", *command)
		fmt.Println("Доступные команды: export, import, token, secret, emit")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s: %v", *command, err)
	}
}

// exportRecords выгружает записи хранилища в сжатый снимок
func exportRecords(ctx context.Context, cfg *config.Config, path string) error {
	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := storage.ExportSnapshot(ctx, repo, path)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Выгружено записей: %d → %s\n", n, path)
	return nil
}

// importRecords загружает снимок в хранилище; сервис должен быть остановлен
func importRecords(ctx context.Context, cfg *config.Config, path string) error {
	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := storage.ImportSnapshot(ctx, repo, path)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Загружено записей: %d ← %s\n", n, path)
	return nil
}

func issueToken(cfg *config.Config, actor string, admin bool, ttl time.Duration) error {
	if actor == "" {
		return fmt.Errorf("не задан -actor")
	}
	secret := cfg.Auth.GetJWTSecret()
	if secret == "" {
		return fmt.Errorf("не задан auth.jwt_secret (или %s): токен не примет ни один сервер", config.EnvJWTSecret)
	}
	tokens, err := auth.NewTokenService(secret, ttl)
	if err != nil {
		return err
	}
	token, err := tokens.Generate(actor, admin)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// emit публикует событие жизненного цикла или перемещения в JetStream
func emit(ctx context.Context, cfg *config.Config, kind, regionID string, g registry.Geometry, owner string, members []string, pos vec.Vec3) error {
	if cfg.EventBus.URL == "" {
		return fmt.Errorf("не задан eventbus.url")
	}

	var (
		eventType string
		payload   any
	)
	switch kind {
	case "created":
		eventType = eventbus.TypeRegionCreated
		payload = eventbus.RegionCreated{RegionID: regionID, Geometry: g, Owner: owner, Members: members}
	case "deleted":
		eventType = eventbus.TypeRegionDeleted
		payload = eventbus.RegionDeleted{RegionID: regionID}
	case "reset":
		eventType = eventbus.TypeRegionReset
		payload = eventbus.RegionReset{RegionID: regionID, Geometry: g, Owner: owner, Members: members}
	case "moved":
		eventType = eventbus.TypeRegionMoved
		payload = eventbus.RegionMoved{RegionID: regionID, Geometry: g}
	case "chunk":
		eventType = eventbus.TypeChunkLoaded
		payload = eventbus.ChunkLoaded{World: g.World, ChunkX: pos.X, ChunkZ: pos.Z}
	case "move":
		eventType = eventbus.TypeActorMoved
		// Шаг на блок вверх в указанную позицию
		from := vec.Vec3{X: pos.X, Y: pos.Y - 1, Z: pos.Z}
		payload = eventbus.ActorMoved{ActorID: owner, World: g.World, From: from.ToFloat(), To: pos.ToFloat()}
	default:
		return fmt.Errorf("неизвестное событие %q", kind)
	}
	if kind != "chunk" && kind != "move" && regionID == "" {
		return fmt.Errorf("не задан -region")
	}

	// Отдельный durable, чтобы утилита не забирала сообщения сервиса
	bus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, cfg.EventBus.Consumer+"-tool", cfg.EventBus.RetentionDuration())
	if err != nil {
		return err
	}
	defer bus.Close()

	ev, err := eventbus.NewEnvelope(eventType, "border-tool", 5, payload)
	if err != nil {
		return err
	}
	if err := bus.Publish(ctx, ev); err != nil {
		return err
	}
	fmt.Printf("📨 %s %s опубликовано\n", eventType, ev.ID)
	return nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
