package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/vertical-border/internal/auth"
	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/config"
	"github.com/annel0/vertical-border/internal/controller"
	"github.com/annel0/vertical-border/internal/edit"
	"github.com/annel0/vertical-border/internal/registry"
	"github.com/annel0/vertical-border/internal/storage"
	"github.com/annel0/vertical-border/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = border.Limits{MinY: 0, MaxY: 32}

type testServer struct {
	rs      *RestServer
	tokens  *auth.TokenService
	mirror  *registry.Mirror
	ctrl    *controller.Controller
	runtime *config.Runtime
	cfgPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.World = config.WorldConfig{MinY: testLimits.MinY, MaxY: testLimits.MaxY}
	cfg.Defaults = config.DefaultsConfig{TopY: 28, BottomY: 4, CeilingEnabled: true, FloorEnabled: true}
	cfgPath := filepath.Join(t.TempDir(), "border.yaml")
	writeConfig(t, cfgPath, cfg)
	runtime := config.NewRuntime(cfg, cfgPath)

	u := world.NewUniverse(testLimits)
	engine := edit.NewEngine(u, edit.DefaultOptions())
	store := storage.NewBoundaryStore(storage.NewMemoryRecordRepo(), time.Second)
	mirror := registry.NewMirror()

	ctrl, err := controller.New(store, engine, mirror, controller.Options{
		Limits:      testLimits,
		Defaults:    runtime.Defaults,
		EditTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("", time.Hour)
	require.NoError(t, err)

	rs, err := NewRestServer(Config{
		Controller: ctrl,
		Registry:   mirror,
		Tokens:     tokens,
		Runtime:    runtime,
		Hub:        NewNotificationHub(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Close(ctx)
		engine.Close()
		_ = store.Close(ctx)
	})

	mirror.Upsert(registry.Region{
		ID:       "r1",
		Geometry: registry.Geometry{World: "w", CenterX: 0, CenterZ: 0, Radius: 2},
		Owner:    "alice",
		Members:  []string{"bob"},
	})
	return &testServer{rs: rs, tokens: tokens, mirror: mirror, ctrl: ctrl, runtime: runtime, cfgPath: cfgPath}
}

func writeConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	// JSON является подмножеством YAML
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func (s *testServer) token(t *testing.T, actor string, admin bool) string {
	t.Helper()
	tok, err := s.tokens.Generate(actor, admin)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.rs.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func dataMap(t *testing.T, resp GenericResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data: %#v", resp.Data)
	return m
}

func TestRestServer_Health(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	process, ok := body["process"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, process, "alloc_mb")
	assert.Greater(t, process["goroutines"], float64(0))
}

func TestRestServer_Auth(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/border/r1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/border/r1", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Не участник
	w, _ = s.do(t, http.MethodGet, "/api/border/r1", s.token(t, "mallory", false), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Игрок не может вызывать команды оператора
	w, _ = s.do(t, http.MethodPost, "/api/admin/border/r1/refresh", s.token(t, "alice", false), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/border/unknown", s.token(t, "alice", false), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRestServer_MemberInfo(t *testing.T) {
	s := newTestServer(t)

	for _, actor := range []string{"alice", "bob"} {
		w, resp := s.do(t, http.MethodGet, "/api/border/r1", s.token(t, actor, false), nil)
		require.Equal(t, http.StatusOK, w.Code, actor)
		require.True(t, resp.Success)

		data := dataMap(t, resp)
		assert.Equal(t, "r1", data["region_id"])
		assert.EqualValues(t, 28, data["top_y"])
		assert.EqualValues(t, 4, data["bottom_y"])
		assert.EqualValues(t, 24, data["height_range"])
		assert.EqualValues(t, 32, data["world_max_y"])
		assert.Nil(t, data["last_placement"])
	}
}

func TestRestServer_SetHeight(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/height?wait=true", admin,
		HeightRequest{Plane: "top", Value: intPtr(20)})
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	assert.EqualValues(t, 20, data["value"])
	edit, ok := data["edit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, edit["applied"])

	rec, err := s.ctrl.GetRecord(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.TopY)

	t.Run("out of bounds", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/height", admin,
			HeightRequest{Plane: "top", Value: intPtr(100)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "out_of_bounds", resp.Reason)
	})

	t.Run("inverted", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/height", admin,
			HeightRequest{Plane: "bottom", Value: intPtr(20)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "inverted", resp.Reason)
	})

	t.Run("bad plane", func(t *testing.T) {
		w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/height", admin,
			HeightRequest{Plane: "middle", Value: intPtr(5)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", resp.Reason)
	})

	t.Run("missing value", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/admin/border/r1/height", admin, map[string]string{"plane": "top"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRestServer_AdjustHeight(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/adjust", admin, AdjustRequest{Plane: "bottom", Delta: 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, dataMap(t, resp)["value"])

	w, resp = s.do(t, http.MethodPost, "/api/admin/border/r1/adjust", admin, AdjustRequest{Plane: "bottom", Delta: -10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "out_of_bounds", resp.Reason)
}

func TestRestServer_Toggle(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/toggle", admin, ToggleRequest{Target: "ceiling"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataMap(t, resp)["enabled"])

	w, _ = s.do(t, http.MethodPost, "/api/admin/border/r1/toggle", admin, ToggleRequest{Target: "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Игрок переключает границу целиком
	w, resp = s.do(t, http.MethodPost, "/api/border/r1/toggle", s.token(t, "bob", false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	assert.Equal(t, string(border.ToggleAll), data["target"])
	assert.Equal(t, false, data["enabled"])

	rec, err := s.ctrl.GetRecord(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, rec.BorderEnabled)
	assert.False(t, rec.CeilingEnabled)
}

func TestRestServer_Relocate(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	w, resp := s.do(t, http.MethodPost, "/api/admin/border/unknown/update", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_region", resp.Reason)

	// Первая установка барьеров
	w, _ = s.do(t, http.MethodPost, "/api/admin/border/r1/update?wait=true", admin, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/admin/border/r1/update", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_change", resp.Reason)

	w, resp = s.do(t, http.MethodGet, "/api/admin/border/r1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	placement, ok := dataMap(t, resp)["last_placement"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "w", placement["world"])
	assert.EqualValues(t, 2, placement["range"])

	s.mirror.Move("r1", registry.Geometry{World: "w", CenterX: 10, CenterZ: 0, Radius: 2})
	w, _ = s.do(t, http.MethodPost, "/api/admin/border/r1/update?wait=true", admin, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	_, _, err := s.ctrl.Toggle(context.Background(), "r1", border.ToggleAll)
	require.NoError(t, err)
	s.mirror.Move("r1", registry.Geometry{World: "w", CenterX: 20, CenterZ: 0, Radius: 2})
	w, resp = s.do(t, http.MethodPost, "/api/admin/border/r1/update", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "border_disabled", resp.Reason)
}

func TestRestServer_Refresh(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	w, resp := s.do(t, http.MethodPost, "/api/admin/border/r1/refresh?wait=true", admin, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	edit, ok := dataMap(t, resp)["edit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, edit["applied"])
	assert.Nil(t, edit["error"])
}

func TestRestServer_Reload(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "op", true)

	var reloaded *config.Config
	s.runtime.OnReload(func(c *config.Config) { reloaded = c })

	next := config.Default()
	next.Defaults = config.DefaultsConfig{TopY: 30, BottomY: 2, CeilingEnabled: true, FloorEnabled: false}
	next.World = config.WorldConfig{MinY: -100, MaxY: 400}
	writeConfig(t, s.cfgPath, next)

	w, resp := s.do(t, http.MethodPost, "/api/admin/reload", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, reloaded)
	assert.Equal(t, 30, reloaded.Defaults.TopY)
	assert.Equal(t, testLimits.MaxY, reloaded.World.MaxY, "пределы мира не перезагружаются")

	defaults, ok := dataMap(t, resp)["defaults"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 30, defaults["top_y"])

	// Новые записи берут перезагруженные значения
	s.mirror.Upsert(registry.Region{ID: "r2", Geometry: registry.Geometry{World: "w", CenterX: 50, Radius: 2}})
	rec, err := s.ctrl.GetRecord(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, 30, rec.TopY)
	assert.False(t, rec.FloorEnabled)

	// Некорректный файл не меняет текущую конфигурацию
	require.NoError(t, os.WriteFile(s.cfgPath, []byte("defaults: [broken"), 0o600))
	w, resp = s.do(t, http.MethodPost, "/api/admin/reload", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_config", resp.Reason)
	assert.Equal(t, 30, s.runtime.Current().Defaults.TopY)
}

func TestNotificationHub_Broadcast(t *testing.T) {
	h := NewNotificationHub()
	client := &hubClient{send: make(chan []byte, 1)}
	h.clients[client] = struct{}{}

	h.Broadcast(Notification{Type: "BorderEditFailed", RegionID: "r1", Kind: "refresh", Error: "boom"})
	msg := <-client.send

	var n Notification
	require.NoError(t, json.Unmarshal(msg, &n))
	assert.Equal(t, "r1", n.RegionID)
	assert.Equal(t, "boom", n.Error)

	// Переполненный буфер отключает медленного клиента
	h.Broadcast(Notification{RegionID: "r1"})
	h.Broadcast(Notification{RegionID: "r1"})
	assert.Equal(t, 0, h.Clients())
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42с", formatUptime(42*time.Second))
	assert.Equal(t, "3м 5с", formatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "2ч 0м 1с", formatUptime(2*time.Hour+time.Second))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}

func intPtr(v int) *int { return &v }
