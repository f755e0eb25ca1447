package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/vertical-border/internal/border"
	"github.com/annel0/vertical-border/internal/controller"
	"github.com/gin-gonic/gin"
)

// maxEditWait предел ожидания физических правок при ?wait=true
const maxEditWait = 30 * time.Second

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PlacementView геометрия последней установки барьеров
type PlacementView struct {
	World   string `json:"world"`
	CenterX int    `json:"center_x"`
	CenterZ int    `json:"center_z"`
	Range   int    `json:"range"`
}

// RecordView запись границы для ответа
type RecordView struct {
	RegionID       string         `json:"region_id"`
	TopY           int            `json:"top_y"`
	BottomY        int            `json:"bottom_y"`
	HeightRange    int            `json:"height_range"`
	BorderEnabled  bool           `json:"border_enabled"`
	CeilingEnabled bool           `json:"ceiling_enabled"`
	FloorEnabled   bool           `json:"floor_enabled"`
	CeilingActive  bool           `json:"ceiling_active"`
	FloorActive    bool           `json:"floor_active"`
	LastPlacement  *PlacementView `json:"last_placement"`
	WorldMinY      int            `json:"world_min_y"`
	WorldMaxY      int            `json:"world_max_y"`
}

// EditView результат физических правок
type EditView struct {
	// Applied=false: правки ещё выполняются
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// HeightRequest запрос setheight
type HeightRequest struct {
	Plane string `json:"plane" binding:"required"`
	Value *int   `json:"value" binding:"required"`
}

// AdjustRequest запрос adjustheight
type AdjustRequest struct {
	Plane string `json:"plane" binding:"required"`
	Delta int    `json:"delta"`
}

// ToggleRequest запрос toggle
type ToggleRequest struct {
	Target string `json:"target" binding:"required"`
}

func newRecordView(r border.Record, l border.Limits) RecordView {
	v := RecordView{
		RegionID:       r.RegionID,
		TopY:           r.TopY,
		BottomY:        r.BottomY,
		HeightRange:    r.HeightRange(),
		BorderEnabled:  r.BorderEnabled,
		CeilingEnabled: r.CeilingEnabled,
		FloorEnabled:   r.FloorEnabled,
		CeilingActive:  r.CeilingActive(),
		FloorActive:    r.FloorActive(),
		WorldMinY:      l.MinY,
		WorldMaxY:      l.MaxY,
	}
	if r.LocationInitialized {
		v.LastPlacement = &PlacementView{World: r.LastWorld, CenterX: r.LastCenterX, CenterZ: r.LastCenterZ, Range: r.LastRange}
	}
	return v
}

// editResult ждёт правки при ?wait=true; иначе сообщает текущее состояние
func editResult(c *gin.Context, p *controller.Pending) EditView {
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		ctx, cancel := context.WithTimeout(c.Request.Context(), maxEditWait)
		defer cancel()
		if err := p.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return EditView{}
			}
			return EditView{Applied: true, Error: err.Error()}
		}
		return EditView{Applied: true}
	}
	err, done := p.Err()
	v := EditView{Applied: done}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// writeError переводит ошибки контроллера в HTTP-ответ
func (rs *RestServer) writeError(c *gin.Context, err error) {
	status, reason := http.StatusInternalServerError, "internal"
	var he *border.HeightError
	switch {
	case errors.As(err, &he) && errors.Is(err, border.ErrOutOfBounds):
		status, reason = http.StatusBadRequest, "out_of_bounds"
	case errors.As(err, &he) && errors.Is(err, border.ErrInverted):
		status, reason = http.StatusBadRequest, "inverted"
	case errors.Is(err, controller.ErrUnknownRegion):
		status, reason = http.StatusNotFound, "unknown_region"
	case errors.Is(err, controller.ErrBorderDisabled):
		status, reason = http.StatusConflict, "border_disabled"
	case errors.Is(err, controller.ErrNoChange):
		status, reason = http.StatusConflict, "no_change"
	case errors.Is(err, controller.ErrClosed):
		status, reason = http.StatusServiceUnavailable, "closed"
	}
	if status == http.StatusInternalServerError {
		rs.logger.Error("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error(), Reason: reason})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: msg, Reason: "bad_request"})
}

// handleInfo возвращает запись границы (создаёт значения по умолчанию)
func (rs *RestServer) handleInfo(c *gin.Context) {
	rec, err := rs.controller.GetRecord(c.Request.Context(), c.Param("region"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Граница региона",
		Data:    newRecordView(rec, rs.controller.Limits()),
	})
}

func (rs *RestServer) handleSetHeight(c *gin.Context) {
	var req HeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	plane, err := border.ParsePlane(req.Plane)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	value, pending, err := rs.controller.SetHeight(c.Request.Context(), c.Param("region"), plane, *req.Value)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Высота установлена",
		Data:    gin.H{"plane": plane, "value": value, "edit": editResult(c, pending)},
	})
}

func (rs *RestServer) handleAdjustHeight(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	plane, err := border.ParsePlane(req.Plane)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	value, pending, err := rs.controller.AdjustHeight(c.Request.Context(), c.Param("region"), plane, req.Delta)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Высота изменена",
		Data:    gin.H{"plane": plane, "value": value, "edit": editResult(c, pending)},
	})
}

func (rs *RestServer) handleToggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса: "+err.Error())
		return
	}
	target, err := border.ParseToggleTarget(req.Target)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rs.toggle(c, target)
}

// handlePlayerToggle игрок переключает только границу целиком
func (rs *RestServer) handlePlayerToggle(c *gin.Context) {
	rs.toggle(c, border.ToggleAll)
}

func (rs *RestServer) toggle(c *gin.Context, target border.ToggleTarget) {
	state, pending, err := rs.controller.Toggle(c.Request.Context(), c.Param("region"), target)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние переключено",
		Data:    gin.H{"target": target, "enabled": state, "edit": editResult(c, pending)},
	})
}

// handleRelocate переносит барьеры на текущую геометрию (команда update)
func (rs *RestServer) handleRelocate(c *gin.Context) {
	pending, err := rs.controller.Relocate(c.Request.Context(), c.Param("region"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Перенос барьеров запущен",
		Data:    gin.H{"edit": editResult(c, pending)},
	})
}

func (rs *RestServer) handleRefresh(c *gin.Context) {
	pending, err := rs.controller.Refresh(c.Request.Context(), c.Param("region"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Обновление барьеров запущено",
		Data:    gin.H{"edit": editResult(c, pending)},
	})
}

func (rs *RestServer) handleReload(c *gin.Context) {
	if rs.runtime == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Перезагрузка недоступна"})
		return
	}
	cfg, err := rs.runtime.Reload()
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error(), Reason: "invalid_config"})
		return
	}
	rs.logger.Info("🔁 Конфигурация перезагружена")
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация перезагружена",
		Data: gin.H{
			"defaults":        cfg.Defaults,
			"enforcement":     cfg.Enforcement,
			"barriers":        cfg.Barriers,
			"disabled_worlds": cfg.DisabledWorlds,
		},
	})
}

// handleHealth состояние процесса и хранилища
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"process": rs.metrics.Snapshot(),
		"limits":  rs.controller.Limits(),
	})
}
