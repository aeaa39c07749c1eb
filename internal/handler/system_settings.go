package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/repository"
	"tradesetup/internal/service"
)

type SystemSettingsHandler struct {
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
}

func (h *SystemSettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/system-settings")
	g.GET("", h.list)
	g.GET("/switches/:name", h.getSwitch)
	g.PUT("/switches/:name", h.putSwitch)
}

// @Summary List system settings
// @Tags system-settings
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param prefix query string false "key prefix"
// @Success 200 {object} apiResponse
// @Router /api/v1/system-settings [get]
func (h *SystemSettingsHandler) list(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 200)
	offset := intQuery(c, "offset", 0)
	var prefix *string
	if v := strings.TrimSpace(c.Query("prefix")); v != "" {
		prefix = &v
	}
	items, total, err := h.Settings.List(c.Request.Context(), repository.ListSystemSettingsParams{
		Limit:   limit,
		Offset:  offset,
		Prefix:  prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get a feature switch
// @Tags system-settings
// @Param name path string true "switch name without the feature. prefix"
// @Success 200 {object} apiResponse
// @Router /api/v1/system-settings/switches/{name} [get]
func (h *SystemSettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	key := "feature." + name
	Ok(c, map[string]any{
		"name":    name,
		"key":     key,
		"enabled": h.Settings.IsEnabled(c.Request.Context(), key, false),
	}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Toggle a feature switch
// @Tags system-settings
// @Param name path string true "switch name without the feature. prefix"
// @Param body body putSwitchRequest true "enabled flag"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/system-settings/switches/{name} [put]
func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body", map[string]any{"error_code": "INVALID_BODY"})
		return
	}
	key := "feature." + name
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		Fail(c, h.Logger, err)
		return
	}
	Ok(c, map[string]any{
		"name":    name,
		"key":     key,
		"enabled": *req.Enabled,
	}, nil)
}
