package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesetup/internal/apperr"
	"tradesetup/internal/models"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail writes err using the error taxonomy. Infrastructure failures are
// logged in full and reported generically.
func Fail(c *gin.Context, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		if logger != nil {
			logger.Error("unhandled error", zap.String("route", c.FullPath()), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "internal error", map[string]any{"error_code": "INTERNAL"})
		return
	}
	meta := map[string]any{"error_code": e.Code}
	switch e.Kind {
	case apperr.KindValidation:
		Error(c, http.StatusBadRequest, e.Message, meta)
	case apperr.KindConflict:
		Error(c, http.StatusConflict, e.Message, meta)
	case apperr.KindNotFound:
		Error(c, http.StatusNotFound, e.Message, meta)
	case apperr.KindInfrastructure:
		if logger != nil {
			logger.Error("infrastructure failure", zap.String("route", c.FullPath()), zap.Error(err))
		}
		Error(c, http.StatusServiceUnavailable, e.Message, meta)
	default:
		Error(c, http.StatusInternalServerError, "internal error", map[string]any{"error_code": "INTERNAL"})
	}
}

// tradeDateParam parses the :date path segment, writing a 400 on failure.
func tradeDateParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Param("date"))
	day, err := models.ParseTradeDate(raw)
	if err != nil {
		Error(c, http.StatusBadRequest, "trade_date must be YYYY-MM-DD", map[string]any{"error_code": "INVALID_TRADE_DATE"})
		return time.Time{}, false
	}
	return day, true
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), map[string]any{"error_code": "INVALID_BODY"})
		return false
	}
	return true
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func dateQueryPtr(c *gin.Context, key string) *time.Time {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if t, err := models.ParseTradeDate(val); err == nil {
			return &t
		}
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
