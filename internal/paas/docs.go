package paas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# TradeSetup Service

Intraday setup pipeline: STEP-1 market context, STEP-2 open behavior,
STEP-3 execution control and candidates, STEP-4 trade construction.
Each step freezes once per trade date and gates the next. Frozen trades
seed the trade journal (plan, execute, exit, review).

## Access via PaaS

Base path (through gateway):
- /api/v1/services/tradesetup/

All /api/* routes require a Bearer token (validated by the PaaS gateway).
Health and metrics endpoints are public.

## Routes

- GET  /healthz, /readyz, /metrics
- GET  /swagger/index.html
- POST /api/v1/step1/{date}/preview, POST /api/v1/step1/{date}/freeze, GET /api/v1/step1/{date}
- POST /api/v1/step2/{date}/preview, POST /api/v1/step2/{date}/freeze, GET /api/v1/step2/{date}
- POST /api/v1/step3/{date}/execution, GET /api/v1/step3/{date}/universe
- POST /api/v1/step3/{date}/compute, POST /api/v1/step3/{date}/freeze, GET /api/v1/step3/{date}
- POST /api/v1/step4/{date}/{symbol}/preview, POST /api/v1/step4/{date}/{symbol}/freeze
- GET  /api/v1/step4/{date}, GET /api/v1/step4/{date}/{symbol}
- GET  /api/v1/trade-days, GET /api/v1/trade-days/{date}
- GET  /api/v1/journal/plans, POST /api/v1/journal/plans, GET /api/v1/journal/plans/{id}
- POST /api/v1/journal/plans/{id}/not-taken, POST /api/v1/journal/plans/{id}/execute
- GET  /api/v1/journal/trades/{id}, POST /api/v1/journal/trades/{id}/exit, POST /api/v1/journal/trades/{id}/review
- GET  /api/v1/journal/calendar
- GET  /api/v1/system-settings, PUT /api/v1/system-settings/switches/{name}
- GET  /api/v1/events/ws (websocket)
`)
	})
}
