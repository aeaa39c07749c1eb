package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tradesetup/internal/config"
	"tradesetup/internal/metrics"
	"tradesetup/internal/paas"
)

type Registrar interface {
	Register(r *gin.Engine)
}

type RouterOptions struct {
	Server   config.ServerConfig
	PaaS     config.PaaSConfig
	Auditor  *paas.Auditor
	Metrics  *metrics.Metrics
	Handlers []Registrar
}

// NewRouter builds the engine with the shared middleware chain, the
// operational routes and every handler.
func NewRouter(opts RouterOptions) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(CORS())
	engine.Use(Metrics(opts.Metrics))
	engine.Use(paas.RequireBearerMiddleware(opts.PaaS))
	engine.Use(paas.WriteAuditMiddleware(opts.Auditor))
	engine.Use(WriteRateLimit(opts.Server.WriteRatePerSec, opts.Server.WriteBurst))

	for _, h := range opts.Handlers {
		if h != nil {
			h.Register(engine)
		}
	}
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	paas.RegisterDocs(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return engine
}
