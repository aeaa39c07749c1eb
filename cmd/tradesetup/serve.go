package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradesetup/internal/config"
	cronrunner "tradesetup/internal/cron"
	"tradesetup/internal/db"
	"tradesetup/internal/events"
	"tradesetup/internal/handler"
	"tradesetup/internal/marketdata"
	"tradesetup/internal/metrics"
	"tradesetup/internal/paas"
	gormrepository "tradesetup/internal/repository/gorm"
	"tradesetup/internal/service"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}

	m := metrics.New()
	bus := events.NewBus()
	auditor := initAuditor(cfg.PaaS, log)
	defer auditor.Close()

	// The journal seeds plans from frozen trades. Its Deps are set below
	// because they carry the publisher it is part of.
	journal := &service.JournalService{TradeMode: cfg.Journal.TradeMode}
	publishers := events.Multi{bus, journal}
	if auditor.Enabled() {
		publishers = append(publishers, auditor)
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis ping failed (events still published in-process)", zap.Error(err))
		}
		cancel()
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Redis.Channel))
	}

	var (
		provider    marketdata.Provider
		pinger      handler.Pinger
		breakerFunc func() string
	)
	if cfg.MarketData.Enabled {
		sqlProvider, err := marketdata.Open(cfg.MarketData)
		if err != nil {
			log.Warn("market data disabled", zap.Error(err))
		} else {
			defer sqlProvider.Close()
			guarded := marketdata.NewGuarded(sqlProvider, cfg.MarketData.Breaker, log)
			provider = guarded
			pinger = sqlProvider
			breakerFunc = guarded.State
		}
	}

	deps := service.Deps{
		Repo:     store,
		Provider: provider,
		Flags:    settingsSvc,
		Events:   events.Logged{Next: publishers, Logger: log},
		Metrics:  m,
		Logger:   log,
		Pipeline: cfg.Pipeline,
	}
	step1 := &service.Step1Service{Deps: deps}
	step2 := &service.Step2Service{Deps: deps}
	step3 := &service.Step3Service{Deps: deps, UniverseLimit: cfg.MarketData.UniverseLimit}
	step4 := &service.Step4Service{Deps: deps}
	days := &service.TradeDayService{Deps: deps}
	journal.Deps = deps

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := handler.NewRouter(handler.RouterOptions{
		Server:  cfg.Server,
		PaaS:    cfg.PaaS,
		Auditor: auditor,
		Metrics: m,
		Handlers: []handler.Registrar{
			&handler.HealthHandler{DB: dbConn.Gorm, MarketData: pinger, BreakerState: breakerFunc},
			&handler.Step1Handler{Service: step1, Logger: log},
			&handler.Step2Handler{Service: step2, Logger: log},
			&handler.Step3Handler{Service: step3, Logger: log},
			&handler.Step4Handler{Service: step4, Logger: log},
			&handler.TradeDayHandler{Step1: step1, Days: days, Logger: log},
			&handler.JournalHandler{Service: journal, Logger: log},
			&handler.SystemSettingsHandler{Settings: settingsSvc, Logger: log},
			&handler.EventStreamHandler{Bus: bus, Settings: settingsSvc, Logger: log},
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		var opts []cron.Option
		if loc, err := time.LoadLocation(cfg.Pipeline.Timezone); err == nil {
			opts = append(opts, cron.WithLocation(loc))
		}
		runner := cronrunner.New(log, ctx, opts...)
		monitor := &service.SessionMonitor{Days: days}
		if _, err := runner.Add("session_monitor", cfg.Cron.SessionMonitor, monitor.RunOnce); err != nil {
			log.Warn("cron register session monitor failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.Bool("market_data", provider != nil),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("paas_audit", auditor.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initAuditor(cfg config.PaaSConfig, log *zap.Logger) *paas.Auditor {
	client := paas.NewClient(cfg.BaseURL, cfg.APIKey)
	if client == nil {
		return paas.NewAuditor(nil, cfg.Agent, log)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Login(ctx); err != nil {
		log.Warn("paas login failed (audit disabled)", zap.Error(err))
		return paas.NewAuditor(nil, cfg.Agent, log)
	}
	log.Info("paas login ok")
	return paas.NewAuditor(client, cfg.Agent, log)
}
