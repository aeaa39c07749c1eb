package repository

import (
	"context"
	"errors"
	"time"

	"tradesetup/internal/models"
)

var (
	ErrAlreadyExists           = errors.New("already frozen")
	ErrMarketContextMissing    = errors.New("step1 market context not frozen")
	ErrOpenBehaviorMissing     = errors.New("step2 open behavior not frozen")
	ErrExecutionControlMissing = errors.New("step3 execution control not derived")
	ErrExecutionNotAllowed     = errors.New("step3 execution not allowed")
	ErrCandidateMissing        = errors.New("symbol is not a frozen step3 candidate")
	ErrConstructionMissing     = errors.New("step4 construction not found")
	ErrTradeFrozen             = errors.New("step4 trade already frozen")

	ErrPlanMissing     = errors.New("trade plan not found")
	ErrPlanNotPlanned  = errors.New("trade plan is no longer planned")
	ErrTradeLogMissing = errors.New("journal trade not found")
	ErrTradeExited     = errors.New("journal trade already exited")
	ErrTradeNotExited  = errors.New("journal trade not exited")
	ErrReviewExists    = errors.New("journal trade already reviewed")
)

// DeriveExecutionFunc builds the STEP-3A row from the locked predecessor rows.
type DeriveExecutionFunc func(mc *models.MarketContext, ob *models.OpenBehavior) (*models.ExecutionControl, error)

// BuildTradeFunc turns the locked construction into the trade to insert.
type BuildTradeFunc func(c *models.TradeConstruction) (*models.Trade, error)

// PipelineRepository persists the STEP-1..STEP-4 rows. Every Freeze* call is
// one transaction: predecessor rows are read under lock and the write is
// guarded by the table's key, so a freeze either inserts or fails whole.
type PipelineRepository interface {
	FreezeMarketContext(ctx context.Context, item *models.MarketContext) error
	GetMarketContext(ctx context.Context, tradeDate time.Time) (*models.MarketContext, error)
	ListMarketContexts(ctx context.Context, params ListTradeDaysParams) ([]models.MarketContext, error)
	CountMarketContexts(ctx context.Context, params ListTradeDaysParams) (int64, error)

	FreezeOpenBehavior(ctx context.Context, item *models.OpenBehavior) error
	GetOpenBehavior(ctx context.Context, tradeDate time.Time) (*models.OpenBehavior, error)

	DeriveExecutionControl(ctx context.Context, tradeDate time.Time, derive DeriveExecutionFunc) (*models.ExecutionControl, error)
	GetExecutionControl(ctx context.Context, tradeDate time.Time) (*models.ExecutionControl, error)

	FreezeStockSelections(ctx context.Context, tradeDate time.Time, items []models.StockSelection, frozenAt time.Time) error
	ListStockSelections(ctx context.Context, tradeDate time.Time) ([]models.StockSelection, error)
	GetStockSelection(ctx context.Context, tradeDate time.Time, symbol string) (*models.StockSelection, error)

	SaveTradeConstruction(ctx context.Context, item *models.TradeConstruction) error
	GetTradeConstruction(ctx context.Context, tradeDate time.Time, symbol string) (*models.TradeConstruction, error)
	ListTradeConstructions(ctx context.Context, tradeDate time.Time) ([]models.TradeConstruction, error)

	FreezeTrade(ctx context.Context, tradeDate time.Time, symbol string, build BuildTradeFunc) (*models.Trade, error)
	GetTrade(ctx context.Context, tradeDate time.Time, symbol string) (*models.Trade, error)
	ListTrades(ctx context.Context, tradeDate time.Time) ([]models.Trade, error)
	CountTrades(ctx context.Context, tradeDate time.Time) (int64, error)
}

// ExecutePlanFunc builds the trade log for the locked, still planned plan.
type ExecutePlanFunc func(plan *models.TradePlan) (*models.TradeLog, error)

// ExitTradeFunc fills the exit columns of the locked, still open trade.
type ExitTradeFunc func(trade *models.TradeLog) error

// JournalRepository persists trade plans, their executions and reviews.
// State changes lock the row they move so each transition happens once.
type JournalRepository interface {
	InsertTradePlan(ctx context.Context, item *models.TradePlan) error
	GetTradePlan(ctx context.Context, id uint64) (*models.TradePlan, error)
	GetTradePlanBySourceTradeID(ctx context.Context, tradeID string) (*models.TradePlan, error)
	ListTradePlans(ctx context.Context, params ListTradePlansParams) ([]models.TradePlan, error)
	CountTradePlans(ctx context.Context, params ListTradePlansParams) (int64, error)
	MarkTradePlanNotTaken(ctx context.Context, id uint64, reason string) (*models.TradePlan, error)
	ExecuteTradePlan(ctx context.Context, id uint64, build ExecutePlanFunc) (*models.TradePlan, *models.TradeLog, error)

	GetTradeLog(ctx context.Context, id uint64) (*models.TradeLog, error)
	ListTradeLogs(ctx context.Context, params ListTradeLogsParams) ([]models.TradeLog, error)
	ExitTradeLog(ctx context.Context, id uint64, apply ExitTradeFunc) (*models.TradeLog, error)

	// InsertTradeReview returns the reviewed trade.
	InsertTradeReview(ctx context.Context, item *models.TradeReview) (*models.TradeLog, error)
	GetTradeReview(ctx context.Context, tradeLogID uint64) (*models.TradeReview, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type Repository interface {
	PipelineRepository
	JournalRepository
	SettingsRepository
}

type ListTradeDaysParams struct {
	Limit  int
	Offset int
	From   *time.Time
	To     *time.Time
	Asc    *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

type ListTradePlansParams struct {
	Limit  int
	Offset int
	From   *time.Time
	To     *time.Time
	Status *string
	Symbol *string
	Asc    *bool
}

type ListTradeLogsParams struct {
	From *time.Time
	To   *time.Time
	// OnlyExited narrows the list to closed trades.
	OnlyExited bool
}
