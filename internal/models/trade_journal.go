package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradePlan is a journal entry for one intended trade. Plans seeded from a
// frozen STEP-4 trade carry its trade id in SourceTradeID.
type TradePlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	SourceTradeID *string `gorm:"type:varchar(36);uniqueIndex"`
	TradeLogID    *uint64 `gorm:"uniqueIndex"`

	PlanDate     time.Time `gorm:"type:date;not null;index"`
	TradeMode    string    `gorm:"type:varchar(10);not null"`
	Symbol       string    `gorm:"type:varchar(32);not null;index"`
	Strategy     string    `gorm:"type:varchar(64);not null"`
	PositionType string    `gorm:"type:varchar(10);not null"`

	SetupDescription string  `gorm:"type:text;not null"`
	EntryTrigger     *string `gorm:"type:varchar(64)"`

	PlannedEntryPrice   decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	PlannedStopPrice    decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	PlannedTargetPrice  *decimal.Decimal `gorm:"type:decimal(18,6)"`
	PlannedRiskAmount   decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	PlannedPositionSize int64            `gorm:"not null"`

	PlanStatus     string  `gorm:"type:varchar(12);not null;index"`
	NotTakenReason *string `gorm:"type:varchar(128)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TradePlan) TableName() string {
	return "journal_trade_plans"
}

// TradeLog is an executed plan. The P&L columns are filled on exit.
type TradeLog struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	PlanID uint64 `gorm:"not null;uniqueIndex"`

	TradeDate    time.Time `gorm:"type:date;not null;index"`
	Symbol       string    `gorm:"type:varchar(32);not null;index"`
	Side         string    `gorm:"type:varchar(4);not null"`
	PositionType string    `gorm:"type:varchar(10);not null"`
	Strategy     string    `gorm:"type:varchar(64)"`
	Source       string    `gorm:"type:varchar(10);not null"`
	Quantity     int64     `gorm:"not null"`

	EntryPrice decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	EnteredAt  time.Time       `gorm:"not null"`

	ExitPrice  *decimal.Decimal `gorm:"type:decimal(18,6)"`
	ExitReason *string          `gorm:"type:varchar(128)"`
	ExitedAt   *time.Time
	Fees       decimal.Decimal `gorm:"type:decimal(18,6);not null"`

	PnLAmount       *decimal.Decimal `gorm:"column:pnl_amount;type:decimal(24,6)"`
	PnLPct          *decimal.Decimal `gorm:"column:pnl_pct;type:decimal(9,4)"`
	Result          string           `gorm:"type:varchar(10);not null;index"`
	DurationSeconds *int64

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TradeLog) TableName() string {
	return "journal_trade_logs"
}

// TradeReview is the one post-exit review of an executed trade.
type TradeReview struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	TradeLogID uint64 `gorm:"not null;uniqueIndex"`
	Symbol     string `gorm:"type:varchar(32);not null"`

	ExitReason             string `gorm:"type:varchar(20);not null"`
	FollowedEntryRules     bool   `gorm:"not null"`
	FollowedStopRules      bool   `gorm:"not null"`
	FollowedPositionSizing bool   `gorm:"not null"`
	EmotionalState         string `gorm:"type:varchar(12);not null"`
	MarketContext          string `gorm:"type:varchar(16);not null"`
	LearningInsight        string `gorm:"type:text;not null"`
	TradeGrade             string `gorm:"type:varchar(1);not null;index"`

	ReviewedAt time.Time `gorm:"not null"`
}

func (TradeReview) TableName() string {
	return "journal_trade_reviews"
}
