package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a frozen STEP-4 trade intent.
type Trade struct {
	TradeID string `gorm:"type:varchar(36);primaryKey"`

	TradeDate time.Time `gorm:"type:date;not null;uniqueIndex:uq_step4_trade_date_symbol,priority:1"`
	Symbol    string    `gorm:"type:varchar(32);not null;uniqueIndex:uq_step4_trade_date_symbol,priority:2"`

	Direction string `gorm:"type:varchar(10);not null"`
	SetupType string `gorm:"type:varchar(20);not null"`

	EntryPrice   decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	StopLoss     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RiskPerShare decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	TargetPrice  decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Quantity     int64           `gorm:"not null"`
	Capital      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RiskPercent  decimal.Decimal `gorm:"type:decimal(10,4);not null"`

	Rationale *string   `gorm:"type:text"`
	FrozenAt  time.Time `gorm:"not null;index"`
}

func (Trade) TableName() string {
	return "step4_trades"
}
