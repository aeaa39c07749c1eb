package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeConstruction is the overwritable STEP-4 preview.
type TradeConstruction struct {
	TradeDate time.Time `gorm:"type:date;primaryKey"`
	Symbol    string    `gorm:"type:varchar(32);primaryKey"`

	Direction    string `gorm:"type:varchar(10);not null"`
	StrategyUsed string `gorm:"type:varchar(20);not null"`

	Capital     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RiskPercent decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	EntryBuffer decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RMultiple   decimal.Decimal `gorm:"column:r_multiple;type:decimal(10,4);not null"`

	EntryPrice   decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	StopLoss     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RiskPerShare decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	RiskAmount   decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Quantity     int64           `gorm:"not null"`
	TargetPrice  decimal.Decimal `gorm:"type:decimal(20,6);not null"`

	TradeStatus string  `gorm:"type:varchar(10);not null"`
	BlockReason *string `gorm:"type:varchar(40)"`

	ConstructedAt time.Time `gorm:"not null"`
}

func (TradeConstruction) TableName() string {
	return "step4_trade_construction"
}
