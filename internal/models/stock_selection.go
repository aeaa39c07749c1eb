package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSelection is one frozen STEP-3B candidate with its structural snapshot.
type StockSelection struct {
	TradeDate time.Time `gorm:"type:date;primaryKey"`
	Symbol    string    `gorm:"type:varchar(32);primaryKey"`

	Rank         int    `gorm:"column:selection_rank;not null"`
	Direction    string `gorm:"type:varchar(10);not null"`
	StrategyUsed string `gorm:"type:varchar(20);not null"`

	RelativeStrength float64 `gorm:"not null"`
	GapPct           float64 `gorm:"not null"`
	ATRPct           float64 `gorm:"column:atr_pct;not null"`
	AvgTradedValueCr float64 `gorm:"column:avg_traded_value_cr;not null"`

	// Structural snapshot; STEP-4 reads these verbatim.
	GapHigh        *decimal.Decimal `gorm:"type:decimal(20,6)"`
	GapLow         *decimal.Decimal `gorm:"type:decimal(20,6)"`
	IntradayHigh   *decimal.Decimal `gorm:"type:decimal(20,6)"`
	IntradayLow    *decimal.Decimal `gorm:"type:decimal(20,6)"`
	LastHigherLow  *decimal.Decimal `gorm:"type:decimal(20,6)"`
	LastLowerHigh  *decimal.Decimal `gorm:"type:decimal(20,6)"`
	YesterdayClose *decimal.Decimal `gorm:"type:decimal(20,6)"`
	VWAPValue      *decimal.Decimal `gorm:"column:vwap_value;type:decimal(20,6)"`

	StructureValid bool      `gorm:"not null"`
	Reason         string    `gorm:"type:text;not null"`
	EvaluatedAt    time.Time `gorm:"not null"`
}

func (StockSelection) TableName() string {
	return "step3_stock_selection"
}
