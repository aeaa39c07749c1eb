package models

import (
	"time"

	"gorm.io/datatypes"
)

// MarketContext is the frozen STEP-1 row. Its presence means STEP-1 is frozen.
type MarketContext struct {
	TradeDate time.Time `gorm:"type:date;primaryKey"`

	YesterdayClose float64        `gorm:"not null"`
	YesterdayHigh  float64        `gorm:"not null"`
	YesterdayLow   float64        `gorm:"not null"`
	Day2High       float64        `gorm:"not null"`
	Day2Low        float64        `gorm:"not null"`
	Last5DayRanges datatypes.JSON `gorm:"not null"`
	PreOpenPrice   float64        `gorm:"not null"`

	GapPct                 float64 `gorm:"not null"`
	GapClass               string  `gorm:"type:varchar(20);not null"`
	GapContext             string  `gorm:"type:varchar(20);not null"`
	RangeRatio             float64 `gorm:"not null"`
	RangeSize              string  `gorm:"type:varchar(20);not null"`
	OverlapType            string  `gorm:"type:varchar(20);not null"`
	StructuralState        string  `gorm:"type:varchar(20);not null"`
	SuggestedMarketContext string  `gorm:"type:varchar(30);not null"`

	FinalMarketContext string `gorm:"type:varchar(30);not null"`
	FinalReason        string `gorm:"type:text;not null"`
	DataMode           string `gorm:"type:varchar(10);not null;default:'MANUAL'"`

	FrozenAt time.Time `gorm:"not null"`
}

func (MarketContext) TableName() string {
	return "step1_market_context"
}
