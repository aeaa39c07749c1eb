package models

import (
	"time"

	"gorm.io/datatypes"
)

// OpenBehavior is the frozen STEP-2 row.
type OpenBehavior struct {
	TradeDate time.Time `gorm:"type:date;primaryKey"`

	Candles       datatypes.JSON `gorm:"not null"`
	CandleCount   int            `gorm:"not null"`
	BaselineRange float64        `gorm:"not null;default:0"`

	IRHigh  float64 `gorm:"column:ir_high;not null"`
	IRLow   float64 `gorm:"column:ir_low;not null"`
	IRRange float64 `gorm:"column:ir_range;not null"`
	IRRatio float64 `gorm:"column:ir_ratio;not null"`

	VolatilityState string  `gorm:"type:varchar(20);not null"`
	VWAP            float64 `gorm:"column:vwap;not null"`
	VWAPCrossCount  int     `gorm:"column:vwap_cross_count;not null"`
	VWAPState       string  `gorm:"column:vwap_state;type:varchar(20);not null"`
	RangeHoldStatus string  `gorm:"type:varchar(20);not null"`

	DerivedPermission string  `gorm:"type:varchar(10);not null"`
	TradePermission   string  `gorm:"type:varchar(10);not null;index"`
	PermissionReason  *string `gorm:"type:text"`
	DataMode          string  `gorm:"type:varchar(10);not null;default:'MANUAL'"`

	FrozenAt time.Time `gorm:"not null"`
}

func (OpenBehavior) TableName() string {
	return "step2_open_behavior"
}
