package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExecutionControl is the STEP-3A decision. It is re-derivable until
// CandidatesFrozenAt is set by the STEP-3B freeze.
type ExecutionControl struct {
	TradeDate time.Time `gorm:"type:date;primaryKey"`

	MarketContext     string         `gorm:"type:varchar(30);not null"`
	TradePermission   string         `gorm:"type:varchar(10);not null"`
	AllowedStrategies datatypes.JSON `gorm:"not null"`
	MaxTradesAllowed  int            `gorm:"not null"`
	ExecutionAllowed  bool           `gorm:"not null"`

	DecidedAt          time.Time  `gorm:"not null"`
	CandidatesFrozenAt *time.Time `gorm:"index"`
}

func (ExecutionControl) TableName() string {
	return "step3_execution_control"
}
