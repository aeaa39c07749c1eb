package db

import (
	"tradesetup/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.MarketContext{},
		&models.OpenBehavior{},
		&models.ExecutionControl{},
		&models.StockSelection{},
		&models.TradeConstruction{},
		&models.Trade{},
		&models.TradePlan{},
		&models.TradeLog{},
		&models.TradeReview{},
		&models.SystemSetting{},
	)
}
