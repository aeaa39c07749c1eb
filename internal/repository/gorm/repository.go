package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesetup/internal/models"
	"tradesetup/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- STEP-1 -----------------------------------------------------------------

func (s *Store) FreezeMarketContext(ctx context.Context, item *models.MarketContext) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.TradeDate = models.TradeDay(item.TradeDate)
	return s.InTx(ctx, func(tx *gorm.DB) error {
		exists, err := rowExists(tx, &models.MarketContext{}, "trade_date = ?", item.TradeDate)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrAlreadyExists
		}
		return insertOnce(tx, item)
	})
}

func (s *Store) GetMarketContext(ctx context.Context, tradeDate time.Time) (*models.MarketContext, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketContext
	err := s.db.WithContext(ctx).Where("trade_date = ?", models.TradeDay(tradeDate)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarketContexts(ctx context.Context, params repository.ListTradeDaysParams) ([]models.MarketContext, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := tradeDayQuery(s.db.WithContext(ctx).Model(&models.MarketContext{}), params)
	query = applyOrder(query, "trade_date", params.Asc, "trade_date")
	limit := normalizeLimit(params.Limit, 30)
	offset := normalizeOffset(params.Offset)
	var items []models.MarketContext
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarketContexts(ctx context.Context, params repository.ListTradeDaysParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := tradeDayQuery(s.db.WithContext(ctx).Model(&models.MarketContext{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func tradeDayQuery(query *gorm.DB, params repository.ListTradeDaysParams) *gorm.DB {
	if params.From != nil && !params.From.IsZero() {
		query = query.Where("trade_date >= ?", models.TradeDay(*params.From))
	}
	if params.To != nil && !params.To.IsZero() {
		query = query.Where("trade_date <= ?", models.TradeDay(*params.To))
	}
	return query
}

// --- STEP-2 -----------------------------------------------------------------

func (s *Store) FreezeOpenBehavior(ctx context.Context, item *models.OpenBehavior) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.TradeDate = models.TradeDay(item.TradeDate)
	return s.InTx(ctx, func(tx *gorm.DB) error {
		var mc models.MarketContext
		if err := lockRow(tx, &mc, "trade_date = ?", item.TradeDate); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrMarketContextMissing
			}
			return err
		}
		exists, err := rowExists(tx, &models.OpenBehavior{}, "trade_date = ?", item.TradeDate)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrAlreadyExists
		}
		return insertOnce(tx, item)
	})
}

func (s *Store) GetOpenBehavior(ctx context.Context, tradeDate time.Time) (*models.OpenBehavior, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.OpenBehavior
	err := s.db.WithContext(ctx).Where("trade_date = ?", models.TradeDay(tradeDate)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- STEP-3A ----------------------------------------------------------------

// DeriveExecutionControl upserts the STEP-3A row. decided_at and
// candidates_frozen_at keep their first values across re-derivations.
func (s *Store) DeriveExecutionControl(ctx context.Context, tradeDate time.Time, derive repository.DeriveExecutionFunc) (*models.ExecutionControl, error) {
	if s == nil || s.db == nil || derive == nil {
		return nil, nil
	}
	tradeDate = models.TradeDay(tradeDate)
	var out models.ExecutionControl
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		var mc models.MarketContext
		if err := lockRow(tx, &mc, "trade_date = ?", tradeDate); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrMarketContextMissing
			}
			return err
		}
		var ob models.OpenBehavior
		if err := lockRow(tx, &ob, "trade_date = ?", tradeDate); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrOpenBehaviorMissing
			}
			return err
		}
		item, err := derive(&mc, &ob)
		if err != nil {
			return err
		}
		item.TradeDate = tradeDate
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "trade_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"market_context",
				"trade_permission",
				"allowed_strategies",
				"max_trades_allowed",
				"execution_allowed",
			}),
		}).Create(item).Error; err != nil {
			return err
		}
		return tx.Where("trade_date = ?", tradeDate).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetExecutionControl(ctx context.Context, tradeDate time.Time) (*models.ExecutionControl, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ExecutionControl
	err := s.db.WithContext(ctx).Where("trade_date = ?", models.TradeDay(tradeDate)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- STEP-3B ----------------------------------------------------------------

// FreezeStockSelections claims the date with a conditional update on the
// execution control row, then writes the candidates in the same transaction.
func (s *Store) FreezeStockSelections(ctx context.Context, tradeDate time.Time, items []models.StockSelection, frozenAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	tradeDate = models.TradeDay(tradeDate)
	return s.InTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.ExecutionControl{}).
			Where("trade_date = ?", tradeDate).
			Where("candidates_frozen_at IS NULL").
			Where("execution_allowed = ?", true).
			Update("candidates_frozen_at", frozenAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var ec models.ExecutionControl
			err := tx.Where("trade_date = ?", tradeDate).First(&ec).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return repository.ErrExecutionControlMissing
			case err != nil:
				return err
			case ec.CandidatesFrozenAt != nil:
				return repository.ErrAlreadyExists
			default:
				return repository.ErrExecutionNotAllowed
			}
		}
		if err := tx.Where("trade_date = ?", tradeDate).Delete(&models.StockSelection{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].TradeDate = tradeDate
		}
		return createInBatches(tx, items, 100)
	})
}

func (s *Store) ListStockSelections(ctx context.Context, tradeDate time.Time) ([]models.StockSelection, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.StockSelection
	err := s.db.WithContext(ctx).
		Where("trade_date = ?", models.TradeDay(tradeDate)).
		Order("selection_rank asc").
		Order("symbol asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetStockSelection(ctx context.Context, tradeDate time.Time, symbol string) (*models.StockSelection, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	var item models.StockSelection
	err := s.db.WithContext(ctx).
		Where("trade_date = ? AND symbol = ?", models.TradeDay(tradeDate), symbol).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- STEP-4 -----------------------------------------------------------------

func (s *Store) SaveTradeConstruction(ctx context.Context, item *models.TradeConstruction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.TradeDate = models.TradeDay(item.TradeDate)
	return s.InTx(ctx, func(tx *gorm.DB) error {
		frozen, err := rowExists(tx, &models.Trade{}, "trade_date = ? AND symbol = ?", item.TradeDate, item.Symbol)
		if err != nil {
			return err
		}
		if frozen {
			return repository.ErrTradeFrozen
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "trade_date"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"direction",
				"strategy_used",
				"capital",
				"risk_percent",
				"entry_buffer",
				"r_multiple",
				"entry_price",
				"stop_loss",
				"risk_per_share",
				"risk_amount",
				"quantity",
				"target_price",
				"trade_status",
				"block_reason",
				"constructed_at",
			}),
		}).Create(item).Error
	})
}

func (s *Store) GetTradeConstruction(ctx context.Context, tradeDate time.Time, symbol string) (*models.TradeConstruction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TradeConstruction
	err := s.db.WithContext(ctx).
		Where("trade_date = ? AND symbol = ?", models.TradeDay(tradeDate), strings.TrimSpace(symbol)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTradeConstructions(ctx context.Context, tradeDate time.Time) ([]models.TradeConstruction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TradeConstruction
	err := s.db.WithContext(ctx).
		Where("trade_date = ?", models.TradeDay(tradeDate)).
		Order("symbol asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) FreezeTrade(ctx context.Context, tradeDate time.Time, symbol string, build repository.BuildTradeFunc) (*models.Trade, error) {
	if s == nil || s.db == nil || build == nil {
		return nil, nil
	}
	tradeDate = models.TradeDay(tradeDate)
	symbol = strings.TrimSpace(symbol)
	var out *models.Trade
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		var c models.TradeConstruction
		if err := lockRow(tx, &c, "trade_date = ? AND symbol = ?", tradeDate, symbol); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrConstructionMissing
			}
			return err
		}
		exists, err := rowExists(tx, &models.Trade{}, "trade_date = ? AND symbol = ?", tradeDate, symbol)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrAlreadyExists
		}
		trade, err := build(&c)
		if err != nil {
			return err
		}
		trade.TradeDate = tradeDate
		trade.Symbol = symbol
		if err := insertOnce(tx, trade); err != nil {
			return err
		}
		out = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetTrade(ctx context.Context, tradeDate time.Time, symbol string) (*models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Trade
	err := s.db.WithContext(ctx).
		Where("trade_date = ? AND symbol = ?", models.TradeDay(tradeDate), strings.TrimSpace(symbol)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTrades(ctx context.Context, tradeDate time.Time) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Trade
	err := s.db.WithContext(ctx).
		Where("trade_date = ?", models.TradeDay(tradeDate)).
		Order("frozen_at asc").
		Order("symbol asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, tradeDate time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("trade_date = ?", models.TradeDay(tradeDate)).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// --- helpers ----------------------------------------------------------------

func lockRow(tx *gorm.DB, dest any, query string, args ...any) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(dest).Error
}

func rowExists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// insertOnce maps a key collision from a concurrent writer to ErrAlreadyExists.
func insertOnce(tx *gorm.DB, item any) error {
	err := tx.Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrAlreadyExists
	}
	return err
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: direction == "desc"})
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
