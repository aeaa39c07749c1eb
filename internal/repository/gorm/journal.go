package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tradesetup/internal/models"
	"tradesetup/internal/repository"
	"tradesetup/internal/rules"
)

func (s *Store) InsertTradePlan(ctx context.Context, item *models.TradePlan) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.PlanDate = models.TradeDay(item.PlanDate)
	return insertOnce(s.db.WithContext(ctx), item)
}

func (s *Store) GetTradePlan(ctx context.Context, id uint64) (*models.TradePlan, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.TradePlan
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetTradePlanBySourceTradeID(ctx context.Context, tradeID string) (*models.TradePlan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return nil, nil
	}
	var item models.TradePlan
	err := s.db.WithContext(ctx).Where("source_trade_id = ?", tradeID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTradePlans(ctx context.Context, params repository.ListTradePlansParams) ([]models.TradePlan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := tradePlanQuery(s.db.WithContext(ctx).Model(&models.TradePlan{}), params)
	query = applyOrder(query, "plan_date", params.Asc, "plan_date")
	query = query.Order("id asc")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.TradePlan
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTradePlans(ctx context.Context, params repository.ListTradePlansParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := tradePlanQuery(s.db.WithContext(ctx).Model(&models.TradePlan{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func tradePlanQuery(query *gorm.DB, params repository.ListTradePlansParams) *gorm.DB {
	if params.From != nil {
		query = query.Where("plan_date >= ?", models.TradeDay(*params.From))
	}
	if params.To != nil {
		query = query.Where("plan_date <= ?", models.TradeDay(*params.To))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("plan_status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	return query
}

func (s *Store) MarkTradePlanNotTaken(ctx context.Context, id uint64, reason string) (*models.TradePlan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var out models.TradePlan
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := lockPlan(tx, &out, id); err != nil {
			return err
		}
		out.PlanStatus = rules.PlanNotTaken
		out.NotTakenReason = &reason
		return tx.Model(&out).Updates(map[string]any{
			"plan_status":      out.PlanStatus,
			"not_taken_reason": reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ExecuteTradePlan(ctx context.Context, id uint64, build repository.ExecutePlanFunc) (*models.TradePlan, *models.TradeLog, error) {
	if s == nil || s.db == nil || build == nil {
		return nil, nil, nil
	}
	var plan models.TradePlan
	var trade *models.TradeLog
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := lockPlan(tx, &plan, id); err != nil {
			return err
		}
		item, err := build(&plan)
		if err != nil {
			return err
		}
		item.PlanID = plan.ID
		item.TradeDate = models.TradeDay(item.TradeDate)
		if err := insertOnce(tx, item); err != nil {
			return err
		}
		plan.PlanStatus = rules.PlanExecuted
		plan.TradeLogID = &item.ID
		if err := tx.Model(&plan).Updates(map[string]any{
			"plan_status":  plan.PlanStatus,
			"trade_log_id": item.ID,
		}).Error; err != nil {
			return err
		}
		trade = item
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &plan, trade, nil
}

// lockPlan loads the plan under lock and requires it to still be PLANNED.
func lockPlan(tx *gorm.DB, dest *models.TradePlan, id uint64) error {
	if err := lockRow(tx, dest, "id = ?", id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrPlanMissing
		}
		return err
	}
	if dest.PlanStatus != rules.PlanPlanned {
		return repository.ErrPlanNotPlanned
	}
	return nil
}

func (s *Store) GetTradeLog(ctx context.Context, id uint64) (*models.TradeLog, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.TradeLog
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTradeLogs(ctx context.Context, params repository.ListTradeLogsParams) ([]models.TradeLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeLog{})
	if params.From != nil {
		query = query.Where("trade_date >= ?", models.TradeDay(*params.From))
	}
	if params.To != nil {
		query = query.Where("trade_date <= ?", models.TradeDay(*params.To))
	}
	if params.OnlyExited {
		query = query.Where("exited_at IS NOT NULL")
	}
	var items []models.TradeLog
	if err := query.Order("trade_date asc").Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ExitTradeLog(ctx context.Context, id uint64, apply repository.ExitTradeFunc) (*models.TradeLog, error) {
	if s == nil || s.db == nil || apply == nil {
		return nil, nil
	}
	var trade models.TradeLog
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := lockRow(tx, &trade, "id = ?", id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrTradeLogMissing
			}
			return err
		}
		if trade.ExitedAt != nil {
			return repository.ErrTradeExited
		}
		if err := apply(&trade); err != nil {
			return err
		}
		return tx.Model(&trade).Select(
			"exit_price", "exit_reason", "exited_at", "fees",
			"pnl_amount", "pnl_pct", "result", "duration_seconds",
		).Updates(&trade).Error
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (s *Store) InsertTradeReview(ctx context.Context, item *models.TradeReview) (*models.TradeLog, error) {
	if s == nil || s.db == nil || item == nil {
		return nil, nil
	}
	var trade models.TradeLog
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		if err := lockRow(tx, &trade, "id = ?", item.TradeLogID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrTradeLogMissing
			}
			return err
		}
		if trade.ExitedAt == nil {
			return repository.ErrTradeNotExited
		}
		exists, err := rowExists(tx, &models.TradeReview{}, "trade_log_id = ?", item.TradeLogID)
		if err != nil {
			return err
		}
		if exists {
			return repository.ErrReviewExists
		}
		item.Symbol = trade.Symbol
		if err := insertOnce(tx, item); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return repository.ErrReviewExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (s *Store) GetTradeReview(ctx context.Context, tradeLogID uint64) (*models.TradeReview, error) {
	if s == nil || s.db == nil || tradeLogID == 0 {
		return nil, nil
	}
	var item models.TradeReview
	err := s.db.WithContext(ctx).Where("trade_log_id = ?", tradeLogID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
