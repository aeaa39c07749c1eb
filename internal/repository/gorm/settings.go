package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesetup/internal/models"
	"tradesetup/internal/repository"
)

// "key" is reserved in MySQL; always reference it as a quoted column.
var settingKey = clause.Column{Name: "key"}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{settingKey},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).
		Where(clause.Eq{Column: settingKey, Value: key}).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingsQuery(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := settingsQuery(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func settingsQuery(query *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where(clause.Like{Column: settingKey, Value: strings.TrimSpace(*params.Prefix) + "%"})
	}
	return query
}
