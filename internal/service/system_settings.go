package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tradesetup/internal/apperr"
	"tradesetup/internal/models"
	"tradesetup/internal/repository"
)

const (
	FeatureMarketDataAuto = "feature.market_data_auto"
	FeatureSessionMonitor = "feature.session_monitor"
	FeatureEventStream    = "feature.event_stream"
	FeatureTradeJournal   = "feature.trade_journal"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureMarketDataAuto: true,
		FeatureSessionMonitor: true,
		FeatureEventStream:    true,
		FeatureTradeJournal:   true,
	}
}

var featureDescriptions = map[string]string{
	FeatureMarketDataAuto: "fetch STEP inputs from the market data store when a request omits them",
	FeatureSessionMonitor: "publish the pipeline status during market hours",
	FeatureEventStream:    "serve pipeline events over the websocket stream",
	FeatureTradeJournal:   "seed a journal plan from every frozen STEP-4 trade",
}

type SettingView struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SystemSettingsService struct {
	Repo repository.Repository
}

// EnsureDefaultSwitches creates missing switches. Stored values are never
// overwritten, so an operator's OFF survives restarts.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: featureDescriptions[key],
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

// SetEnabled only accepts the known feature switches.
func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if _, ok := DefaultFeatureSwitches()[key]; !ok {
		return apperr.NotFound("UNKNOWN_SETTING", "unknown feature switch %q", key)
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: featureDescriptions[key],
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
		return apperr.Infrastructure(err, "settings store unavailable")
	}
	return nil
}

func (s *SystemSettingsService) List(ctx context.Context, params repository.ListSystemSettingsParams) ([]SettingView, int64, error) {
	if s == nil || s.Repo == nil {
		return []SettingView{}, 0, nil
	}
	items, err := s.Repo.ListSystemSettings(ctx, params)
	if err != nil {
		return nil, 0, apperr.Infrastructure(err, "settings store unavailable")
	}
	total, err := s.Repo.CountSystemSettings(ctx, params)
	if err != nil {
		return nil, 0, apperr.Infrastructure(err, "settings store unavailable")
	}
	out := make([]SettingView, 0, len(items))
	for _, item := range items {
		out = append(out, SettingView{
			Key:         item.Key,
			Value:       json.RawMessage(item.Value),
			Description: item.Description,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return out, total, nil
}
