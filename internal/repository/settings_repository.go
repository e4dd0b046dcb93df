package repository

import (
	"database/sql"
	"errors"
	"time"

	"statarb/internal/models"
)

const settingsColumns = `id, entry_z, exit_z, risk_pct, stop_pct, max_leverage, max_basket_risk_pct,
	trailing_activation_z, trailing_pct,
	ema_filter_enabled, rsi_filter_enabled, oi_filter_enabled, funding_filter_enabled,
	rsi_entry_high, rsi_entry_low, max_funding_rate, funding_exit_enabled, funding_exit_budget,
	updated_at`

// SettingsRepository - работа с таблицей settings
//
// В таблице ровно одна строка (id = 1). Get при пустой таблице
// возвращает дефолты, Save делает upsert.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает текущие настройки
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM settings WHERE id = 1`

	s := &models.Settings{}
	err := r.db.QueryRow(query).Scan(
		&s.ID,
		&s.EntryZ,
		&s.ExitZ,
		&s.RiskPct,
		&s.StopPct,
		&s.MaxLeverage,
		&s.MaxBasketRiskPct,
		&s.TrailingActivationZ,
		&s.TrailingPct,
		&s.EMAFilterEnabled,
		&s.RSIFilterEnabled,
		&s.OIFilterEnabled,
		&s.FundingFilterEnabled,
		&s.RSIEntryHigh,
		&s.RSIEntryLow,
		&s.MaxFundingRate,
		&s.FundingExitEnabled,
		&s.FundingExitBudget,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultSettings(), nil
		}
		return nil, err
	}
	return s, nil
}

// Save сохраняет настройки (insert или update единственной строки)
func (r *SettingsRepository) Save(s *models.Settings) error {
	query := `
		INSERT INTO settings (id, entry_z, exit_z, risk_pct, stop_pct, max_leverage, max_basket_risk_pct,
			trailing_activation_z, trailing_pct,
			ema_filter_enabled, rsi_filter_enabled, oi_filter_enabled, funding_filter_enabled,
			rsi_entry_high, rsi_entry_low, max_funding_rate, funding_exit_enabled, funding_exit_budget,
			updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			entry_z = EXCLUDED.entry_z,
			exit_z = EXCLUDED.exit_z,
			risk_pct = EXCLUDED.risk_pct,
			stop_pct = EXCLUDED.stop_pct,
			max_leverage = EXCLUDED.max_leverage,
			max_basket_risk_pct = EXCLUDED.max_basket_risk_pct,
			trailing_activation_z = EXCLUDED.trailing_activation_z,
			trailing_pct = EXCLUDED.trailing_pct,
			ema_filter_enabled = EXCLUDED.ema_filter_enabled,
			rsi_filter_enabled = EXCLUDED.rsi_filter_enabled,
			oi_filter_enabled = EXCLUDED.oi_filter_enabled,
			funding_filter_enabled = EXCLUDED.funding_filter_enabled,
			rsi_entry_high = EXCLUDED.rsi_entry_high,
			rsi_entry_low = EXCLUDED.rsi_entry_low,
			max_funding_rate = EXCLUDED.max_funding_rate,
			funding_exit_enabled = EXCLUDED.funding_exit_enabled,
			funding_exit_budget = EXCLUDED.funding_exit_budget,
			updated_at = EXCLUDED.updated_at`

	s.ID = 1
	s.UpdatedAt = time.Now()

	_, err := r.db.Exec(query,
		s.EntryZ, s.ExitZ, s.RiskPct, s.StopPct, s.MaxLeverage, s.MaxBasketRiskPct,
		s.TrailingActivationZ, s.TrailingPct,
		s.EMAFilterEnabled, s.RSIFilterEnabled, s.OIFilterEnabled, s.FundingFilterEnabled,
		s.RSIEntryHigh, s.RSIEntryLow, s.MaxFundingRate, s.FundingExitEnabled, s.FundingExitBudget,
		s.UpdatedAt)
	return err
}
