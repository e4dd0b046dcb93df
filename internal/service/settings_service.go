package service

import (
	"errors"

	"statarb/internal/models"
)

// Ошибки сервиса настроек
var (
	ErrInvalidEntryExit     = errors.New("entry z must be greater than exit z")
	ErrInvalidBasketRisk    = errors.New("basket risk percent must be in (0, 100]")
	ErrInvalidTrailing      = errors.New("trailing percent must be in (0, 1]")
	ErrInvalidRSIThresholds = errors.New("rsi entry high must exceed rsi entry low")
	ErrInvalidFundingRate   = errors.New("max funding rate must be non-negative")
	ErrInvalidFundingBudget = errors.New("funding exit budget must be in (0, 1]")
)

// UpdateSettingsRequest - частичное обновление настроек
type UpdateSettingsRequest struct {
	EntryZ           *float64 `json:"entry_z,omitempty"`
	ExitZ            *float64 `json:"exit_z,omitempty"`
	RiskPct          *float64 `json:"risk_pct,omitempty"`
	StopPct          *float64 `json:"stop_pct,omitempty"`
	MaxLeverage      *float64 `json:"max_leverage,omitempty"`
	MaxBasketRiskPct *float64 `json:"max_basket_risk_pct,omitempty"`

	TrailingActivationZ *float64 `json:"trailing_activation_z,omitempty"`
	TrailingPct         *float64 `json:"trailing_pct,omitempty"`

	EMAFilterEnabled     *bool `json:"ema_filter_enabled,omitempty"`
	RSIFilterEnabled     *bool `json:"rsi_filter_enabled,omitempty"`
	OIFilterEnabled      *bool `json:"oi_filter_enabled,omitempty"`
	FundingFilterEnabled *bool `json:"funding_filter_enabled,omitempty"`

	RSIEntryHigh *float64 `json:"rsi_entry_high,omitempty"`
	RSIEntryLow  *float64 `json:"rsi_entry_low,omitempty"`

	MaxFundingRate     *float64 `json:"max_funding_rate,omitempty"`
	FundingExitEnabled *bool    `json:"funding_exit_enabled,omitempty"`
	FundingExitBudget  *float64 `json:"funding_exit_budget,omitempty"`
}

// SettingsService - глобальные настройки стратегии
//
// Настройки применяются движком на лету: открытые позиции продолжают
// вестись со старыми порогами до выхода, новые входы идут по новым.
type SettingsService struct {
	repo   SettingsRepositoryInterface
	engine BotEngine
}

// NewSettingsService создает сервис настроек
func NewSettingsService(repo SettingsRepositoryInterface) *SettingsService {
	return &SettingsService{repo: repo}
}

// SetEngine устанавливает торговый движок
func (s *SettingsService) SetEngine(engine BotEngine) {
	s.engine = engine
}

// GetSettings возвращает текущие настройки
func (s *SettingsService) GetSettings() (*models.Settings, error) {
	return s.repo.Get()
}

// UpdateSettings применяет частичное обновление настроек
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error) {
	settings, err := s.repo.Get()
	if err != nil {
		return nil, err
	}

	applyUpdate(settings, req)

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	if err := s.repo.Save(settings); err != nil {
		return nil, err
	}

	if s.engine != nil {
		s.engine.ApplySettings(settings)
	}
	return settings, nil
}

func applyUpdate(s *models.Settings, req *UpdateSettingsRequest) {
	if req.EntryZ != nil {
		s.EntryZ = *req.EntryZ
	}
	if req.ExitZ != nil {
		s.ExitZ = *req.ExitZ
	}
	if req.RiskPct != nil {
		s.RiskPct = *req.RiskPct
	}
	if req.StopPct != nil {
		s.StopPct = *req.StopPct
	}
	if req.MaxLeverage != nil {
		s.MaxLeverage = *req.MaxLeverage
	}
	if req.MaxBasketRiskPct != nil {
		s.MaxBasketRiskPct = *req.MaxBasketRiskPct
	}
	if req.TrailingActivationZ != nil {
		s.TrailingActivationZ = *req.TrailingActivationZ
	}
	if req.TrailingPct != nil {
		s.TrailingPct = *req.TrailingPct
	}
	if req.EMAFilterEnabled != nil {
		s.EMAFilterEnabled = *req.EMAFilterEnabled
	}
	if req.RSIFilterEnabled != nil {
		s.RSIFilterEnabled = *req.RSIFilterEnabled
	}
	if req.OIFilterEnabled != nil {
		s.OIFilterEnabled = *req.OIFilterEnabled
	}
	if req.FundingFilterEnabled != nil {
		s.FundingFilterEnabled = *req.FundingFilterEnabled
	}
	if req.RSIEntryHigh != nil {
		s.RSIEntryHigh = *req.RSIEntryHigh
	}
	if req.RSIEntryLow != nil {
		s.RSIEntryLow = *req.RSIEntryLow
	}
	if req.MaxFundingRate != nil {
		s.MaxFundingRate = *req.MaxFundingRate
	}
	if req.FundingExitEnabled != nil {
		s.FundingExitEnabled = *req.FundingExitEnabled
	}
	if req.FundingExitBudget != nil {
		s.FundingExitBudget = *req.FundingExitBudget
	}
}

func validateSettings(s *models.Settings) error {
	if s.ExitZ < 0 || s.EntryZ <= s.ExitZ {
		return ErrInvalidEntryExit
	}
	if s.RiskPct <= 0 || s.RiskPct > 100 {
		return ErrInvalidRiskPct
	}
	if s.StopPct <= 0 || s.StopPct >= 1 {
		return ErrInvalidStopPct
	}
	if s.MaxLeverage < 1 {
		return ErrInvalidLeverage
	}
	if s.MaxBasketRiskPct <= 0 || s.MaxBasketRiskPct > 100 {
		return ErrInvalidBasketRisk
	}
	if s.TrailingPct <= 0 || s.TrailingPct > 1 {
		return ErrInvalidTrailing
	}
	if s.RSIFilterEnabled && s.RSIEntryHigh <= s.RSIEntryLow {
		return ErrInvalidRSIThresholds
	}
	if s.MaxFundingRate < 0 {
		return ErrInvalidFundingRate
	}
	if s.FundingExitEnabled && (s.FundingExitBudget <= 0 || s.FundingExitBudget > 1) {
		return ErrInvalidFundingBudget
	}
	return nil
}
