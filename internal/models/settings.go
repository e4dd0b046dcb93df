package models

import "time"

// Settings - глобальные настройки стратегии, редактируемые через API
//
// Значения применяются оркестратором на следующем тике. Пара может
// переопределить пороги и риск в своем PairConfig (ненулевые поля
// имеют приоритет).
type Settings struct {
	ID int `json:"id" db:"id"`

	// Пороги по умолчанию
	EntryZ float64 `json:"entry_z" db:"entry_z"`
	ExitZ  float64 `json:"exit_z" db:"exit_z"`

	// Риск
	RiskPct          float64 `json:"risk_pct" db:"risk_pct"`                       // риск на сделку, % от equity
	StopPct          float64 `json:"stop_pct" db:"stop_pct"`                       // стоп-дистанция, доля номинала
	MaxLeverage      float64 `json:"max_leverage" db:"max_leverage"`               // плечо на позицию
	MaxBasketRiskPct float64 `json:"max_basket_risk_pct" db:"max_basket_risk_pct"` // суммарный риск корзины

	// Трейлинг-стоп
	TrailingActivationZ float64 `json:"trailing_activation_z" db:"trailing_activation_z"`
	TrailingPct         float64 `json:"trailing_pct" db:"trailing_pct"` // дистанция стопа, доля входного спреда

	// Фильтры (включение/выключение)
	EMAFilterEnabled     bool `json:"ema_filter_enabled" db:"ema_filter_enabled"`
	RSIFilterEnabled     bool `json:"rsi_filter_enabled" db:"rsi_filter_enabled"`
	OIFilterEnabled      bool `json:"oi_filter_enabled" db:"oi_filter_enabled"`
	FundingFilterEnabled bool `json:"funding_filter_enabled" db:"funding_filter_enabled"`

	// Пороги фильтров
	RSIEntryHigh float64 `json:"rsi_entry_high" db:"rsi_entry_high"` // шорт спреда требует RSI >= high
	RSIEntryLow  float64 `json:"rsi_entry_low" db:"rsi_entry_low"`   // лонг спреда требует RSI <= low

	// Бюджет фандинга: максимум ставки против направления за период
	MaxFundingRate float64 `json:"max_funding_rate" db:"max_funding_rate"`
	// Политика выхода: закрывать позицию при накопленном неблагоприятном
	// фандинге сверх доли зарезервированного риска
	FundingExitEnabled bool    `json:"funding_exit_enabled" db:"funding_exit_enabled"`
	FundingExitBudget  float64 `json:"funding_exit_budget" db:"funding_exit_budget"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() *Settings {
	return &Settings{
		ID:                   1,
		EntryZ:               2.0,
		ExitZ:                0.5,
		RiskPct:              1.0,
		StopPct:              0.02,
		MaxLeverage:          5.0,
		MaxBasketRiskPct:     10.0,
		TrailingActivationZ:  0.5,
		TrailingPct:          0.3,
		EMAFilterEnabled:     true,
		RSIFilterEnabled:     true,
		OIFilterEnabled:      false,
		FundingFilterEnabled: true,
		RSIEntryHigh:         55.0,
		RSIEntryLow:          45.0,
		MaxFundingRate:       0.0006,
		FundingExitEnabled:   true,
		FundingExitBudget:    0.5,
	}
}
