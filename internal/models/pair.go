package models

import "time"

// PairConfig представляет конфигурацию торговой пары спреда
//
// Пара состоит из двух инструментов одного сектора: лонг-нога A и
// хедж-нога B. Спред считается как priceA - beta*priceB, решения
// принимаются по z-score спреда в скользящем окне.
type PairConfig struct {
	ID     int    `json:"id" db:"id"`
	Sector string `json:"sector" db:"sector"`

	// Инструменты пары
	SymbolA string `json:"symbol_a" db:"symbol_a"`
	SymbolB string `json:"symbol_b" db:"symbol_b"`

	// Hedge ratio (beta): сколько единиц ноги B хеджируют единицу ноги A
	Beta float64 `json:"beta" db:"beta"`

	// Параметры окна статистики
	Window     int `json:"window" db:"window"`           // размер скользящего окна
	MinPeriods int `json:"min_periods" db:"min_periods"` // минимум наблюдений до первого сигнала

	// Пороги z-score
	EntryZ float64 `json:"entry_z" db:"entry_z"`
	ExitZ  float64 `json:"exit_z" db:"exit_z"`

	// Риск-параметры (0 = взять из глобальных настроек)
	RiskPct     float64 `json:"risk_pct" db:"risk_pct"`
	StopPct     float64 `json:"stop_pct" db:"stop_pct"`
	MaxLeverage float64 `json:"max_leverage" db:"max_leverage"`

	// Максимальное время удержания позиции
	MaxHoldMinutes int `json:"max_hold_minutes" db:"max_hold_minutes"`

	// Статус пары (активна/на паузе)
	Status string `json:"status" db:"status"`

	// Статистика торговли
	TotalTrades int     `json:"total_trades" db:"total_trades"`
	TotalPnl    float64 `json:"total_pnl" db:"total_pnl"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Статусы пары
const (
	PairStatusActive = "active"
	PairStatusPaused = "paused"
)

// MaxHold возвращает горизонт удержания как Duration
func (p *PairConfig) MaxHold() time.Duration {
	return time.Duration(p.MaxHoldMinutes) * time.Minute
}

// Key возвращает каноническое имя пары для логов и индексов
func (p *PairConfig) Key() string {
	return p.SymbolA + "/" + p.SymbolB
}
