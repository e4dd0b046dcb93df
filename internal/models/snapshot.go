package models

import "time"

// MarketSnapshot - согласованный срез рынка по обеим ногам пары
//
// Все поля относятся к одному моменту времени Timestamp. Снимок,
// отстающий от текущего времени больше допустимого, считается
// протухшим и не должен попадать в движок решений.
type MarketSnapshot struct {
	PriceA float64 `json:"price_a"`
	PriceB float64 `json:"price_b"`

	// Открытый интерес по ногам
	OIA float64 `json:"oi_a"`
	OIB float64 `json:"oi_b"`

	// Текущая ставка фандинга (за 8-часовой период, знак - сторона платежа)
	FundingRate float64 `json:"funding_rate"`

	Timestamp time.Time `json:"timestamp"`
}

// Spread возвращает значение спреда для данного hedge ratio
func (s *MarketSnapshot) Spread(beta float64) float64 {
	return s.PriceA - beta*s.PriceB
}

// IsStale проверяет протухание снимка относительно now
func (s *MarketSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}

// SignalAction - решение движка сигналов
type SignalAction string

const (
	SignalHold       SignalAction = "HOLD"
	SignalEnterLong  SignalAction = "ENTER_LONG"  // лонг спреда: купить A, продать B
	SignalEnterShort SignalAction = "ENTER_SHORT" // шорт спреда: продать A, купить B
	SignalExit       SignalAction = "EXIT"
)

// IsEntry сообщает, является ли действие входом в позицию
func (a SignalAction) IsEntry() bool {
	return a == SignalEnterLong || a == SignalEnterShort
}

// FilterState - состояние подтверждающих фильтров на момент решения
type FilterState struct {
	// EMACross: +1 быстрая EMA выше медленной, -1 ниже, 0 нет данных
	EMACross int `json:"ema_cross"`

	// RSI(14) спреда, NaN пока окно не прогрето
	RSI float64 `json:"rsi"`

	// Подтверждение по дельте открытого интереса
	OIRising bool `json:"oi_rising"`

	// Фандинг не превышает бюджет для предполагаемого направления
	FundingOK bool `json:"funding_ok"`
}

// Signal - результат Decide: действие плюс контекст для журнала сделок
type Signal struct {
	Action  SignalAction `json:"action"`
	ZScore  float64      `json:"zscore"`
	Spread  float64      `json:"spread"`
	Filters FilterState  `json:"filters"`
	Reason  string       `json:"reason"`
}
