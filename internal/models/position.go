package models

import "time"

// Состояния пары в state machine оркестратора
//
// PAUSED   - пара выключена оператором, тики пропускаются
// FLAT     - позиции нет, движок ищет вход
// ENTERING - ордера на открытие отправлены, ждем подтверждения
// OPEN     - хеджированная позиция открыта, мониторим выход
// EXITING  - ордера на закрытие отправлены, ждем подтверждения
// STUCK    - исполнение не подтвердилось после всех ретраев; требуется
// ручное вмешательство (терминальное)
const (
	StatePaused   = "PAUSED"
	StateFlat     = "FLAT"
	StateEntering = "ENTERING"
	StateOpen     = "OPEN"
	StateExiting  = "EXITING"
	StateStuck    = "STUCK"
)

// Направление позиции по спреду
const (
	DirectionLong  = "LONG"  // лонг спреда: long A / short B
	DirectionShort = "SHORT" // шорт спреда: short A / long B
)

// Leg - одна нога хеджированной позиции
type Leg struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // long | short
	Quantity     float64 `json:"quantity"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
}

// Notional возвращает текущий номинал ноги
func (l *Leg) Notional() float64 {
	return l.Quantity * l.CurrentPrice
}

// Position - открытая (или открываемая) позиция по паре
type Position struct {
	PairID    int    `json:"pair_id"`
	Direction string `json:"direction"`

	LegA Leg `json:"leg_a"`
	LegB Leg `json:"leg_b"`

	// Риск, зарезервированный в корзине под позицию, % от equity
	RiskPct float64 `json:"risk_pct"`

	// Суммарный номинал обеих ног на момент входа
	EntryNotional float64 `json:"entry_notional"`

	EntryZ      float64   `json:"entry_z"`
	EntrySpread float64   `json:"entry_spread"`
	EntryTime   time.Time `json:"entry_time"`

	// Трейлинг-стоп по спреду
	TrailingArmed bool    `json:"trailing_armed"`
	BestSpread    float64 `json:"best_spread"` // лучшая достигнутая экскурсия
	TrailingStop  float64 `json:"trailing_stop"`

	// Накопленный фандинг (минус = позиция платит)
	AccruedFunding  float64   `json:"accrued_funding"`
	LastFundingTime time.Time `json:"last_funding_time"`

	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// TotalNotional возвращает текущий номинал позиции по обеим ногам
func (p *Position) TotalNotional() float64 {
	return p.LegA.Notional() + p.LegB.Notional()
}

// PairRuntime - текущее состояние пары в движке
//
// Отделено от PairConfig: конфигурация хранится в БД, runtime живет
// только в памяти движка и транслируется в UI через WebSocket.
type PairRuntime struct {
	PairID        int       `json:"pair_id"`
	State         string    `json:"state"`
	Position      *Position `json:"position,omitempty"`
	LastZ         float64   `json:"last_z"`
	LastSpread    float64   `json:"last_spread"`
	ExecFailures  int       `json:"exec_failures"`
	LastError     string    `json:"last_error,omitempty"`
	LastUpdate    time.Time `json:"last_update"`
	RealizedPnl   float64   `json:"realized_pnl"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
}

// BasketState - агрегат риска по всем открытым позициям
//
// Пересчитывается после каждого перехода состояния. Мутации только
// через single-writer (мьютекс корзины в оркестраторе).
type BasketState struct {
	Equity        float64   `json:"equity"`
	UsedRiskPct   float64   `json:"used_risk_pct"`
	OpenNotional  float64   `json:"open_notional"`
	LeverageInUse float64   `json:"leverage_in_use"`
	OpenPositions int       `json:"open_positions"`
	HaltEntries   bool      `json:"halt_entries"` // взведен при InvariantViolation
	UpdatedAt     time.Time `json:"updated_at"`
}
