package models

import "time"

// Действия торговых событий
const (
	TradeActionEnterLong  = "ENTER_LONG"
	TradeActionEnterShort = "ENTER_SHORT"
	TradeActionExit       = "EXIT"
	TradeActionStopLoss   = "STOP_LOSS"
	TradeActionStuck      = "STUCK"
	TradeActionRejected   = "REJECTED"
)

// TradeEvent - запись журнала сделок
//
// Эмитится на каждом переходе состояния пары. Это единственная
// гарантированно персистентная запись о жизненном цикле позиции:
// пишется в БД, дублируется в CSV и транслируется в WebSocket.
type TradeEvent struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	PairID    int       `json:"pair_id" db:"pair_id"`
	Action    string    `json:"action" db:"action"`
	Sector    string    `json:"sector" db:"sector"`

	SymbolA string  `json:"symbol_a" db:"symbol_a"`
	SymbolB string  `json:"symbol_b" db:"symbol_b"`
	SideA   string  `json:"side_a" db:"side_a"`
	SideB   string  `json:"side_b" db:"side_b"`
	QtyA    float64 `json:"qty_a" db:"qty_a"`
	QtyB    float64 `json:"qty_b" db:"qty_b"`
	PriceA  float64 `json:"price_a" db:"price_a"`
	PriceB  float64 `json:"price_b" db:"price_b"`

	ZScore float64 `json:"zscore" db:"zscore"`
	Reason string  `json:"reason" db:"reason"`

	// PnL заполняется только для закрытий
	Pnl     float64 `json:"pnl" db:"pnl"`
	Funding float64 `json:"funding" db:"funding"`
}
