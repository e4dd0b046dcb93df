package models

// PeriodStats - агрегат сделок за период
type PeriodStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Pnl      float64 `json:"pnl"`
	Funding  float64 `json:"funding"`
	StopOuts int     `json:"stop_outs"`
}

// WinRate возвращает долю прибыльных сделок
func (p *PeriodStats) WinRate() float64 {
	if p.Trades == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Trades)
}

// PairStat - статистика по одной паре
type PairStat struct {
	PairID  int     `json:"pair_id"`
	SymbolA string  `json:"symbol_a"`
	SymbolB string  `json:"symbol_b"`
	Sector  string  `json:"sector"`
	Trades  int     `json:"trades"`
	Pnl     float64 `json:"pnl"`
}

// Stats - сводная статистика для API и WebSocket
type Stats struct {
	Today      PeriodStats `json:"today"`
	Week       PeriodStats `json:"week"`
	Month      PeriodStats `json:"month"`
	Total      PeriodStats `json:"total"`
	StuckPairs int         `json:"stuck_pairs"`
	TopPairs   []PairStat  `json:"top_pairs"`
}
