package bot

import (
	"fmt"
	"time"

	"statarb/internal/models"
)

// SignalConfig - параметры движка сигналов одной пары
//
// Комбинация фильтров - строгое "И": вход разрешен, только если
// КАЖДЫЙ включенный фильтр подтверждает направление. Выключенный
// фильтр считается согласным.
type SignalConfig struct {
	EntryZ float64
	ExitZ  float64

	EMAFast   int
	EMASlow   int
	RSIPeriod int

	EMAFilterEnabled     bool
	RSIFilterEnabled     bool
	OIFilterEnabled      bool
	FundingFilterEnabled bool

	RSIEntryHigh float64
	RSIEntryLow  float64

	MaxFundingRate float64

	MaxHold time.Duration
}

// SignalEngine - движок решений одной пары
//
// Детерминированный: одинаковая последовательность снимков дает
// одинаковую последовательность сигналов. Не потокобезопасен,
// владелец - оркестратор (тики одной пары не перекрываются).
type SignalEngine struct {
	cfg SignalConfig

	series  *SpreadSeries
	emaFast *EMA
	emaSlow *EMA
	rsi     *RSI
	oi      OITracker

	oiRising bool
	funding  float64
}

// NewSignalEngine создает движок с заданным окном статистики
func NewSignalEngine(cfg SignalConfig, window, minPeriods int) *SignalEngine {
	return &SignalEngine{
		cfg:     cfg,
		series:  NewSpreadSeries(window, minPeriods),
		emaFast: NewEMA(cfg.EMAFast),
		emaSlow: NewEMA(cfg.EMASlow),
		rsi:     NewRSI(cfg.RSIPeriod),
	}
}

// SetConfig применяет обновленные настройки (пороги, фильтры).
// Периоды индикаторов фиксируются при создании.
func (se *SignalEngine) SetConfig(cfg SignalConfig) {
	cfg.EMAFast = se.cfg.EMAFast
	cfg.EMASlow = se.cfg.EMASlow
	cfg.RSIPeriod = se.cfg.RSIPeriod
	se.cfg = cfg
}

// Update скармливает движку очередной снимок рынка
func (se *SignalEngine) Update(snap *models.MarketSnapshot, beta float64) {
	spread := snap.Spread(beta)
	se.series.Push(spread)
	se.emaFast.Update(spread)
	se.emaSlow.Update(spread)
	se.rsi.Update(spread)
	se.oiRising = se.oi.Update(snap.OIA, snap.OIB)
	se.funding = snap.FundingRate
}

// Zscore возвращает текущий z-score спреда
func (se *SignalEngine) Zscore() (float64, error) {
	return se.series.Zscore()
}

// Spread возвращает последнее значение спреда
func (se *SignalEngine) Spread() float64 {
	return se.series.Last()
}

// emaCross возвращает +1 (быстрая выше медленной), -1 (ниже), 0 (нет данных)
func (se *SignalEngine) emaCross() int {
	if !se.emaFast.Ready() || !se.emaSlow.Ready() {
		return 0
	}
	if se.emaFast.Value() > se.emaSlow.Value() {
		return 1
	}
	if se.emaFast.Value() < se.emaSlow.Value() {
		return -1
	}
	return 0
}

// Filters возвращает текущее состояние фильтров для журнала
func (se *SignalEngine) Filters() models.FilterState {
	return models.FilterState{
		EMACross: se.emaCross(),
		RSI:      se.rsi.Value(),
		OIRising: se.oiRising,
		// FundingOK в журнале считаем для шорта спреда: фандинг
		// направленный, итог по конкретному направлению дает fundingOK
		FundingOK: se.fundingOK(models.DirectionShort),
	}
}

// fundingOK проверяет, не превышает ли текущий фандинг бюджет для
// предполагаемого направления. Положительный фандинг платят лонги
// ноги A, отрицательный - шорты.
func (se *SignalEngine) fundingOK(direction string) bool {
	if direction == models.DirectionLong {
		return se.funding <= se.cfg.MaxFundingRate
	}
	return se.funding >= -se.cfg.MaxFundingRate
}

// filtersAgree проверяет строгое "И" включенных фильтров для
// направления входа. Возвращает имя первого отказавшего фильтра.
func (se *SignalEngine) filtersAgree(direction string) (bool, string) {
	cross := se.emaCross()
	if se.cfg.EMAFilterEnabled {
		// Вход по растяжению: шорт требует спред выше тренда,
		// лонг - ниже
		if direction == models.DirectionShort && cross != 1 {
			return false, "ema"
		}
		if direction == models.DirectionLong && cross != -1 {
			return false, "ema"
		}
	}

	if se.cfg.RSIFilterEnabled {
		rsi := se.rsi.Value()
		if rsi != rsi { // NaN - индикатор не прогрет
			return false, "rsi"
		}
		if direction == models.DirectionShort && rsi < se.cfg.RSIEntryHigh {
			return false, "rsi"
		}
		if direction == models.DirectionLong && rsi > se.cfg.RSIEntryLow {
			return false, "rsi"
		}
	}

	if se.cfg.OIFilterEnabled && !se.oiRising {
		return false, "oi"
	}

	if se.cfg.FundingFilterEnabled && !se.fundingOK(direction) {
		return false, "funding"
	}

	return true, ""
}

// Decide принимает решение для текущего состояния пары
//
// state - состояние пары, direction/entryTime относятся к открытой
// позиции (игнорируются для FLAT). Противоположный сигнал при
// открытой позиции дает Exit, никогда не разворот.
func (se *SignalEngine) Decide(state, direction string, entryTime, now time.Time) *models.Signal {
	z, err := se.series.Zscore()
	if err != nil {
		return &models.Signal{
			Action:  models.SignalHold,
			Spread:  se.series.Last(),
			Filters: se.Filters(),
			Reason:  fmt.Sprintf("warming up: %d/%d observations", se.series.Size(), se.series.minPeriods),
		}
	}

	sig := &models.Signal{
		Action:  models.SignalHold,
		ZScore:  z,
		Spread:  se.series.Last(),
		Filters: se.Filters(),
	}

	switch state {
	case models.StateFlat:
		se.decideEntry(sig, z)
	case models.StateOpen:
		se.decideExit(sig, z, direction, entryTime, now)
	}

	return sig
}

// decideEntry заполняет сигнал входа для FLAT
func (se *SignalEngine) decideEntry(sig *models.Signal, z float64) {
	var direction string
	switch {
	case z > se.cfg.EntryZ:
		direction = models.DirectionShort
	case z < -se.cfg.EntryZ:
		direction = models.DirectionLong
	default:
		sig.Reason = "no entry: |z| below threshold"
		return
	}

	ok, failed := se.filtersAgree(direction)
	if !ok {
		sig.Reason = fmt.Sprintf("entry blocked by %s filter", failed)
		return
	}

	if direction == models.DirectionShort {
		sig.Action = models.SignalEnterShort
	} else {
		sig.Action = models.SignalEnterLong
	}
	sig.Reason = fmt.Sprintf("z=%.2f beyond entry threshold %.2f, filters agree", z, se.cfg.EntryZ)
}

// decideExit заполняет сигнал выхода для OPEN
//
// Порядок проверок фиксирован: горизонт удержания, возврат к
// среднему, противоположный сигнал, разворот фильтра.
func (se *SignalEngine) decideExit(sig *models.Signal, z float64, direction string, entryTime, now time.Time) {
	if se.cfg.MaxHold > 0 && now.Sub(entryTime) >= se.cfg.MaxHold {
		sig.Action = models.SignalExit
		sig.Reason = "max holding horizon reached"
		return
	}

	if z > -se.cfg.ExitZ && z < se.cfg.ExitZ {
		sig.Action = models.SignalExit
		sig.Reason = fmt.Sprintf("mean reversion: |z|=%.2f below exit threshold %.2f", abs(z), se.cfg.ExitZ)
		return
	}

	// Противоположный вход при открытой позиции - только выход
	opposite := models.DirectionShort
	if direction == models.DirectionShort {
		opposite = models.DirectionLong
	}
	oppositeStretch := (opposite == models.DirectionShort && z > se.cfg.EntryZ) ||
		(opposite == models.DirectionLong && z < -se.cfg.EntryZ)
	if oppositeStretch {
		if ok, _ := se.filtersAgree(opposite); ok {
			sig.Action = models.SignalExit
			sig.Reason = "opposite entry signal: exit, never flip"
			return
		}
	}

	// Разворот EMA против растяжения, с которым входили
	if se.cfg.EMAFilterEnabled {
		cross := se.emaCross()
		if direction == models.DirectionShort && cross == -1 {
			sig.Action = models.SignalExit
			sig.Reason = "ema cross reversal against position"
			return
		}
		if direction == models.DirectionLong && cross == 1 {
			sig.Action = models.SignalExit
			sig.Reason = "ema cross reversal against position"
			return
		}
	}

	sig.Reason = "holding position"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
