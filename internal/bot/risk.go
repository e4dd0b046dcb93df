package bot

import (
	"fmt"
	"math"
	"time"

	"statarb/internal/models"
)

// Длительность одного периода фандинга
const fundingPeriod = 8 * time.Hour

// RiskConfig - параметры риск-движка
type RiskConfig struct {
	RiskPct          float64 // риск на сделку, % от equity
	StopPct          float64 // стоп-дистанция, доля номинала
	MaxLeverage      float64
	MaxBasketRiskPct float64 // суммарный риск корзины, %

	TrailingActivationZ float64 // трейлинг взводится при |z| <= порога
	TrailingPct         float64 // дистанция стопа, доля захваченной экскурсии

	FundingExitEnabled bool
	FundingExitBudget  float64 // доля риск-суммы позиции
}

// RiskEngine - сайзинг, допуск в корзину, трейлинг-стоп и фандинг
//
// Все методы чистые по отношению к корзине: мутации BasketState
// делает только оркестратор под своим мьютексом.
type RiskEngine struct {
	cfg RiskConfig
}

// NewRiskEngine создает движок с заданной конфигурацией
func NewRiskEngine(cfg RiskConfig) *RiskEngine {
	return &RiskEngine{cfg: cfg}
}

// SetConfig применяет обновленные настройки
func (r *RiskEngine) SetConfig(cfg RiskConfig) {
	r.cfg = cfg
}

// Config возвращает текущую конфигурацию
func (r *RiskEngine) Config() RiskConfig {
	return r.cfg
}

// SizeResult - рассчитанный размер позиции
type SizeResult struct {
	QtyA          float64
	QtyB          float64
	NotionalA     float64
	NotionalB     float64
	TotalNotional float64
	RiskAmount    float64 // сумма под риском при срабатывании стопа
	RiskPct       float64
}

// Size рассчитывает размер ног для пары
//
// Сумма под риском = equity * riskPct; суммарный номинал = риск /
// стоп-дистанция, с капом equity * maxLeverage. Номинал делится между
// ногами пропорционально hedge ratio, так что обе несут одинаковый
// долларовый риск: notionalA = beta * notionalB.
//
// Вырожденные входы (нулевые цены, стоп, beta, equity) дают
// RiskRejectedError - не фатально, пара остается FLAT.
func (r *RiskEngine) Size(pair *models.PairConfig, equity, priceA, priceB float64) (*SizeResult, error) {
	riskPct := pair.RiskPct
	if riskPct <= 0 {
		riskPct = r.cfg.RiskPct
	}
	stopPct := pair.StopPct
	if stopPct <= 0 {
		stopPct = r.cfg.StopPct
	}
	maxLev := pair.MaxLeverage
	if maxLev <= 0 {
		maxLev = r.cfg.MaxLeverage
	}

	switch {
	case equity <= 0:
		return nil, &RiskRejectedError{PairID: pair.ID, Reason: "non-positive equity"}
	case priceA <= 0 || priceB <= 0:
		return nil, &RiskRejectedError{PairID: pair.ID, Reason: fmt.Sprintf("degenerate prices %v/%v", priceA, priceB)}
	case pair.Beta <= 0:
		return nil, &RiskRejectedError{PairID: pair.ID, Reason: fmt.Sprintf("degenerate hedge ratio %v", pair.Beta)}
	case stopPct <= 0:
		return nil, &RiskRejectedError{PairID: pair.ID, Reason: "zero stop distance"}
	}

	riskAmount := equity * riskPct / 100
	totalNotional := riskAmount / stopPct

	// Кап по плечу
	if maxCap := equity * maxLev; totalNotional > maxCap {
		totalNotional = maxCap
	}

	notionalB := totalNotional / (1 + pair.Beta)
	notionalA := pair.Beta * notionalB

	result := &SizeResult{
		QtyA:          notionalA / priceA,
		QtyB:          notionalB / priceB,
		NotionalA:     notionalA,
		NotionalB:     notionalB,
		TotalNotional: totalNotional,
		RiskAmount:    riskAmount,
		RiskPct:       riskPct,
	}

	if result.QtyA <= 0 || result.QtyB <= 0 ||
		math.IsInf(result.QtyA, 0) || math.IsInf(result.QtyB, 0) ||
		math.IsNaN(result.QtyA) || math.IsNaN(result.QtyB) {
		return nil, &RiskRejectedError{PairID: pair.ID, Reason: "degenerate position size"}
	}

	return result, nil
}

// Admit проверяет допуск кандидата в корзину
//
// Вызывается оркестратором строго под мьютексом корзины
// (single-writer). Сама корзина здесь не мутирует.
func (r *RiskEngine) Admit(basket *models.BasketState, pairOpen bool, pairID int, size *SizeResult) error {
	if basket.HaltEntries {
		return &RiskRejectedError{PairID: pairID, Reason: "new entries halted (invariant violation)"}
	}

	if pairOpen {
		return &RiskRejectedError{PairID: pairID, Reason: "pair already holds an open position"}
	}

	if basket.UsedRiskPct+size.RiskPct > r.cfg.MaxBasketRiskPct {
		return &RiskRejectedError{
			PairID: pairID,
			Reason: fmt.Sprintf("basket risk %.2f%%+%.2f%% exceeds cap %.2f%%",
				basket.UsedRiskPct, size.RiskPct, r.cfg.MaxBasketRiskPct),
		}
	}

	if basket.OpenNotional+size.TotalNotional > basket.Equity*r.cfg.MaxLeverage {
		return &RiskRejectedError{
			PairID: pairID,
			Reason: fmt.Sprintf("leverage cap breached: notional %.2f+%.2f over %.2fx equity",
				basket.OpenNotional, size.TotalNotional, r.cfg.MaxLeverage),
		}
	}

	return nil
}

// UpdateTrailingStop обслуживает трейлинг-стоп позиции по спреду
//
// Стоп взводится, когда |z| опускается до порога активации (позиция
// уже в прибыли), после чего храповиком следует за лучшей экскурсией
// и никогда не отступает. Возвращает true при пересечении стопа.
func (r *RiskEngine) UpdateTrailingStop(pos *models.Position, spread, z float64) bool {
	long := pos.Direction == models.DirectionLong

	if !pos.TrailingArmed {
		if math.Abs(z) > r.cfg.TrailingActivationZ {
			return false
		}
		// Захваченная экскурсия от входа до точки активации
		dist := math.Abs(spread-pos.EntrySpread) * r.cfg.TrailingPct
		if dist < minStdDev {
			dist = minStdDev
		}
		pos.TrailingArmed = true
		pos.BestSpread = spread
		if long {
			pos.TrailingStop = spread - dist
		} else {
			pos.TrailingStop = spread + dist
		}
		return false
	}

	// Храповик: стоп двигается только в сторону прибыли
	if long {
		if spread > pos.BestSpread {
			pos.TrailingStop += spread - pos.BestSpread
			pos.BestSpread = spread
		}
		return spread <= pos.TrailingStop
	}

	if spread < pos.BestSpread {
		pos.TrailingStop -= pos.BestSpread - spread
		pos.BestSpread = spread
	}
	return spread >= pos.TrailingStop
}

// AccrueFunding начисляет фандинг позиции
//
// Положительная ставка: лонги платят, шорты получают. Начисление
// пропорционально доле периода фандинга с прошлого начисления.
// Возвращает true, когда накопленный неблагоприятный фандинг выедает
// настроенную долю риск-суммы позиции - политика рекомендует выход.
func (r *RiskEngine) AccrueFunding(pos *models.Position, fundingRate, equity float64, now time.Time) bool {
	if pos.LastFundingTime.IsZero() {
		pos.LastFundingTime = now
		return false
	}

	elapsed := now.Sub(pos.LastFundingTime)
	if elapsed <= 0 {
		return false
	}
	pos.LastFundingTime = now

	fraction := float64(elapsed) / float64(fundingPeriod)

	// Нетто по двум ногам: платит лонг, получает шорт
	net := 0.0
	if pos.LegA.Side == "long" {
		net -= fundingRate * pos.LegA.Notional()
		net += fundingRate * pos.LegB.Notional()
	} else {
		net += fundingRate * pos.LegA.Notional()
		net -= fundingRate * pos.LegB.Notional()
	}
	pos.AccruedFunding += net * fraction

	if !r.cfg.FundingExitEnabled {
		return false
	}

	budget := r.cfg.FundingExitBudget * (pos.RiskPct / 100) * equity
	return pos.AccruedFunding < 0 && -pos.AccruedFunding > budget
}

// UpdatePnl пересчитывает нереализованный PnL позиции по свежим ценам
func UpdatePnl(pos *models.Position, priceA, priceB float64) float64 {
	pos.LegA.CurrentPrice = priceA
	pos.LegB.CurrentPrice = priceB
	pos.UnrealizedPnl = legPnl(&pos.LegA) + legPnl(&pos.LegB)
	return pos.UnrealizedPnl
}

func legPnl(leg *models.Leg) float64 {
	if leg.Side == "long" {
		return (leg.CurrentPrice - leg.EntryPrice) * leg.Quantity
	}
	return (leg.EntryPrice - leg.CurrentPrice) * leg.Quantity
}

// CheckStopLoss проверяет жесткий стоп: убыток съел риск-сумму
func (r *RiskEngine) CheckStopLoss(pos *models.Position, equity float64) bool {
	riskAmount := pos.RiskPct / 100 * equity
	return pos.UnrealizedPnl <= -riskAmount
}
