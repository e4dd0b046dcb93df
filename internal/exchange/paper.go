package exchange

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"statarb/internal/models"
)

// PaperExchange - встроенная реализация обоих портов для DRY_RUN
//
// Цены генерируются случайным блужданием с фиксируемым сидом, чтобы
// прогоны симуляции были воспроизводимы. Исполнение мгновенное, по
// текущей цене с настраиваемым проскальзыванием против позиции.
type PaperExchange struct {
	mu  sync.Mutex
	rng *rand.Rand

	// Проскальзывание как доля цены (из базисных пунктов)
	slippage float64

	prices  map[string]float64
	oi      map[string]float64
	funding float64

	// Подменяется в тестах
	now func() time.Time
}

// Волатильность одного шага случайного блуждания
const paperStepSigma = 0.0008

// NewPaperExchange создает симулятор. seed=0 - сид от текущего времени.
func NewPaperExchange(slippageBps float64, seed int64) *PaperExchange {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PaperExchange{
		rng:      rand.New(rand.NewSource(seed)),
		slippage: slippageBps / 10000.0,
		prices:   make(map[string]float64),
		oi:       make(map[string]float64),
		now:      time.Now,
	}
}

// basePrice выводит стартовую цену из имени символа, чтобы разные
// инструменты не стартовали с одинакового уровня
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 50.0 + float64(h.Sum32()%100000)/100.0
}

// step продвигает блуждание символа на один шаг
func (p *PaperExchange) step(symbol string) float64 {
	price, ok := p.prices[symbol]
	if !ok {
		price = basePrice(symbol)
		p.oi[symbol] = price * 1000
	}
	price *= 1 + paperStepSigma*p.rng.NormFloat64()
	p.prices[symbol] = price

	// Открытый интерес дрейфует медленнее цены
	p.oi[symbol] *= 1 + 0.0002*p.rng.NormFloat64()
	return price
}

// GetSnapshot реализует MarketDataPort
func (p *PaperExchange) GetSnapshot(ctx context.Context, pair *models.PairConfig) (*models.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PortError{Op: "paper.GetSnapshot", Message: "context done", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	priceA := p.step(pair.SymbolA)
	priceB := p.step(pair.SymbolB)

	// Фандинг меняется плавно, остается в реалистичном диапазоне
	p.funding += 0.00002 * p.rng.NormFloat64()
	if p.funding > 0.001 {
		p.funding = 0.001
	} else if p.funding < -0.001 {
		p.funding = -0.001
	}

	return &models.MarketSnapshot{
		PriceA:      priceA,
		PriceB:      priceB,
		OIA:         p.oi[pair.SymbolA],
		OIB:         p.oi[pair.SymbolB],
		FundingRate: p.funding,
		Timestamp:   p.now(),
	}, nil
}

// SetPrice выставляет цену символа напрямую (для тестов и прогонов
// по заранее заданным сериям)
func (p *PaperExchange) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.oi[symbol]; !ok {
		p.oi[symbol] = price * 1000
	}
	p.prices[symbol] = price
}

// fillPrice применяет проскальзывание против стороны сделки
func (p *PaperExchange) fillPrice(price float64, side string) float64 {
	if side == "long" {
		return price * (1 + p.slippage)
	}
	return price * (1 - p.slippage)
}

// OpenHedged реализует ExecutionPort: мгновенное исполнение обеих ног
func (p *PaperExchange) OpenHedged(ctx context.Context, req *OpenRequest) (*ExecutionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PortError{Op: "paper.OpenHedged", Message: "context done", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	priceA, okA := p.prices[req.Pair.SymbolA]
	priceB, okB := p.prices[req.Pair.SymbolB]
	if !okA || !okB {
		return &ExecutionReport{Status: StatusRejected}, nil
	}

	sideA, sideB := "long", "short"
	if req.Direction == models.DirectionShort {
		sideA, sideB = "short", "long"
	}

	return &ExecutionReport{
		Status:     StatusFilled,
		FillPriceA: p.fillPrice(priceA, sideA),
		FillPriceB: p.fillPrice(priceB, sideB),
		FilledQtyA: req.QtyA,
		FilledQtyB: req.QtyB,
	}, nil
}

// CloseHedged реализует ExecutionPort: закрытие по текущим ценам
func (p *PaperExchange) CloseHedged(ctx context.Context, pos *models.Position) (*ExecutionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PortError{Op: "paper.CloseHedged", Message: "context done", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	priceA, okA := p.prices[pos.LegA.Symbol]
	priceB, okB := p.prices[pos.LegB.Symbol]
	if !okA || !okB {
		return &ExecutionReport{Status: StatusRejected}, nil
	}

	// Закрытие - сделка противоположной стороной
	closeSideA, closeSideB := "short", "long"
	if pos.LegA.Side == "short" {
		closeSideA, closeSideB = "long", "short"
	}

	return &ExecutionReport{
		Status:     StatusFilled,
		FillPriceA: p.fillPrice(priceA, closeSideA),
		FillPriceB: p.fillPrice(priceB, closeSideB),
		FilledQtyA: pos.LegA.Quantity,
		FilledQtyB: pos.LegB.Quantity,
	}, nil
}
