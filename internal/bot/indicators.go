package bot

import "math"

// EMA - экспоненциальное скользящее среднее
//
// Первые period значений усредняются как SMA (разгон), дальше
// применяется стандартное сглаживание k = 2/(period+1).
type EMA struct {
	period int
	k      float64
	value  float64
	count  int
	warmup float64
}

// NewEMA создает EMA с заданным периодом
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		k:      2.0 / (float64(period) + 1.0),
	}
}

// Update добавляет значение и возвращает текущее EMA
func (e *EMA) Update(v float64) float64 {
	e.count++
	if e.count <= e.period {
		e.warmup += v
		e.value = e.warmup / float64(e.count)
		return e.value
	}
	e.value = v*e.k + e.value*(1-e.k)
	return e.value
}

// Ready сообщает, завершен ли разгон
func (e *EMA) Ready() bool {
	return e.count >= e.period
}

// Value возвращает текущее значение EMA
func (e *EMA) Value() float64 {
	return e.value
}

// RSI - индекс относительной силы со сглаживанием Уайлдера
//
// Считается по приращениям входной серии (у нас - значения спреда).
// До прогрева Value() возвращает NaN.
type RSI struct {
	period  int
	prev    float64
	avgGain float64
	avgLoss float64
	count   int
}

// NewRSI создает RSI с заданным периодом (классический - 14)
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update добавляет значение серии
func (r *RSI) Update(v float64) {
	if r.count == 0 {
		r.prev = v
		r.count = 1
		return
	}

	diff := v - r.prev
	r.prev = v

	gain, loss := 0.0, 0.0
	if diff > 0 {
		gain = diff
	} else {
		loss = -diff
	}

	if r.count <= r.period {
		// Разгон: простое накопление средних
		n := float64(r.count)
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	} else {
		// Сглаживание Уайлдера
		p := float64(r.period)
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}
	r.count++
}

// Ready сообщает, прогрет ли индикатор
func (r *RSI) Ready() bool {
	return r.count > r.period
}

// Value возвращает RSI в диапазоне [0, 100], NaN до прогрева
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return math.NaN()
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// OITracker - подтверждение по дельте открытого интереса
//
// Сигнал считается подтвержденным, когда OI растет по обеим ногам:
// движение спреда поддержано новыми позициями, а не закрытием старых.
type OITracker struct {
	prevA float64
	prevB float64
	seen  bool
}

// Update принимает свежие значения OI и возвращает признак роста
// по обеим ногам относительно предыдущего наблюдения
func (o *OITracker) Update(oiA, oiB float64) bool {
	if !o.seen {
		o.prevA, o.prevB = oiA, oiB
		o.seen = true
		return false
	}
	rising := oiA > o.prevA && oiB > o.prevB
	o.prevA, o.prevB = oiA, oiB
	return rising
}
