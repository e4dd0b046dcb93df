package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Namespace statarb, сабсистемы: signal, risk,
// trading, runtime.
var (
	// ============ SIGNAL ============

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "statarb",
		Subsystem: "signal",
		Name:      "tick_duration_seconds",
		Help:      "Длительность полного тика по всем парам",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	PairEvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "statarb",
		Subsystem: "signal",
		Name:      "pair_eval_duration_seconds",
		Help:      "Длительность обработки одной пары за тик",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "signal",
		Name:      "signals_total",
		Help:      "Сигналы движка по действиям",
	}, []string{"action"})

	ZScoreObserved = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "signal",
		Name:      "zscore",
		Help:      "Текущий z-score спреда пары",
	}, []string{"pair"})

	DataUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "signal",
		Name:      "data_unavailable_total",
		Help:      "Пропуски пар из-за недоступных или протухших данных",
	})

	// ============ RISK ============

	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "admissions_total",
		Help:      "Решения допуска в корзину",
	}, []string{"result"})

	BasketUsedRisk = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "basket_used_risk_pct",
		Help:      "Занятый риск корзины, % от equity",
	})

	BasketLeverage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "basket_leverage",
		Help:      "Текущее плечо корзины",
	})

	BasketEquity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "basket_equity",
		Help:      "Equity корзины с учетом реализованного PnL",
	})

	StopLossTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "stop_loss_total",
		Help:      "Срабатывания жесткого стопа",
	})

	TrailingExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "trailing_exits_total",
		Help:      "Выходы по трейлинг-стопу",
	})

	InvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "risk",
		Name:      "invariant_violations_total",
		Help:      "Нарушения инвариантов учета корзины",
	})

	// ============ TRADING ============

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Торговые события по действиям",
	}, []string{"action"})

	RealizedPnl = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "realized_pnl",
		Help:      "Накопленный реализованный PnL",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "open_positions",
		Help:      "Число открытых позиций",
	})

	ExecRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "exec_retries_total",
		Help:      "Повторы операций исполнения",
	})

	StuckPairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "stuck_pairs_total",
		Help:      "Пары, ушедшие в STUCK",
	})

	// ============ RUNTIME ============

	ActivePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "runtime",
		Name:      "active_pairs",
		Help:      "Число пар не на паузе",
	})

	NotificationDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "runtime",
		Name:      "notification_drops_total",
		Help:      "Уведомления, отброшенные из-за переполнения буфера",
	})
)

// RecordSignal инкрементирует счетчик сигналов
func RecordSignal(action string) {
	SignalsTotal.WithLabelValues(action).Inc()
}

// RecordAdmission фиксирует решение допуска
func RecordAdmission(admitted bool) {
	if admitted {
		AdmissionsTotal.WithLabelValues("admitted").Inc()
	} else {
		AdmissionsTotal.WithLabelValues("rejected").Inc()
	}
}

// RecordTrade фиксирует торговое событие
func RecordTrade(action string) {
	TradesTotal.WithLabelValues(action).Inc()
}

// UpdateBasketMetrics публикует агрегаты корзины
func UpdateBasketMetrics(usedRiskPct, leverage, equity float64, openPositions int) {
	BasketUsedRisk.Set(usedRiskPct)
	BasketLeverage.Set(leverage)
	BasketEquity.Set(equity)
	OpenPositions.Set(float64(openPositions))
}
