package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"statarb/internal/exchange"
	"statarb/internal/models"
	"statarb/pkg/retry"
)

// Размер буфера уведомлений; переполнение - дроп с метрикой
const notificationBufferSize = 256

// TradeRecorder - приемник торговых событий
//
// Реализуется сервисным слоем: запись в БД, CSV-журнал, трансляция
// в WebSocket. Вызывается синхронно из горутины пары.
type TradeRecorder interface {
	RecordTrade(event *models.TradeEvent)
}

// WebSocketHub - трансляция состояния в UI
type WebSocketHub interface {
	BroadcastPairUpdate(runtime *models.PairRuntime)
	BroadcastBasketUpdate(basket *models.BasketState)
	BroadcastNotification(n *models.Notification)
}

// Options - параметры оркестратора
type Options struct {
	TickInterval   time.Duration
	SnapshotMaxAge time.Duration
	InitialEquity  float64

	Window     int
	MinPeriods int
	EMAFast    int
	EMASlow    int
	RSIPeriod  int

	MaxExecRetries int
	ExecBackoff    time.Duration
	ExecTimeout    time.Duration
}

// PairState - пара и все ее рабочее состояние
//
// mu защищает Config/Runtime. busy - атомарный флаг обработки:
// тики одной пары никогда не перекрываются.
type PairState struct {
	Config  *models.PairConfig
	Runtime *models.PairRuntime
	Signal  *SignalEngine

	// Резерв корзины на время ENTERING: допуск дан, позиция еще не
	// подтверждена. Суммы уже добавлены в корзину; уходят оттуда
	// конвертацией в позицию либо возвратом.
	pendingRiskPct  float64
	pendingNotional float64

	mu   sync.RWMutex
	busy int32
}

// Engine - оркестратор позиций
//
// Тик с фиксированным интервалом: каждая пара обрабатывается ровно
// один раз за тик, пары обрабатываются параллельно. Допуск в корзину
// и мутации BasketState сериализованы одним мьютексом (single-writer).
type Engine struct {
	opts Options

	market exchange.MarketDataPort
	exec   exchange.ExecutionPort
	trades TradeRecorder
	hub    WebSocketHub

	risk *RiskEngine

	settingsMu sync.RWMutex
	settings   *models.Settings

	pairsMu sync.RWMutex
	pairs   map[int]*PairState

	// basketMu - единственный писатель корзины и точка сериализации
	// допуска
	basketMu sync.Mutex
	basket   models.BasketState

	notifications chan *models.Notification

	log *logrus.Entry

	wg      sync.WaitGroup
	stopped int32
}

// NewEngine создает оркестратор
func NewEngine(opts Options, market exchange.MarketDataPort, exec exchange.ExecutionPort,
	trades TradeRecorder, hub WebSocketHub, settings *models.Settings, log *logrus.Logger) *Engine {

	if settings == nil {
		settings = models.DefaultSettings()
	}

	e := &Engine{
		opts:     opts,
		market:   market,
		exec:     exec,
		trades:   trades,
		hub:      hub,
		settings: settings,
		pairs:    make(map[int]*PairState),
		basket: models.BasketState{
			Equity:    opts.InitialEquity,
			UpdatedAt: time.Now(),
		},
		notifications: make(chan *models.Notification, notificationBufferSize),
		log:           log.WithField("component", "engine"),
	}
	e.risk = NewRiskEngine(riskConfigFrom(settings))
	return e
}

// riskConfigFrom собирает конфиг риск-движка из настроек
func riskConfigFrom(s *models.Settings) RiskConfig {
	return RiskConfig{
		RiskPct:             s.RiskPct,
		StopPct:             s.StopPct,
		MaxLeverage:         s.MaxLeverage,
		MaxBasketRiskPct:    s.MaxBasketRiskPct,
		TrailingActivationZ: s.TrailingActivationZ,
		TrailingPct:         s.TrailingPct,
		FundingExitEnabled:  s.FundingExitEnabled,
		FundingExitBudget:   s.FundingExitBudget,
	}
}

// signalConfigFrom собирает конфиг движка сигналов пары
func (e *Engine) signalConfigFrom(pair *models.PairConfig, s *models.Settings) SignalConfig {
	cfg := SignalConfig{
		EntryZ:               s.EntryZ,
		ExitZ:                s.ExitZ,
		EMAFast:              e.opts.EMAFast,
		EMASlow:              e.opts.EMASlow,
		RSIPeriod:            e.opts.RSIPeriod,
		EMAFilterEnabled:     s.EMAFilterEnabled,
		RSIFilterEnabled:     s.RSIFilterEnabled,
		OIFilterEnabled:      s.OIFilterEnabled,
		FundingFilterEnabled: s.FundingFilterEnabled,
		RSIEntryHigh:         s.RSIEntryHigh,
		RSIEntryLow:          s.RSIEntryLow,
		MaxFundingRate:       s.MaxFundingRate,
		MaxHold:              pair.MaxHold(),
	}
	// Переопределения на уровне пары
	if pair.EntryZ > 0 {
		cfg.EntryZ = pair.EntryZ
	}
	if pair.ExitZ > 0 {
		cfg.ExitZ = pair.ExitZ
	}
	return cfg
}

// AddPair регистрирует пару в движке
func (e *Engine) AddPair(pair *models.PairConfig) error {
	e.pairsMu.Lock()
	defer e.pairsMu.Unlock()

	if _, exists := e.pairs[pair.ID]; exists {
		return fmt.Errorf("pair %d already registered", pair.ID)
	}

	state := models.StateFlat
	if pair.Status == models.PairStatusPaused {
		state = models.StatePaused
	}

	window, minPeriods := e.opts.Window, e.opts.MinPeriods
	if pair.Window > 0 {
		window = pair.Window
	}
	if pair.MinPeriods > 0 {
		minPeriods = pair.MinPeriods
	}

	e.settingsMu.RLock()
	sigCfg := e.signalConfigFrom(pair, e.settings)
	e.settingsMu.RUnlock()

	e.pairs[pair.ID] = &PairState{
		Config:  pair,
		Runtime: &models.PairRuntime{PairID: pair.ID, State: state, LastUpdate: time.Now()},
		Signal:  NewSignalEngine(sigCfg, window, minPeriods),
	}

	e.updateActivePairsMetricLocked()
	e.log.WithFields(logrus.Fields{"pair": pair.Key(), "id": pair.ID, "state": state}).Info("pair registered")
	return nil
}

// RemovePair снимает пару с движка. Пары с позицией не снимаются.
func (e *Engine) RemovePair(pairID int) error {
	// Порядок блокировок фиксирован: пара -> корзина -> pairs,
	// поэтому состояние читаем до захвата pairsMu на запись
	ps, err := e.pairState(pairID)
	if err != nil {
		return err
	}

	ps.mu.RLock()
	active := IsActive(ps.Runtime.State)
	ps.mu.RUnlock()
	if active {
		return fmt.Errorf("pair %d is active, close position first", pairID)
	}

	e.pairsMu.Lock()
	delete(e.pairs, pairID)
	e.updateActivePairsMetricLocked()
	e.pairsMu.Unlock()
	return nil
}

// StartPair выводит пару из паузы
func (e *Engine) StartPair(pairID int) error {
	return e.transitionByOperator(pairID, models.StateFlat)
}

// PausePair ставит пару на паузу (без позиции)
func (e *Engine) PausePair(pairID int) error {
	return e.transitionByOperator(pairID, models.StatePaused)
}

// ResetStuckPair вручную сбрасывает STUCK в PAUSED
func (e *Engine) ResetStuckPair(pairID int) error {
	ps, err := e.pairState(pairID)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.Runtime.State != models.StateStuck {
		return fmt.Errorf("pair %d is %s, not STUCK", pairID, ps.Runtime.State)
	}
	if err := TryTransition(ps.Runtime, pairID, models.StatePaused); err != nil {
		return err
	}
	pos := ps.Runtime.Position
	ps.Runtime.Position = nil
	ps.Runtime.UnrealizedPnl = 0
	ps.Runtime.ExecFailures = 0

	// Риск застрявшей позиции числился в корзине до ручного сброса
	if pos != nil {
		e.basketMu.Lock()
		e.basket.UsedRiskPct -= pos.RiskPct
		e.basket.OpenNotional -= pos.EntryNotional
		e.basket.OpenPositions--
		e.refreshBasketLocked()
		e.basketMu.Unlock()
	}
	return nil
}

func (e *Engine) transitionByOperator(pairID int, to string) error {
	ps, err := e.pairState(pairID)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if err := TryTransition(ps.Runtime, pairID, to); err != nil {
		return err
	}
	e.pairsMu.RLock()
	e.updateActivePairsMetricLocked()
	e.pairsMu.RUnlock()
	e.broadcastPair(ps)
	return nil
}

// ForceClosePair инициирует принудительный выход по команде оператора
func (e *Engine) ForceClosePair(ctx context.Context, pairID int) error {
	ps, err := e.pairState(pairID)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.Runtime.State != models.StateOpen {
		return fmt.Errorf("pair %d has no open position", pairID)
	}
	e.closePosition(ctx, ps, models.TradeActionExit, "operator forced close", models.StateFlat)
	return nil
}

// HasOpenPosition сообщает, держит ли пара позицию
func (e *Engine) HasOpenPosition(pairID int) bool {
	ps, err := e.pairState(pairID)
	if err != nil {
		return false
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return HasOpenPosition(ps.Runtime.State)
}

// GetPairRuntime возвращает копию runtime пары
func (e *Engine) GetPairRuntime(pairID int) (*models.PairRuntime, error) {
	ps, err := e.pairState(pairID)
	if err != nil {
		return nil, err
	}

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	rt := *ps.Runtime
	if ps.Runtime.Position != nil {
		pos := *ps.Runtime.Position
		rt.Position = &pos
	}
	return &rt, nil
}

// GetBasket возвращает копию состояния корзины
func (e *Engine) GetBasket() models.BasketState {
	e.basketMu.Lock()
	defer e.basketMu.Unlock()
	return e.basket
}

// StuckPairCount возвращает число пар в состоянии STUCK
func (e *Engine) StuckPairCount() int {
	e.pairsMu.RLock()
	defer e.pairsMu.RUnlock()

	count := 0
	for _, ps := range e.pairs {
		ps.mu.RLock()
		if ps.Runtime.State == models.StateStuck {
			count++
		}
		ps.mu.RUnlock()
	}
	return count
}

// Notifications возвращает канал уведомлений движка
func (e *Engine) Notifications() <-chan *models.Notification {
	return e.notifications
}

// ApplySettings применяет обновленные настройки на лету
func (e *Engine) ApplySettings(s *models.Settings) {
	e.settingsMu.Lock()
	e.settings = s
	e.settingsMu.Unlock()

	e.risk.SetConfig(riskConfigFrom(s))

	e.pairsMu.RLock()
	defer e.pairsMu.RUnlock()
	for _, ps := range e.pairs {
		ps.mu.Lock()
		ps.Signal.SetConfig(e.signalConfigFrom(ps.Config, s))
		ps.mu.Unlock()
	}
	e.log.Info("settings applied")
}

// UpdatePairConfig применяет новую конфигурацию пары
func (e *Engine) UpdatePairConfig(pair *models.PairConfig) error {
	ps, err := e.pairState(pair.ID)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.Config = pair
	e.settingsMu.RLock()
	ps.Signal.SetConfig(e.signalConfigFrom(pair, e.settings))
	e.settingsMu.RUnlock()
	return nil
}

func (e *Engine) pairState(pairID int) (*PairState, error) {
	e.pairsMu.RLock()
	defer e.pairsMu.RUnlock()
	ps, ok := e.pairs[pairID]
	if !ok {
		return nil, fmt.Errorf("pair %d not registered", pairID)
	}
	return ps, nil
}

// Run крутит тики до отмены контекста, затем выполняет shutdown
func (e *Engine) Run(ctx context.Context) {
	e.log.WithField("tick", e.opts.TickInterval).Info("engine started")

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick обрабатывает все пары: каждая ровно один раз
func (e *Engine) tick(ctx context.Context) {
	started := time.Now()

	e.pairsMu.RLock()
	pairs := make([]*PairState, 0, len(e.pairs))
	for _, ps := range e.pairs {
		pairs = append(pairs, ps)
	}
	e.pairsMu.RUnlock()

	for _, ps := range pairs {
		// Предыдущий тик пары еще не завершился - пропуск, никаких
		// перекрытий по одной паре
		if !atomic.CompareAndSwapInt32(&ps.busy, 0, 1) {
			continue
		}

		e.wg.Add(1)
		go func(ps *PairState) {
			defer e.wg.Done()
			defer atomic.StoreInt32(&ps.busy, 0)

			evalStart := time.Now()
			e.evaluatePair(ctx, ps)
			PairEvalDuration.Observe(time.Since(evalStart).Seconds())
		}(ps)
	}

	TickDuration.Observe(time.Since(started).Seconds())
}

// evaluatePair - полный цикл обработки пары за тик
func (e *Engine) evaluatePair(ctx context.Context, ps *PairState) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	state := ps.Runtime.State
	if state == models.StatePaused || state == models.StateStuck {
		return
	}

	snap, err := e.fetchSnapshot(ctx, ps)
	if errors.Is(err, ErrDataUnavailable) {
		// Пропуск без мутации состояния
		DataUnavailableTotal.Inc()
		e.log.WithFields(logrus.Fields{"pair": ps.Config.Key(), "err": err}).Debug("snapshot unavailable, skipping tick")
		return
	}

	ps.Signal.Update(snap, ps.Config.Beta)
	ps.Runtime.LastSpread = ps.Signal.Spread()
	if z, zerr := ps.Signal.Zscore(); zerr == nil {
		ps.Runtime.LastZ = z
		ZScoreObserved.WithLabelValues(ps.Config.Key()).Set(z)
	}
	ps.Runtime.LastUpdate = time.Now()

	switch state {
	case models.StateFlat:
		e.evaluateEntry(ctx, ps, snap)
	case models.StateOpen:
		e.evaluateOpenPosition(ctx, ps, snap)
	}

	e.broadcastPair(ps)
}

// fetchSnapshot запрашивает согласованный снимок; ошибки порта и
// протухшие данные сворачиваются в ErrDataUnavailable
func (e *Engine) fetchSnapshot(ctx context.Context, ps *PairState) (*models.MarketSnapshot, error) {
	snapCtx, cancel := context.WithTimeout(ctx, e.opts.SnapshotMaxAge)
	defer cancel()

	snap, err := e.market.GetSnapshot(snapCtx, ps.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if snap.IsStale(time.Now(), e.opts.SnapshotMaxAge) {
		return nil, fmt.Errorf("%w: snapshot age exceeds %s", ErrDataUnavailable, e.opts.SnapshotMaxAge)
	}
	return snap, nil
}

// evaluateEntry решает и исполняет вход. Пара заблокирована вызывающим.
func (e *Engine) evaluateEntry(ctx context.Context, ps *PairState, snap *models.MarketSnapshot) {
	sig := ps.Signal.Decide(models.StateFlat, "", time.Time{}, time.Now())
	RecordSignal(string(sig.Action))
	if !sig.Action.IsEntry() {
		return
	}

	equity := e.GetBasket().Equity
	size, err := e.risk.Size(ps.Config, equity, snap.PriceA, snap.PriceB)
	if err != nil {
		// RiskRejected не фатален: логируем, пара остается FLAT
		var rejected *RiskRejectedError
		if errors.As(err, &rejected) {
			RecordAdmission(false)
			e.log.WithFields(logrus.Fields{"pair": ps.Config.Key(), "reason": rejected.Reason}).Warn("sizing rejected")
			e.notify(models.NotificationTypeRisk, models.SeverityWarning, ps.Config.ID,
				fmt.Sprintf("Вход по %s отклонен: %s", ps.Config.Key(), rejected.Reason), nil)
		}
		return
	}

	// Допуск и резервирование риска - строго под мьютексом корзины
	e.basketMu.Lock()
	if err := e.risk.Admit(&e.basket, HasOpenPosition(ps.Runtime.State), ps.Config.ID, size); err != nil {
		e.basketMu.Unlock()
		RecordAdmission(false)
		e.log.WithFields(logrus.Fields{"pair": ps.Config.Key(), "err": err}).Warn("admission rejected")
		e.notify(models.NotificationTypeRisk, models.SeverityWarning, ps.Config.ID,
			fmt.Sprintf("Допуск %s отклонен: %v", ps.Config.Key(), err), nil)
		return
	}
	e.basket.UsedRiskPct += size.RiskPct
	e.basket.OpenNotional += size.TotalNotional
	e.basketMu.Unlock()
	ps.pendingRiskPct = size.RiskPct
	ps.pendingNotional = size.TotalNotional
	RecordAdmission(true)

	if err := TryTransition(ps.Runtime, ps.Config.ID, models.StateEntering); err != nil {
		e.releaseReservation(ps)
		return
	}

	e.executeOpen(ctx, ps, sig, size)
}

// executeOpen исполняет вход с ретраями; исчерпание попыток - STUCK
func (e *Engine) executeOpen(ctx context.Context, ps *PairState, sig *models.Signal, size *SizeResult) {
	direction := models.DirectionLong
	action := models.TradeActionEnterLong
	if sig.Action == models.SignalEnterShort {
		direction = models.DirectionShort
		action = models.TradeActionEnterShort
	}

	req := &exchange.OpenRequest{
		Pair:      ps.Config,
		Direction: direction,
		QtyA:      size.QtyA,
		QtyB:      size.QtyB,
	}

	var report *exchange.ExecutionReport
	err := retry.Do(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, e.opts.ExecTimeout)
		defer cancel()

		r, execErr := e.exec.OpenHedged(opCtx, req)
		if execErr != nil {
			return execErr
		}
		if !r.Filled() {
			return &ExecutionFailedError{PairID: ps.Config.ID, Op: "open", Status: r.Status}
		}
		report = r
		return nil
	}, e.execRetryConfig(ctx, ps))

	if err != nil {
		e.markStuck(ps, "open", err)
		return
	}

	sideA, sideB := "long", "short"
	if direction == models.DirectionShort {
		sideA, sideB = "short", "long"
	}

	now := time.Now()
	ps.Runtime.Position = &models.Position{
		PairID:    ps.Config.ID,
		Direction: direction,
		LegA: models.Leg{Symbol: ps.Config.SymbolA, Side: sideA,
			Quantity: report.FilledQtyA, EntryPrice: report.FillPriceA, CurrentPrice: report.FillPriceA},
		LegB: models.Leg{Symbol: ps.Config.SymbolB, Side: sideB,
			Quantity: report.FilledQtyB, EntryPrice: report.FillPriceB, CurrentPrice: report.FillPriceB},
		RiskPct:         size.RiskPct,
		EntryNotional:   size.TotalNotional,
		EntryZ:          sig.ZScore,
		EntrySpread:     sig.Spread,
		EntryTime:       now,
		LastFundingTime: now,
	}
	ps.Runtime.ExecFailures = 0

	if err := TryTransition(ps.Runtime, ps.Config.ID, models.StateOpen); err != nil {
		// Таблица допускает ENTERING -> OPEN; сюда попадать не должны
		e.log.WithField("pair", ps.Config.Key()).Error(err)
		return
	}

	// Резерв становится позицией в одной критической секции: суммы
	// совпадают, учтенный риск корзины не проседает ни в какой момент
	e.basketMu.Lock()
	ps.pendingRiskPct, ps.pendingNotional = 0, 0
	e.basket.OpenPositions++
	e.refreshBasketLocked()
	e.basketMu.Unlock()

	e.emitTradeEvent(ps, action, sig.ZScore, sig.Reason, 0)
	e.notify(models.NotificationTypeEntry, models.SeverityInfo, ps.Config.ID,
		fmt.Sprintf("📈 Вход %s по %s: z=%.2f, номинал %.2f", direction, ps.Config.Key(), sig.ZScore, size.TotalNotional), nil)
	e.log.WithFields(logrus.Fields{
		"pair": ps.Config.Key(), "direction": direction, "z": sig.ZScore,
		"qtyA": report.FilledQtyA, "qtyB": report.FilledQtyB,
	}).Info("position opened")
}

// evaluateOpenPosition обслуживает открытую позицию: риск-проверки,
// затем сигнал выхода
func (e *Engine) evaluateOpenPosition(ctx context.Context, ps *PairState, snap *models.MarketSnapshot) {
	pos := ps.Runtime.Position
	if pos == nil {
		// OPEN без позиции - нарушение инварианта учета
		e.raiseInvariant("position-accounting", fmt.Sprintf("pair %d OPEN without position", ps.Config.ID))
		return
	}

	UpdatePnl(pos, snap.PriceA, snap.PriceB)
	ps.Runtime.UnrealizedPnl = pos.UnrealizedPnl

	equity := e.GetBasket().Equity
	spread := ps.Signal.Spread()
	z := ps.Runtime.LastZ

	// Жесткий стоп имеет высший приоритет: после него пара на паузе
	if e.risk.CheckStopLoss(pos, equity) {
		StopLossTotal.Inc()
		e.closePosition(ctx, ps, models.TradeActionStopLoss,
			fmt.Sprintf("stop loss: pnl %.2f reached risk amount", pos.UnrealizedPnl), models.StatePaused)
		return
	}

	if e.risk.UpdateTrailingStop(pos, spread, z) {
		TrailingExitsTotal.Inc()
		e.closePosition(ctx, ps, models.TradeActionExit, "trailing stop crossed", models.StateFlat)
		return
	}

	if e.risk.AccrueFunding(pos, snap.FundingRate, equity, time.Now()) {
		e.closePosition(ctx, ps, models.TradeActionExit,
			fmt.Sprintf("adverse funding %.4f exceeded budget", pos.AccruedFunding), models.StateFlat)
		return
	}

	sig := ps.Signal.Decide(models.StateOpen, pos.Direction, pos.EntryTime, time.Now())
	RecordSignal(string(sig.Action))
	if sig.Action == models.SignalExit {
		e.closePosition(ctx, ps, models.TradeActionExit, sig.Reason, models.StateFlat)
	}
}

// closePosition исполняет выход с ретраями. finalState - FLAT для
// обычного выхода, PAUSED после стоп-аута. Пара заблокирована
// вызывающим.
func (e *Engine) closePosition(ctx context.Context, ps *PairState, action, reason, finalState string) {
	pos := ps.Runtime.Position

	if err := TryTransition(ps.Runtime, ps.Config.ID, models.StateExiting); err != nil {
		e.log.WithField("pair", ps.Config.Key()).Error(err)
		return
	}

	var report *exchange.ExecutionReport
	err := retry.Do(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, e.opts.ExecTimeout)
		defer cancel()

		r, execErr := e.exec.CloseHedged(opCtx, pos)
		if execErr != nil {
			return execErr
		}
		if !r.Filled() {
			return &ExecutionFailedError{PairID: ps.Config.ID, Op: "close", Status: r.Status}
		}
		report = r
		return nil
	}, e.execRetryConfig(ctx, ps))

	if err != nil {
		e.markStuck(ps, "close", err)
		return
	}

	realized := UpdatePnl(pos, report.FillPriceA, report.FillPriceB) + pos.AccruedFunding
	funding := pos.AccruedFunding
	zAtClose := ps.Runtime.LastZ

	ps.Runtime.Position = nil
	ps.Runtime.UnrealizedPnl = 0
	ps.Runtime.RealizedPnl += realized

	if err := TryTransition(ps.Runtime, ps.Config.ID, finalState); err != nil {
		e.log.WithField("pair", ps.Config.Key()).Error(err)
		return
	}

	e.basketMu.Lock()
	e.basket.Equity += realized
	e.basket.UsedRiskPct -= pos.RiskPct
	e.basket.OpenNotional -= pos.EntryNotional
	e.basket.OpenPositions--
	e.refreshBasketLocked()
	e.basketMu.Unlock()
	RealizedPnl.Add(realized)

	e.emitTradeEventClosed(ps, pos, action, zAtClose, reason, realized, funding)

	severity := models.SeverityInfo
	ntype := models.NotificationTypeExit
	if action == models.TradeActionStopLoss {
		severity = models.SeverityWarning
		ntype = models.NotificationTypeStopLoss
	}
	e.notify(ntype, severity, ps.Config.ID,
		fmt.Sprintf("💰 Выход по %s: pnl %.2f (%s)", ps.Config.Key(), realized, reason), nil)
	e.log.WithFields(logrus.Fields{
		"pair": ps.Config.Key(), "action": action, "pnl": realized, "reason": reason,
	}).Info("position closed")
}

// execRetryConfig собирает конфиг ретраев исполнения.
// Таймаут отдельной попытки - повторяемая ошибка; цикл ретраев
// прекращает только отмена родительского контекста.
func (e *Engine) execRetryConfig(ctx context.Context, ps *PairState) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = e.opts.MaxExecRetries
	cfg.InitialDelay = e.opts.ExecBackoff
	cfg.RetryIf = func(error) bool { return ctx.Err() == nil }
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		ExecRetriesTotal.Inc()
		ps.Runtime.ExecFailures++
		e.log.WithFields(logrus.Fields{
			"pair": ps.Config.Key(), "attempt": attempt, "delay": delay, "err": err,
		}).Warn("execution retry")
	}
	return cfg
}

// markStuck переводит пару в STUCK после исчерпания ретраев
func (e *Engine) markStuck(ps *PairState, op string, err error) {
	StuckPairsTotal.Inc()
	ps.Runtime.LastError = err.Error()
	if terr := TryTransition(ps.Runtime, ps.Config.ID, models.StateStuck); terr != nil {
		ForceTransition(ps.Runtime, models.StateStuck)
	}
	// Резерв ENTERING снимается; подтвержденная позиция остается в
	// корзине до ручного сброса - она может еще жить на бирже
	e.releaseReservation(ps)
	e.emitTradeEvent(ps, models.TradeActionStuck, ps.Runtime.LastZ,
		fmt.Sprintf("%s failed after retries: %v", op, err), 0)
	e.notify(models.NotificationTypeStuck, models.SeverityCritical, ps.Config.ID,
		fmt.Sprintf("🚨 Пара %s застряла на операции %s: %v", ps.Config.Key(), op, err), nil)
	e.log.WithFields(logrus.Fields{"pair": ps.Config.Key(), "op": op, "err": err}).Error("pair stuck")
}

// releaseReservation снимает с корзины резерв пары в ENTERING.
// Вызывающий держит ps.mu.
func (e *Engine) releaseReservation(ps *PairState) {
	if ps.pendingRiskPct == 0 && ps.pendingNotional == 0 {
		return
	}
	e.basketMu.Lock()
	e.basket.UsedRiskPct -= ps.pendingRiskPct
	e.basket.OpenNotional -= ps.pendingNotional
	e.refreshBasketLocked()
	e.basketMu.Unlock()
	ps.pendingRiskPct, ps.pendingNotional = 0, 0
}

// refreshBasketLocked пересчитывает производные поля корзины и
// транслирует состояние. Корзина ведется инкрементально: резерв при
// допуске, конвертация резерва в позицию на ENTERING -> OPEN, возврат
// при закрытии или ручном сбросе. Состояние чужих пар отсюда не
// читается. Вызывающий держит basketMu.
func (e *Engine) refreshBasketLocked() {
	if e.basket.Equity > 0 {
		e.basket.LeverageInUse = e.basket.OpenNotional / e.basket.Equity
	}
	e.basket.UpdatedAt = time.Now()

	// Инвариант учета: занятый риск не может превышать 100% equity
	if e.basket.UsedRiskPct > 100 {
		e.basket.HaltEntries = true
		InvariantViolationsTotal.Inc()
	}

	UpdateBasketMetrics(e.basket.UsedRiskPct, e.basket.LeverageInUse, e.basket.Equity, e.basket.OpenPositions)

	if e.hub != nil {
		basket := e.basket
		e.hub.BroadcastBasketUpdate(&basket)
	}
}

// raiseInvariant запрещает новые входы по всей корзине
//
// Открытые позиции продолжают мониториться только на выход.
func (e *Engine) raiseInvariant(invariant, detail string) {
	InvariantViolationsTotal.Inc()
	e.basketMu.Lock()
	e.basket.HaltEntries = true
	e.basketMu.Unlock()

	verr := &InvariantViolationError{Invariant: invariant, Detail: detail}
	e.notify(models.NotificationTypeInvariant, models.SeverityCritical, 0, verr.Error(), nil)
	e.log.Error(verr)
}

// shutdown дожидается текущих тиков и помечает незавершенные
// исполнения STUCK: молчаливое бросание in-flight позиций запрещено
func (e *Engine) shutdown() {
	if !atomic.CompareAndSwapInt32(&e.stopped, 0, 1) {
		return
	}
	e.log.Info("engine stopping, waiting for in-flight ticks")
	e.wg.Wait()

	e.pairsMu.RLock()
	pairs := make([]*PairState, 0, len(e.pairs))
	for _, ps := range e.pairs {
		pairs = append(pairs, ps)
	}
	e.pairsMu.RUnlock()

	for _, ps := range pairs {
		ps.mu.Lock()
		state := ps.Runtime.State
		if state == models.StateEntering || state == models.StateExiting {
			ps.Runtime.LastError = "shutdown during execution"
			ForceTransition(ps.Runtime, models.StateStuck)
			StuckPairsTotal.Inc()
			e.releaseReservation(ps)
			e.emitTradeEvent(ps, models.TradeActionStuck, ps.Runtime.LastZ, "shutdown during execution", 0)
			e.notify(models.NotificationTypeStuck, models.SeverityCritical, ps.Config.ID,
				fmt.Sprintf("🚨 Shutdown: пара %s помечена STUCK в состоянии %s", ps.Config.Key(), state), nil)
		}
		ps.mu.Unlock()
	}

	e.log.Info("engine stopped")
}

// emitTradeEvent формирует событие для пары с позицией или без
func (e *Engine) emitTradeEvent(ps *PairState, action string, z float64, reason string, pnl float64) {
	event := &models.TradeEvent{
		Timestamp: time.Now(),
		PairID:    ps.Config.ID,
		Action:    action,
		Sector:    ps.Config.Sector,
		SymbolA:   ps.Config.SymbolA,
		SymbolB:   ps.Config.SymbolB,
		ZScore:    z,
		Reason:    reason,
		Pnl:       pnl,
	}
	if pos := ps.Runtime.Position; pos != nil {
		event.SideA, event.SideB = pos.LegA.Side, pos.LegB.Side
		event.QtyA, event.QtyB = pos.LegA.Quantity, pos.LegB.Quantity
		event.PriceA, event.PriceB = pos.LegA.EntryPrice, pos.LegB.EntryPrice
	}
	RecordTrade(action)
	if e.trades != nil {
		e.trades.RecordTrade(event)
	}
}

// emitTradeEventClosed формирует событие закрытия по снятой позиции
func (e *Engine) emitTradeEventClosed(ps *PairState, pos *models.Position, action string, z float64, reason string, pnl, funding float64) {
	event := &models.TradeEvent{
		Timestamp: time.Now(),
		PairID:    ps.Config.ID,
		Action:    action,
		Sector:    ps.Config.Sector,
		SymbolA:   ps.Config.SymbolA,
		SymbolB:   ps.Config.SymbolB,
		SideA:     pos.LegA.Side,
		SideB:     pos.LegB.Side,
		QtyA:      pos.LegA.Quantity,
		QtyB:      pos.LegB.Quantity,
		PriceA:    pos.LegA.CurrentPrice,
		PriceB:    pos.LegB.CurrentPrice,
		ZScore:    z,
		Reason:    reason,
		Pnl:       pnl,
		Funding:   funding,
	}
	RecordTrade(action)
	if e.trades != nil {
		e.trades.RecordTrade(event)
	}
}

// notify отправляет уведомление без блокировки; переполнение - дроп
func (e *Engine) notify(ntype, severity string, pairID int, message string, meta map[string]interface{}) {
	n := &models.Notification{
		Timestamp: time.Now(),
		Type:      ntype,
		Severity:  severity,
		Message:   message,
		Meta:      meta,
	}
	if pairID > 0 {
		n.PairID = &pairID
	}

	select {
	case e.notifications <- n:
	default:
		NotificationDrops.Inc()
	}

	if e.hub != nil {
		e.hub.BroadcastNotification(n)
	}
}

func (e *Engine) broadcastPair(ps *PairState) {
	if e.hub == nil {
		return
	}
	rt := *ps.Runtime
	if ps.Runtime.Position != nil {
		pos := *ps.Runtime.Position
		rt.Position = &pos
	}
	e.hub.BroadcastPairUpdate(&rt)
}

// updateActivePairsMetricLocked пересчитывает метрику активных пар.
// Вызывающий держит pairsMu.
func (e *Engine) updateActivePairsMetricLocked() {
	active := 0
	for _, ps := range e.pairs {
		if ps.Runtime.State != models.StatePaused {
			active++
		}
	}
	ActivePairs.Set(float64(active))
}
