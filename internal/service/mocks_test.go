package service

import (
	"context"
	"sort"
	"time"

	"statarb/internal/models"
	"statarb/internal/repository"
)

// ============ Mock PairRepository ============

type MockPairRepository struct {
	pairs     map[int]*models.PairConfig
	nextID    int
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	countErr  error
}

func NewMockPairRepository() *MockPairRepository {
	return &MockPairRepository{
		pairs:  make(map[int]*models.PairConfig),
		nextID: 1,
	}
}

func (m *MockPairRepository) Create(pair *models.PairConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, p := range m.pairs {
		if p.SymbolA == pair.SymbolA && p.SymbolB == pair.SymbolB {
			return repository.ErrPairExists
		}
	}
	pair.ID = m.nextID
	m.nextID++
	now := time.Now()
	pair.CreatedAt = now
	pair.UpdatedAt = now
	cp := *pair
	m.pairs[pair.ID] = &cp
	return nil
}

func (m *MockPairRepository) GetByID(id int) (*models.PairConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if pair, exists := m.pairs[id]; exists {
		cp := *pair
		return &cp, nil
	}
	return nil, repository.ErrPairNotFound
}

func (m *MockPairRepository) GetBySymbols(symbolA, symbolB string) (*models.PairConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, p := range m.pairs {
		if p.SymbolA == symbolA && p.SymbolB == symbolB {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPairNotFound
}

func (m *MockPairRepository) GetAll() ([]*models.PairConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.PairConfig, 0, len(m.pairs))
	for _, p := range m.pairs {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockPairRepository) GetActive() ([]*models.PairConfig, error) {
	all, err := m.GetAll()
	if err != nil {
		return nil, err
	}
	var result []*models.PairConfig
	for _, p := range all {
		if p.Status == models.PairStatusActive {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPairRepository) GetBySector(sector string) ([]*models.PairConfig, error) {
	all, err := m.GetAll()
	if err != nil {
		return nil, err
	}
	var result []*models.PairConfig
	for _, p := range all {
		if p.Sector == sector {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPairRepository) Update(pair *models.PairConfig) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.pairs[pair.ID]; !exists {
		return repository.ErrPairNotFound
	}
	cp := *pair
	cp.UpdatedAt = time.Now()
	m.pairs[pair.ID] = &cp
	return nil
}

func (m *MockPairRepository) UpdateStatus(id int, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	pair, exists := m.pairs[id]
	if !exists {
		return repository.ErrPairNotFound
	}
	pair.Status = status
	return nil
}

func (m *MockPairRepository) RecordTradeResult(id int, pnl float64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	pair, exists := m.pairs[id]
	if !exists {
		return repository.ErrPairNotFound
	}
	pair.TotalTrades++
	pair.TotalPnl += pnl
	return nil
}

func (m *MockPairRepository) Delete(id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.pairs[id]; !exists {
		return repository.ErrPairNotFound
	}
	delete(m.pairs, id)
	return nil
}

func (m *MockPairRepository) Count() (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.pairs), nil
}

func (m *MockPairRepository) ExistsBySymbols(symbolA, symbolB string) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	for _, p := range m.pairs {
		if p.SymbolA == symbolA && p.SymbolB == symbolB {
			return true, nil
		}
	}
	return false, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	events    []*models.TradeEvent
	nextID    int64
	createErr error
	getErr    error

	aggregates map[time.Time]*models.PeriodStats
	topPairs   []models.PairStat
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{nextID: 1}
}

func (m *MockTradeRepository) Create(event *models.TradeEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	event.ID = m.nextID
	m.nextID++
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockTradeRepository) GetByID(id int64) (*models.TradeEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, e := range m.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepository) GetRecent(limit int) ([]*models.TradeEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.TradeEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *m.events[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockTradeRepository) GetByPairID(pairID, limit int) ([]*models.TradeEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.TradeEvent
	for i := len(m.events) - 1; i >= 0 && len(result) < limit; i-- {
		if m.events[i].PairID == pairID {
			cp := *m.events[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) GetByAction(action string, limit int) ([]*models.TradeEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.TradeEvent
	for i := len(m.events) - 1; i >= 0 && len(result) < limit; i-- {
		if m.events[i].Action == action {
			cp := *m.events[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) GetInTimeRange(from, to time.Time) ([]*models.TradeEvent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.TradeEvent
	for _, e := range m.events {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockTradeRepository) AggregateSince(since time.Time) (*models.PeriodStats, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if agg, ok := m.aggregates[since]; ok {
		cp := *agg
		return &cp, nil
	}

	stats := &models.PeriodStats{}
	for _, e := range m.events {
		if e.Timestamp.Before(since) {
			continue
		}
		if e.Action != models.TradeActionExit && e.Action != models.TradeActionStopLoss {
			continue
		}
		stats.Trades++
		if e.Pnl > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.Pnl += e.Pnl
		stats.Funding += e.Funding
		if e.Action == models.TradeActionStopLoss {
			stats.StopOuts++
		}
	}
	return stats, nil
}

func (m *MockTradeRepository) TopPairsSince(since time.Time, limit int) ([]models.PairStat, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.topPairs) > limit {
		return m.topPairs[:limit], nil
	}
	return m.topPairs, nil
}

func (m *MockTradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var kept []*models.TradeEvent
	var deleted int64
	for _, e := range m.events {
		if e.Timestamp.Before(timestamp) {
			deleted++
		} else {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return deleted, nil
}

func (m *MockTradeRepository) Count() (int, error) {
	return len(m.events), nil
}

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	notifications []*models.Notification
	nextID        int64
	createErr     error
	getErr        error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = m.nextID
	m.nextID++
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*models.Notification, 0, len(m.notifications))
	for i := len(m.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *m.notifications[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockNotificationRepository) GetUnread() ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if !m.notifications[i].Read {
			cp := *m.notifications[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockNotificationRepository) MarkRead(id int64) error {
	for _, n := range m.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *MockNotificationRepository) MarkAllRead() error {
	for _, n := range m.notifications {
		n.Read = true
	}
	return nil
}

func (m *MockNotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	var kept []*models.Notification
	var deleted int64
	for _, n := range m.notifications {
		if n.Timestamp.Before(timestamp) {
			deleted++
		} else {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
	return deleted, nil
}

func (m *MockNotificationRepository) CountUnread() (int, error) {
	count := 0
	for _, n := range m.notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	settings *models.Settings
	getErr   error
	saveErr  error
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{}
}

func (m *MockSettingsRepository) Get() (*models.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	cp := *m.settings
	return &cp, nil
}

func (m *MockSettingsRepository) Save(s *models.Settings) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *s
	m.settings = &cp
	return nil
}

// ============ Mock BotEngine ============

type MockEngine struct {
	registered    map[int]*models.PairConfig
	runtimes      map[int]*models.PairRuntime
	openPositions map[int]bool
	basket        models.BasketState
	stuckCount    int

	appliedSettings *models.Settings
	startErr        error
	pauseErr        error
	resetErr        error
	closeErr        error
	addErr          error
	removeErr       error
	updateErr       error

	forceClosed []int
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		registered:    make(map[int]*models.PairConfig),
		runtimes:      make(map[int]*models.PairRuntime),
		openPositions: make(map[int]bool),
	}
}

func (m *MockEngine) AddPair(pair *models.PairConfig) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.registered[pair.ID] = pair
	return nil
}

func (m *MockEngine) RemovePair(pairID int) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.registered, pairID)
	return nil
}

func (m *MockEngine) StartPair(pairID int) error  { return m.startErr }
func (m *MockEngine) PausePair(pairID int) error  { return m.pauseErr }
func (m *MockEngine) ResetStuckPair(id int) error { return m.resetErr }

func (m *MockEngine) ForceClosePair(ctx context.Context, pairID int) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.forceClosed = append(m.forceClosed, pairID)
	return nil
}

func (m *MockEngine) UpdatePairConfig(pair *models.PairConfig) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.registered[pair.ID] = pair
	return nil
}

func (m *MockEngine) HasOpenPosition(pairID int) bool {
	return m.openPositions[pairID]
}

func (m *MockEngine) GetPairRuntime(pairID int) (*models.PairRuntime, error) {
	if rt, ok := m.runtimes[pairID]; ok {
		return rt, nil
	}
	return nil, repository.ErrPairNotFound
}

func (m *MockEngine) GetBasket() models.BasketState { return m.basket }
func (m *MockEngine) StuckPairCount() int           { return m.stuckCount }

func (m *MockEngine) ApplySettings(s *models.Settings) {
	m.appliedSettings = s
}

// ============ Mock Broadcasters ============

type MockBroadcaster struct {
	trades        []*models.TradeEvent
	notifications []*models.Notification
}

func (m *MockBroadcaster) BroadcastTradeEvent(event *models.TradeEvent) {
	m.trades = append(m.trades, event)
}

func (m *MockBroadcaster) BroadcastNotification(n *models.Notification) {
	m.notifications = append(m.notifications, n)
}
