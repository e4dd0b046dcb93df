package handlers

import (
	"context"
	"errors"

	"statarb/internal/models"
	"statarb/internal/service"
)

// ErrMockDatabase - инжектируемая ошибка "БД недоступна"
var ErrMockDatabase = errors.New("database unavailable")

// ============ Mock PairService ============

type MockPairService struct {
	pairs  map[int]*models.PairConfig
	nextID int
	errs   map[string]error

	started []int
	paused  []int
	reset   []int
	closed  []int
}

func NewMockPairService() *MockPairService {
	return &MockPairService{
		pairs:  make(map[int]*models.PairConfig),
		nextID: 1,
		errs:   make(map[string]error),
	}
}

func (m *MockPairService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockPairService) CreatePair(cfg *models.PairConfig) error {
	if err := m.errs["create"]; err != nil {
		return err
	}
	cfg.ID = m.nextID
	m.nextID++
	cfg.Status = models.PairStatusPaused
	m.pairs[cfg.ID] = cfg
	return nil
}

func (m *MockPairService) GetPair(id int) (*models.PairConfig, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	if pair, ok := m.pairs[id]; ok {
		return pair, nil
	}
	return nil, service.ErrPairNotFound
}

func (m *MockPairService) GetPairs() ([]*models.PairConfig, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	result := make([]*models.PairConfig, 0, len(m.pairs))
	for _, p := range m.pairs {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockPairService) GetPairStatus(id int) (*service.PairStatus, error) {
	pair, err := m.GetPair(id)
	if err != nil {
		return nil, err
	}
	return &service.PairStatus{Config: pair}, nil
}

func (m *MockPairService) GetAllStatuses() ([]*service.PairStatus, error) {
	pairs, err := m.GetPairs()
	if err != nil {
		return nil, err
	}
	statuses := make([]*service.PairStatus, 0, len(pairs))
	for _, p := range pairs {
		statuses = append(statuses, &service.PairStatus{
			Config:  p,
			Runtime: &models.PairRuntime{PairID: p.ID, State: models.StatePaused},
		})
	}
	return statuses, nil
}

func (m *MockPairService) UpdatePair(id int, params service.UpdatePairParams) (*models.PairConfig, error) {
	if err := m.errs["update"]; err != nil {
		return nil, err
	}
	pair, ok := m.pairs[id]
	if !ok {
		return nil, service.ErrPairNotFound
	}
	if params.EntryZ != nil {
		pair.EntryZ = *params.EntryZ
	}
	return pair, nil
}

func (m *MockPairService) DeletePair(id int) error {
	if err := m.errs["delete"]; err != nil {
		return err
	}
	if _, ok := m.pairs[id]; !ok {
		return service.ErrPairNotFound
	}
	delete(m.pairs, id)
	return nil
}

func (m *MockPairService) StartPair(id int) error {
	if err := m.errs["start"]; err != nil {
		return err
	}
	if _, ok := m.pairs[id]; !ok {
		return service.ErrPairNotFound
	}
	m.started = append(m.started, id)
	return nil
}

func (m *MockPairService) PausePair(id int) error {
	if err := m.errs["pause"]; err != nil {
		return err
	}
	m.paused = append(m.paused, id)
	return nil
}

func (m *MockPairService) ResetStuckPair(id int) error {
	if err := m.errs["reset"]; err != nil {
		return err
	}
	m.reset = append(m.reset, id)
	return nil
}

func (m *MockPairService) ForceClosePair(ctx context.Context, id int) error {
	if err := m.errs["close"]; err != nil {
		return err
	}
	m.closed = append(m.closed, id)
	return nil
}

// ============ Mock SettingsService ============

type MockSettingsService struct {
	settings *models.Settings
	errs     map[string]error
}

func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{
		settings: models.DefaultSettings(),
		errs:     make(map[string]error),
	}
}

func (m *MockSettingsService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockSettingsService) GetSettings() (*models.Settings, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	return m.settings, nil
}

func (m *MockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.Settings, error) {
	if err := m.errs["update"]; err != nil {
		return nil, err
	}
	if req.EntryZ != nil {
		if *req.EntryZ <= m.settings.ExitZ {
			return nil, service.ErrInvalidEntryExit
		}
		m.settings.EntryZ = *req.EntryZ
	}
	if req.RiskPct != nil {
		m.settings.RiskPct = *req.RiskPct
	}
	return m.settings, nil
}

// ============ Mock StatsService ============

type MockStatsService struct {
	stats  *models.Stats
	trades []*models.TradeEvent
	errs   map[string]error
}

func NewMockStatsService() *MockStatsService {
	return &MockStatsService{
		stats: &models.Stats{},
		errs:  make(map[string]error),
	}
}

func (m *MockStatsService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockStatsService) GetStats() (*models.Stats, error) {
	if err := m.errs["stats"]; err != nil {
		return nil, err
	}
	return m.stats, nil
}

func (m *MockStatsService) GetRecentTrades(limit int) ([]*models.TradeEvent, error) {
	if err := m.errs["trades"]; err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(m.trades) {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockStatsService) GetPairTrades(pairID, limit int) ([]*models.TradeEvent, error) {
	if err := m.errs["trades"]; err != nil {
		return nil, err
	}
	var result []*models.TradeEvent
	for _, e := range m.trades {
		if e.PairID == pairID {
			result = append(result, e)
		}
	}
	return result, nil
}

// ============ Mock NotificationService ============

type MockNotificationService struct {
	notifications []*models.Notification
	errs          map[string]error
	markedRead    []int64
	markedAll     bool
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{errs: make(map[string]error)}
}

func (m *MockNotificationService) SetError(op string, err error) {
	m.errs[op] = err
}

func (m *MockNotificationService) GetNotifications(limit int) ([]*models.Notification, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	return m.notifications, nil
}

func (m *MockNotificationService) GetUnread() ([]*models.Notification, error) {
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	var result []*models.Notification
	for _, n := range m.notifications {
		if !n.Read {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockNotificationService) MarkRead(id int64) error {
	if err := m.errs["mark"]; err != nil {
		return err
	}
	m.markedRead = append(m.markedRead, id)
	return nil
}

func (m *MockNotificationService) MarkAllRead() error {
	if err := m.errs["mark"]; err != nil {
		return err
	}
	m.markedAll = true
	return nil
}

func (m *MockNotificationService) UnreadCount() (int, error) {
	if err := m.errs["get"]; err != nil {
		return 0, err
	}
	count := 0
	for _, n := range m.notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
