package service

import (
	"context"
	"time"

	"statarb/internal/bot"
	"statarb/internal/models"
	"statarb/internal/repository"
)

// PairRepositoryInterface определяет интерфейс репозитория пар
type PairRepositoryInterface interface {
	Create(pair *models.PairConfig) error
	GetByID(id int) (*models.PairConfig, error)
	GetBySymbols(symbolA, symbolB string) (*models.PairConfig, error)
	GetAll() ([]*models.PairConfig, error)
	GetActive() ([]*models.PairConfig, error)
	GetBySector(sector string) ([]*models.PairConfig, error)
	Update(pair *models.PairConfig) error
	UpdateStatus(id int, status string) error
	RecordTradeResult(id int, pnl float64) error
	Delete(id int) error
	Count() (int, error)
	ExistsBySymbols(symbolA, symbolB string) (bool, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория журнала сделок
type TradeRepositoryInterface interface {
	Create(event *models.TradeEvent) error
	GetByID(id int64) (*models.TradeEvent, error)
	GetRecent(limit int) ([]*models.TradeEvent, error)
	GetByPairID(pairID, limit int) ([]*models.TradeEvent, error)
	GetByAction(action string, limit int) ([]*models.TradeEvent, error)
	GetInTimeRange(from, to time.Time) ([]*models.TradeEvent, error)
	AggregateSince(since time.Time) (*models.PeriodStats, error)
	TopPairsSince(since time.Time, limit int) ([]models.PairStat, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetUnread() ([]*models.Notification, error)
	MarkRead(id int64) error
	MarkAllRead() error
	DeleteOlderThan(timestamp time.Time) (int64, error)
	CountUnread() (int, error)
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get() (*models.Settings, error)
	Save(s *models.Settings) error
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ PairRepositoryInterface = (*repository.PairRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)

// BotEngine определяет интерфейс для взаимодействия с оркестратором
type BotEngine interface {
	// AddPair регистрирует пару в движке
	AddPair(pair *models.PairConfig) error
	// RemovePair удаляет пару из движка
	RemovePair(pairID int) error
	// StartPair переводит пару из PAUSED в FLAT
	StartPair(pairID int) error
	// PausePair останавливает пару (открытая позиция доводится до выхода)
	PausePair(pairID int) error
	// ResetStuckPair возвращает STUCK-пару в PAUSED после ручной сверки
	ResetStuckPair(pairID int) error
	// ForceClosePair принудительно закрывает позицию пары
	ForceClosePair(ctx context.Context, pairID int) error
	// UpdatePairConfig применяет новую конфигурацию пары
	UpdatePairConfig(pair *models.PairConfig) error
	// HasOpenPosition сообщает, держит ли пара позицию
	HasOpenPosition(pairID int) bool
	// GetPairRuntime возвращает runtime состояние пары
	GetPairRuntime(pairID int) (*models.PairRuntime, error)
	// GetBasket возвращает состояние корзины
	GetBasket() models.BasketState
	// StuckPairCount возвращает число пар в STUCK
	StuckPairCount() int
	// ApplySettings применяет обновленные настройки на лету
	ApplySettings(s *models.Settings)
}

var _ BotEngine = (*bot.Engine)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// PairServiceInterface определяет интерфейс сервиса пар
type PairServiceInterface interface {
	CreatePair(cfg *models.PairConfig) error
	GetPair(id int) (*models.PairConfig, error)
	GetPairs() ([]*models.PairConfig, error)
	GetPairStatus(id int) (*PairStatus, error)
	GetAllStatuses() ([]*PairStatus, error)
	UpdatePair(id int, params UpdatePairParams) (*models.PairConfig, error)
	DeletePair(id int) error
	StartPair(id int) error
	PausePair(id int) error
	ResetStuckPair(id int) error
	ForceClosePair(ctx context.Context, id int) error
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(limit int) ([]*models.Notification, error)
	GetUnread() ([]*models.Notification, error)
	MarkRead(id int64) error
	MarkAllRead() error
	UnreadCount() (int, error)
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetStats() (*models.Stats, error)
	GetRecentTrades(limit int) ([]*models.TradeEvent, error)
	GetPairTrades(pairID, limit int) ([]*models.TradeEvent, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ PairServiceInterface = (*PairService)(nil)
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
