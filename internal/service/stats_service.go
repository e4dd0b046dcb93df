package service

import (
	"time"

	"statarb/internal/models"
)

// Число пар в топе статистики
const topPairsLimit = 5

// StatsService - сводная статистика торговли
//
// Агрегаты считаются по журналу закрытий (EXIT, STOP_LOSS); "сегодня"
// и календарные периоды - по локальному времени процесса.
type StatsService struct {
	tradeRepo TradeRepositoryInterface
	engine    BotEngine

	now func() time.Time
}

// NewStatsService создает сервис статистики
func NewStatsService(tradeRepo TradeRepositoryInterface) *StatsService {
	return &StatsService{
		tradeRepo: tradeRepo,
		now:       time.Now,
	}
}

// SetEngine устанавливает торговый движок
func (s *StatsService) SetEngine(engine BotEngine) {
	s.engine = engine
}

// GetStats возвращает сводку за день/неделю/месяц/все время
func (s *StatsService) GetStats() (*models.Stats, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &models.Stats{}

	periods := []struct {
		since time.Time
		dst   *models.PeriodStats
	}{
		{dayStart, &stats.Today},
		{now.AddDate(0, 0, -7), &stats.Week},
		{now.AddDate(0, -1, 0), &stats.Month},
		{time.Time{}, &stats.Total},
	}

	for _, p := range periods {
		agg, err := s.tradeRepo.AggregateSince(p.since)
		if err != nil {
			return nil, err
		}
		*p.dst = *agg
	}

	top, err := s.tradeRepo.TopPairsSince(now.AddDate(0, -1, 0), topPairsLimit)
	if err != nil {
		return nil, err
	}
	stats.TopPairs = top

	if s.engine != nil {
		stats.StuckPairs = s.engine.StuckPairCount()
	}
	return stats, nil
}

// GetRecentTrades возвращает последние события журнала
func (s *StatsService) GetRecentTrades(limit int) ([]*models.TradeEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.tradeRepo.GetRecent(limit)
}

// GetPairTrades возвращает события журнала по паре
func (s *StatsService) GetPairTrades(pairID, limit int) ([]*models.TradeEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.tradeRepo.GetByPairID(pairID, limit)
}
