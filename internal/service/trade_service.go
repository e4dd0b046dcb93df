package service

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"statarb/internal/bot"
	"statarb/internal/models"
)

// TradeBroadcaster - трансляция торговых событий в WebSocket
type TradeBroadcaster interface {
	BroadcastTradeEvent(event *models.TradeEvent)
}

// TradeService - журнал сделок
//
// Реализует bot.TradeRecorder: каждое событие пишется в БД,
// дублируется в CSV-файл и транслируется подписчикам. Запись в CSV -
// страховка на случай потери БД; файл append-only.
type TradeService struct {
	tradeRepo TradeRepositoryInterface
	pairRepo  PairRepositoryInterface
	hub       TradeBroadcaster

	csvMu     sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer

	log *logrus.Entry
}

var _ bot.TradeRecorder = (*TradeService)(nil)

var csvHeader = []string{
	"timestamp", "pair_id", "action", "sector", "symbol_a", "symbol_b",
	"side_a", "side_b", "qty_a", "qty_b", "price_a", "price_b",
	"zscore", "reason", "pnl", "funding",
}

// NewTradeService создает журнал сделок. csvPath может быть пустым -
// тогда CSV-дублирование выключено.
func NewTradeService(tradeRepo TradeRepositoryInterface, pairRepo PairRepositoryInterface,
	hub TradeBroadcaster, csvPath string, log *logrus.Logger) (*TradeService, error) {

	s := &TradeService{
		tradeRepo: tradeRepo,
		pairRepo:  pairRepo,
		hub:       hub,
		log:       log.WithField("component", "trades"),
	}

	if csvPath != "" {
		info, statErr := os.Stat(csvPath)
		file, err := os.OpenFile(csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		s.csvFile = file
		s.csvWriter = csv.NewWriter(file)

		// Заголовок только для нового или пустого файла
		if statErr != nil || info.Size() == 0 {
			if err := s.csvWriter.Write(csvHeader); err != nil {
				file.Close()
				return nil, err
			}
			s.csvWriter.Flush()
		}
	}

	return s, nil
}

// RecordTrade фиксирует торговое событие по всем каналам.
// Ошибка одного канала не блокирует остальные.
func (s *TradeService) RecordTrade(event *models.TradeEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := s.tradeRepo.Create(event); err != nil {
		s.log.WithError(err).WithField("pair_id", event.PairID).Error("failed to persist trade event")
	}

	s.appendCSV(event)

	// Агрегаты пары обновляются только на закрытиях
	if event.Action == models.TradeActionExit || event.Action == models.TradeActionStopLoss {
		if err := s.pairRepo.RecordTradeResult(event.PairID, event.Pnl); err != nil {
			s.log.WithError(err).WithField("pair_id", event.PairID).Error("failed to update pair totals")
		}
	}

	if s.hub != nil {
		s.hub.BroadcastTradeEvent(event)
	}
}

func (s *TradeService) appendCSV(event *models.TradeEvent) {
	if s.csvWriter == nil {
		return
	}

	record := []string{
		event.Timestamp.UTC().Format(time.RFC3339),
		strconv.Itoa(event.PairID),
		event.Action,
		event.Sector,
		event.SymbolA,
		event.SymbolB,
		event.SideA,
		event.SideB,
		formatFloat(event.QtyA),
		formatFloat(event.QtyB),
		formatFloat(event.PriceA),
		formatFloat(event.PriceB),
		formatFloat(event.ZScore),
		event.Reason,
		formatFloat(event.Pnl),
		formatFloat(event.Funding),
	}

	s.csvMu.Lock()
	defer s.csvMu.Unlock()

	if err := s.csvWriter.Write(record); err != nil {
		s.log.WithError(err).Error("failed to append trade to csv")
		return
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		s.log.WithError(err).Error("failed to flush trade csv")
	}
}

// Close закрывает CSV-файл журнала
func (s *TradeService) Close() error {
	s.csvMu.Lock()
	defer s.csvMu.Unlock()

	if s.csvFile == nil {
		return nil
	}
	s.csvWriter.Flush()
	return s.csvFile.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
