package websocket

import (
	"time"

	"statarb/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePairUpdate - обновление рантайм-состояния пары
	// Отправляется после каждого тика, на котором пара изменилась
	MessageTypePairUpdate MessageType = "pairUpdate"

	// MessageTypeBasketUpdate - обновление агрегата риска корзины
	// Отправляется после каждого перехода состояния позиции
	MessageTypeBasketUpdate MessageType = "basketUpdate"

	// MessageTypeTradeEvent - запись торгового журнала
	// Отправляется при входе, выходе, стопе и ручном закрытии
	MessageTypeTradeEvent MessageType = "tradeEvent"

	// MessageTypeNotification - новое уведомление
	MessageTypeNotification MessageType = "notification"

	// MessageTypeStatsUpdate - обновление агрегированной статистики
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PairUpdateMessage - сообщение об обновлении состояния пары
//
// Содержит полный рантайм пары: состояние машины состояний,
// последний z-score и спред, открытую позицию (если есть) и PNL.
type PairUpdateMessage struct {
	BaseMessage
	PairID int                 `json:"pair_id"`
	Data   *models.PairRuntime `json:"data"`
}

// BasketUpdateMessage - сообщение об обновлении корзины риска
type BasketUpdateMessage struct {
	BaseMessage
	Data *models.BasketState `json:"data"`
}

// TradeEventMessage - сообщение о записи торгового журнала
type TradeEventMessage struct {
	BaseMessage
	Data *models.TradeEvent `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// StatsUpdateMessage - сообщение со сводной статистикой
type StatsUpdateMessage struct {
	BaseMessage
	Data *models.Stats `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewPairUpdateMessage создает сообщение обновления пары
func NewPairUpdateMessage(runtime *models.PairRuntime) *PairUpdateMessage {
	return &PairUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePairUpdate,
			Timestamp: time.Now(),
		},
		PairID: runtime.PairID,
		Data:   runtime,
	}
}

// NewBasketUpdateMessage создает сообщение обновления корзины
func NewBasketUpdateMessage(basket *models.BasketState) *BasketUpdateMessage {
	return &BasketUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBasketUpdate,
			Timestamp: time.Now(),
		},
		Data: basket,
	}
}

// NewTradeEventMessage создает сообщение торгового события
func NewTradeEventMessage(event *models.TradeEvent) *TradeEventMessage {
	return &TradeEventMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeEvent,
			Timestamp: time.Now(),
		},
		Data: event,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(n *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: n,
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats *models.Stats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}
