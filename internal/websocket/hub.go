package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"statarb/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBufferPool убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений всем подключенным клиентам.
// Обеспечивает real-time обновления данных на frontend без необходимости polling.
//
// Типы сообщений:
// - pairUpdate: рантайм пары (состояние, z-score, спред, позиция, PNL)
// - basketUpdate: агрегат риска корзины
// - tradeEvent: запись торгового журнала
// - notification: новое уведомление
// - statsUpdate: сводная статистика
//
// Использование:
// 1. Создать hub: hub := NewHub(log)
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastPairUpdate(runtime)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Остановка главного цикла
	done     chan struct{}
	stopOnce sync.Once

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	log *logrus.Logger
}

// NewHub создает новый Hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Stop останавливает главный цикл Hub. Повторные вызовы безопасны.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
// Broadcast идет по копии списка клиентов под коротким RLock,
// медленные клиенты удаляются под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("clients", total).Debug("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("clients", total).Debug("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем без блокировки, чтобы не тормозить register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - помечаем для удаления
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.WithFields(logrus.Fields{
					"removed": len(toRemove),
					"clients": total,
				}).Warn("removed slow websocket clients")
			}
		}
	}
}

// Broadcast сериализует сообщение и отправляет всем подключенным клиентам.
// Буферы переиспользуются через sync.Pool.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.WithError(err).Error("failed to marshal broadcast message")
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные, буфер возвращается в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		// Hub перегружен - сообщение теряется, но вызывающий не блокируется
		h.log.Warn("websocket broadcast buffer full, message dropped")
	}
}

// BroadcastPairUpdate отправляет обновление рантайма пары
func (h *Hub) BroadcastPairUpdate(runtime *models.PairRuntime) {
	h.Broadcast(NewPairUpdateMessage(runtime))
}

// BroadcastBasketUpdate отправляет обновление корзины риска
func (h *Hub) BroadcastBasketUpdate(basket *models.BasketState) {
	h.Broadcast(NewBasketUpdateMessage(basket))
}

// BroadcastTradeEvent отправляет запись торгового журнала
func (h *Hub) BroadcastTradeEvent(event *models.TradeEvent) {
	h.Broadcast(NewTradeEventMessage(event))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(n *models.Notification) {
	h.Broadcast(NewNotificationMessage(n))
}

// BroadcastStatsUpdate отправляет сводную статистику
func (h *Hub) BroadcastStatsUpdate(stats *models.Stats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
