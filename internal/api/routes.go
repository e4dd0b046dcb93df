package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"statarb/internal/api/handlers"
	"statarb/internal/api/middleware"
	"statarb/internal/config"
	"statarb/internal/service"
	"statarb/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Auth   config.AuthConfig
	Logger *logrus.Logger

	// Глобальный лимит API запросов, 0 = без лимита
	RateLimit float64
	RateBurst float64

	PairService         service.PairServiceInterface
	StatsService        service.StatsServiceInterface
	SettingsService     service.SettingsServiceInterface
	NotificationService service.NotificationServiceInterface
	Engine              service.BotEngine
	Hub                 *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/ (basic auth)
//
//	├── /pairs/
//	│   ├── GET / - список пар с runtime состоянием
//	│   ├── POST / - создать пару
//	│   ├── GET /{id} - получить пару
//	│   ├── PATCH /{id} - обновить параметры
//	│   ├── DELETE /{id} - удалить пару
//	│   ├── POST /{id}/start - запустить мониторинг
//	│   ├── POST /{id}/pause - приостановить
//	│   ├── POST /{id}/reset - сбросить STUCK
//	│   └── POST /{id}/close - принудительно закрыть позицию
//	├── /basket - GET состояние корзины
//	├── /stats - GET сводная статистика
//	├── /trades/
//	│   ├── GET / - последние события журнала
//	│   └── GET /pair/{id} - события по паре
//	├── /notifications/
//	│   ├── GET / - последние уведомления
//	│   ├── GET /unread - непрочитанные
//	│   ├── POST /{id}/read - пометить прочитанным
//	│   └── POST /read-all - пометить все
//	└── /settings/
//	    ├── GET / - получить настройки
//	    └── PATCH / - обновить настройки
//
// /ws - WebSocket для real-time обновлений
// /health - проверка живости (без auth)
// /metrics - Prometheus метрики (без auth)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	// Лимит до auth: bcrypt при флуде не считаем
	if deps.RateLimit > 0 {
		api.Use(middleware.RateLimit(deps.RateLimit, deps.RateBurst))
	}
	api.Use(middleware.BasicAuth(deps.Auth))

	if deps.PairService != nil {
		pairHandler := handlers.NewPairHandler(deps.PairService)
		api.HandleFunc("/pairs", pairHandler.GetPairs).Methods("GET")
		api.HandleFunc("/pairs", pairHandler.CreatePair).Methods("POST")
		api.HandleFunc("/pairs/{id}", pairHandler.GetPair).Methods("GET")
		api.HandleFunc("/pairs/{id}", pairHandler.UpdatePair).Methods("PATCH")
		api.HandleFunc("/pairs/{id}", pairHandler.DeletePair).Methods("DELETE")
		api.HandleFunc("/pairs/{id}/start", pairHandler.StartPair).Methods("POST")
		api.HandleFunc("/pairs/{id}/pause", pairHandler.PausePair).Methods("POST")
		api.HandleFunc("/pairs/{id}/reset", pairHandler.ResetPair).Methods("POST")
		api.HandleFunc("/pairs/{id}/close", pairHandler.ForceClosePair).Methods("POST")
	}

	if deps.Engine != nil {
		basketHandler := handlers.NewBasketHandler(deps.Engine)
		api.HandleFunc("/basket", basketHandler.GetBasket).Methods("GET")
	}

	if deps.StatsService != nil {
		statsHandler := handlers.NewStatsHandler(deps.StatsService)
		api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")
		api.HandleFunc("/trades", statsHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/pair/{id}", statsHandler.GetPairTrades).Methods("GET")
	}

	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications/unread", notificationHandler.GetUnread).Methods("GET")
		api.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
		api.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("POST")
	}

	if deps.SettingsService != nil {
		settingsHandler := handlers.NewSettingsHandler(deps.SettingsService)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws", deps.Hub.ServeWS)
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
