package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"statarb/internal/api"
	"statarb/internal/bot"
	"statarb/internal/config"
	"statarb/internal/exchange"
	"statarb/internal/models"
	"statarb/internal/repository"
	"statarb/internal/service"
	"statarb/internal/websocket"

	_ "github.com/lib/pq"
)

func main() {
	// .env опционален: в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := setupLogger(cfg.Logging)

	// Исполнение только в симуляции: живой коннектор не подключен
	if !cfg.Paper.Enabled {
		log.Fatal("live execution is not wired, set DRY_RUN=true")
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.WithField("dsn", cfg.Database.DSNWithoutPassword()).Info("connected to database")

	// Репозитории
	pairRepo := repository.NewPairRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Глобальные настройки: при пустой таблице возвращаются дефолты
	settings, err := settingsRepo.Get()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	// WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Симулятор биржи закрывает оба порта: маркет-данные и исполнение
	paper := exchange.NewPaperExchange(cfg.Paper.SlippageBps, cfg.Paper.Seed)

	// Журнал сделок: БД + CSV + трансляция в WebSocket
	tradeService, err := service.NewTradeService(tradeRepo, pairRepo, hub, cfg.Engine.TradeLogCSV, log)
	if err != nil {
		log.Fatalf("Failed to init trade log: %v", err)
	}
	defer tradeService.Close()

	// Движок решений
	engine := bot.NewEngine(bot.Options{
		TickInterval:   cfg.Engine.TickInterval,
		SnapshotMaxAge: cfg.Engine.SnapshotMaxAge,
		InitialEquity:  cfg.Engine.InitialEquity,
		Window:         cfg.Engine.Window,
		MinPeriods:     cfg.Engine.MinPeriods,
		EMAFast:        cfg.Engine.EMAFast,
		EMASlow:        cfg.Engine.EMASlow,
		RSIPeriod:      cfg.Engine.RSIPeriod,
		MaxExecRetries: cfg.Engine.MaxExecRetries,
		ExecBackoff:    cfg.Engine.ExecBackoff,
		ExecTimeout:    cfg.Engine.ExecTimeout,
	}, paper, paper, tradeService, hub, settings, log)

	// Сервисы
	pairService := service.NewPairService(pairRepo)
	pairService.SetEngine(engine)

	settingsService := service.NewSettingsService(settingsRepo)
	settingsService.SetEngine(engine)

	statsService := service.NewStatsService(tradeRepo)
	statsService.SetEngine(engine)

	notificationService := service.NewNotificationService(
		notificationRepo, hub, engine.Notifications(), log)

	if err := seedPairs(cfg, pairService, engine, log); err != nil {
		log.Fatalf("Failed to seed pairs: %v", err)
	}

	// Фоновые горутины движка и доставки уведомлений
	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)
	go notificationService.Run(ctx)

	deps := &api.Dependencies{
		Auth:                cfg.Auth,
		Logger:              log,
		RateLimit:           cfg.Server.RateLimit,
		RateBurst:           cfg.Server.RateBurst,
		PairService:         pairService,
		StatsService:        statsService,
		SettingsService:     settingsService,
		NotificationService: notificationService,
		Engine:              engine,
		Hub:                 hub,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("starting server")
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Останавливаем тики до закрытия HTTP: движок не должен писать
	// в закрывающиеся зависимости
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	hub.Stop()

	log.Info("server exited")
}

// setupLogger настраивает logrus по конфигурации
func setupLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// seedPairs регистрирует в движке пары из БД и досоздает кандидатов
// из PAIRS_JSON, которых в БД еще нет
func seedPairs(cfg *config.Config, pairs *service.PairService, engine *bot.Engine, log *logrus.Logger) error {
	existing, err := pairs.GetPairs()
	if err != nil {
		return err
	}
	for _, pair := range existing {
		if err := engine.AddPair(pair); err != nil {
			return err
		}
	}

	candidates, err := cfg.Engine.ParsePairs()
	if err != nil {
		return err
	}

	created := 0
	for _, c := range candidates {
		pc := &models.PairConfig{
			Sector:     c.Sector,
			SymbolA:    c.SymbolA,
			SymbolB:    c.SymbolB,
			Beta:       1.0,
			Window:     cfg.Engine.Window,
			MinPeriods: cfg.Engine.MinPeriods,
		}
		// CreatePair регистрирует пару и в БД, и в движке
		err := pairs.CreatePair(pc)
		switch {
		case err == nil:
			created++
		case errors.Is(err, service.ErrPairAlreadyExists):
			// Уже в БД, зарегистрирована выше
		case errors.Is(err, service.ErrMaxPairsReached):
			log.WithField("limit", service.MaxPairs).Warn("pair universe truncated")
			return nil
		default:
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"existing": len(existing),
		"created":  created,
	}).Info("pair universe loaded")

	return nil
}
