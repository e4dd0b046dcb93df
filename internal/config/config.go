package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Engine   EngineConfig
	Paper    PaperConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string

	// Глобальный лимит запросов к API: req/sec и burst. 0 = без лимита
	RateLimit float64
	RateBurst float64
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// AuthConfig - доступ к мутирующим endpoint'ам операторского API
//
// Пароль хранится как bcrypt-хэш (API_PASSWORD_HASH). Пустой хэш
// допустим только при AllowAnonymous (dev-режим).
type AuthConfig struct {
	Username       string
	PasswordHash   string
	AllowAnonymous bool
}

// EngineConfig - настройки движка решений
type EngineConfig struct {
	// Интервал тика: раз в тик каждая пара обрабатывается ровно один раз
	TickInterval time.Duration

	// Допустимый возраст рыночного снимка; старше - DataUnavailable
	SnapshotMaxAge time.Duration

	// Стартовый equity корзины (реализованный PnL накапливается поверх)
	InitialEquity float64

	// Параметры окна по умолчанию (пара может переопределить)
	Window     int
	MinPeriods int

	// Периоды индикаторов
	EMAFast   int
	EMASlow   int
	RSIPeriod int

	// Retry исполнения: после исчерпания пара уходит в STUCK
	MaxExecRetries int
	ExecBackoff    time.Duration
	ExecTimeout    time.Duration

	// Пары по секторам: JSON вида {"metals":["XAUUSDT","XAGUSDT",...]}
	// Все комбинации внутри сектора становятся кандидатами.
	PairsJSON string

	// Путь CSV-журнала сделок ("" = не вести)
	TradeLogCSV string
}

// PaperConfig - режим симуляции (DRY_RUN)
type PaperConfig struct {
	Enabled     bool
	SlippageBps float64 // проскальзывание на исполнении, базисные пункты
	Seed        int64   // сид генератора случайного блуждания (0 = от времени)
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),

			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 20),
			RateBurst: getEnvAsFloat("API_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "statarb"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Auth: AuthConfig{
			Username:       getEnv("API_USERNAME", "admin"),
			PasswordHash:   getEnv("API_PASSWORD_HASH", ""),
			AllowAnonymous: getEnvAsBool("API_ALLOW_ANONYMOUS", false),
		},
		Engine: EngineConfig{
			TickInterval:   getEnvAsDuration("TICK_INTERVAL", 5*time.Second),
			SnapshotMaxAge: getEnvAsDuration("SNAPSHOT_MAX_AGE", 10*time.Second),
			InitialEquity:  getEnvAsFloat("INITIAL_EQUITY", 10000),
			Window:         getEnvAsInt("WINDOW", 240),
			MinPeriods:     getEnvAsInt("MIN_PERIODS", 60),
			EMAFast:        getEnvAsInt("EMA_FAST", 20),
			EMASlow:        getEnvAsInt("EMA_SLOW", 50),
			RSIPeriod:      getEnvAsInt("RSI_PERIOD", 14),
			MaxExecRetries: getEnvAsInt("MAX_EXEC_RETRIES", 4),
			ExecBackoff:    getEnvAsDuration("EXEC_BACKOFF", 500*time.Millisecond),
			ExecTimeout:    getEnvAsDuration("EXEC_TIMEOUT", 5*time.Second),
			PairsJSON:      getEnv("PAIRS_JSON", ""),
			TradeLogCSV:    getEnv("TRADE_LOG_CSV", "trades.csv"),
		},
		Paper: PaperConfig{
			Enabled:     getEnvAsBool("DRY_RUN", true),
			SlippageBps: getEnvAsFloat("PAPER_SLIPPAGE_BPS", 2.0),
			Seed:        int64(getEnvAsInt("PAPER_SEED", 0)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateAuth(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateAuth проверяет параметры доступа к API
func (c *Config) validateAuth() error {
	if c.Auth.AllowAnonymous {
		return nil
	}

	if c.Auth.PasswordHash == "" {
		return fmt.Errorf("API_PASSWORD_HASH is required (or set API_ALLOW_ANONYMOUS=true for development)")
	}

	if c.Auth.Username == "" {
		return fmt.Errorf("API_USERNAME cannot be empty")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %v", c.Engine.TickInterval)
	}

	if c.Engine.SnapshotMaxAge <= 0 {
		return fmt.Errorf("SNAPSHOT_MAX_AGE must be positive, got %v", c.Engine.SnapshotMaxAge)
	}

	if c.Engine.InitialEquity <= 0 {
		return fmt.Errorf("INITIAL_EQUITY must be positive, got %v", c.Engine.InitialEquity)
	}

	if c.Engine.Window < 2 {
		return fmt.Errorf("WINDOW must be at least 2, got %d", c.Engine.Window)
	}

	if c.Engine.MinPeriods < 2 || c.Engine.MinPeriods > c.Engine.Window {
		return fmt.Errorf("MIN_PERIODS must be in [2, WINDOW], got %d", c.Engine.MinPeriods)
	}

	if c.Engine.EMAFast >= c.Engine.EMASlow {
		return fmt.Errorf("EMA_FAST (%d) must be less than EMA_SLOW (%d)", c.Engine.EMAFast, c.Engine.EMASlow)
	}

	if c.Engine.MaxExecRetries < 0 || c.Engine.MaxExecRetries > 10 {
		return fmt.Errorf("MAX_EXEC_RETRIES must be in [0, 10], got %d", c.Engine.MaxExecRetries)
	}

	if c.Engine.ExecTimeout <= 0 {
		return fmt.Errorf("EXEC_TIMEOUT must be positive, got %v", c.Engine.ExecTimeout)
	}

	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("API_RATE_LIMIT and API_RATE_BURST cannot be negative")
	}

	if c.Paper.SlippageBps < 0 {
		return fmt.Errorf("PAPER_SLIPPAGE_BPS cannot be negative, got %v", c.Paper.SlippageBps)
	}

	return nil
}

// SectorPair - кандидат из PAIRS_JSON
type SectorPair struct {
	Sector  string
	SymbolA string
	SymbolB string
}

// ParsePairs разворачивает PAIRS_JSON в список кандидатов
//
// Формат: {"metals":["XAUUSDT","XAGUSDT","PLATUSDT"], "l1":["ETHUSDT","SOLUSDT"]}
// Внутри сектора берутся все сочетания по два, порядок символов как в списке.
func (c *EngineConfig) ParsePairs() ([]SectorPair, error) {
	if c.PairsJSON == "" {
		return nil, nil
	}

	var sectors map[string][]string
	if err := json.Unmarshal([]byte(c.PairsJSON), &sectors); err != nil {
		return nil, fmt.Errorf("failed to parse PAIRS_JSON: %w", err)
	}

	// Детерминированный порядок секторов
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)

	var pairs []SectorPair
	for _, name := range names {
		symbols := sectors[name]
		for i := 0; i < len(symbols); i++ {
			for j := i + 1; j < len(symbols); j++ {
				pairs = append(pairs, SectorPair{
					Sector:  name,
					SymbolA: symbols[i],
					SymbolB: symbols[j],
				})
			}
		}
	}

	return pairs, nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
