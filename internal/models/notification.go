package models

import "time"

// Типы уведомлений
const (
	NotificationTypeEntry     = "entry"
	NotificationTypeExit      = "exit"
	NotificationTypeStopLoss  = "stop_loss"
	NotificationTypeStuck     = "stuck"
	NotificationTypeRisk      = "risk"
	NotificationTypeInvariant = "invariant"
	NotificationTypeSystem    = "system"
)

// Уровни важности
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification - событие для оператора
//
// Персистится в БД и транслируется в WebSocket hub. Meta содержит
// произвольный контекст события (z-score, причину, номинал).
type Notification struct {
	ID        int64                  `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`
	Severity  string                 `json:"severity" db:"severity"`
	PairID    *int                   `json:"pair_id,omitempty" db:"pair_id"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"-"`
	Read      bool                   `json:"read" db:"read"`
}
