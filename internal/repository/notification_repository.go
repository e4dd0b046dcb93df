package repository

import (
	"database/sql"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"statarb/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create записывает уведомление. Meta сериализуется в JSONB.
func (r *NotificationRepository) Create(n *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, pair_id, message, meta, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	var meta []byte
	if n.Meta != nil {
		var err error
		meta, err = json.Marshal(n.Meta)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRow(
		query,
		n.Timestamp,
		n.Type,
		n.Severity,
		n.PairID,
		n.Message,
		meta,
		n.Read,
	).Scan(&n.ID)
}

func (r *NotificationRepository) queryNotifications(query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var meta []byte
		err := rows.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.PairID, &n.Message, &meta, &n.Read)
		if err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Meta); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// GetRecent возвращает последние N уведомлений
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, pair_id, message, meta, read
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`
	return r.queryNotifications(query, limit)
}

// GetUnread возвращает непрочитанные уведомления
func (r *NotificationRepository) GetUnread() ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, pair_id, message, meta, read
		FROM notifications
		WHERE read = false
		ORDER BY timestamp DESC`
	return r.queryNotifications(query)
}

// MarkRead помечает уведомление прочитанным
func (r *NotificationRepository) MarkRead(id int64) error {
	result, err := r.db.Exec(`UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead помечает все уведомления прочитанными
func (r *NotificationRepository) MarkAllRead() error {
	_, err := r.db.Exec(`UPDATE notifications SET read = true WHERE read = false`)
	return err
}

// DeleteOlderThan удаляет уведомления старше указанной даты
func (r *NotificationRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountUnread возвращает число непрочитанных уведомлений
func (r *NotificationRepository) CountUnread() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = false`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
