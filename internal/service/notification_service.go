package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"statarb/internal/models"
)

// NotificationBroadcaster - трансляция уведомлений в WebSocket
type NotificationBroadcaster interface {
	BroadcastNotification(n *models.Notification)
}

// NotificationService - уведомления оператора
//
// Потребляет канал уведомлений движка: персистит каждое событие и
// транслирует его подписчикам. Плюс API чтения и отметки прочитанных.
type NotificationService struct {
	repo NotificationRepositoryInterface
	hub  NotificationBroadcaster

	source <-chan *models.Notification

	log *logrus.Entry
}

// NewNotificationService создает сервис уведомлений
func NewNotificationService(repo NotificationRepositoryInterface, hub NotificationBroadcaster,
	source <-chan *models.Notification, log *logrus.Logger) *NotificationService {

	return &NotificationService{
		repo:   repo,
		hub:    hub,
		source: source,
		log:    log.WithField("component", "notifications"),
	}
}

// Run потребляет уведомления движка до отмены контекста
func (s *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.source:
			if !ok {
				return
			}
			s.dispatch(n)
		}
	}
}

func (s *NotificationService) dispatch(n *models.Notification) {
	if err := s.repo.Create(n); err != nil {
		s.log.WithError(err).WithField("type", n.Type).Error("failed to persist notification")
	}
	if s.hub != nil {
		s.hub.BroadcastNotification(n)
	}

	entry := s.log.WithFields(logrus.Fields{"type": n.Type, "severity": n.Severity})
	switch n.Severity {
	case models.SeverityCritical:
		entry.Error(n.Message)
	case models.SeverityWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// GetNotifications возвращает последние уведомления
func (s *NotificationService) GetNotifications(limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.GetRecent(limit)
}

// GetUnread возвращает непрочитанные уведомления
func (s *NotificationService) GetUnread() ([]*models.Notification, error) {
	return s.repo.GetUnread()
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(id int64) error {
	return s.repo.MarkRead(id)
}

// MarkAllRead помечает все уведомления прочитанными
func (s *NotificationService) MarkAllRead() error {
	return s.repo.MarkAllRead()
}

// UnreadCount возвращает число непрочитанных уведомлений
func (s *NotificationService) UnreadCount() (int, error) {
	return s.repo.CountUnread()
}
