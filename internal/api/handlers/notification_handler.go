package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/repository"
	"statarb/internal/service"
)

// NotificationHandler отвечает за уведомления оператора
//
// Endpoints:
// - GET /api/v1/notifications                - последние уведомления
// - GET /api/v1/notifications/unread         - непрочитанные
// - POST /api/v1/notifications/{id}/read     - пометить прочитанным
// - POST /api/v1/notifications/read-all      - пометить все прочитанными
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotifications возвращает последние уведомления
// GET /api/v1/notifications?limit=50
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notificationService.GetNotifications(queryLimit(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get notifications", err.Error())
		return
	}

	unread, err := h.notificationService.UnreadCount()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to count unread", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// GetUnread возвращает непрочитанные уведомления
// GET /api/v1/notifications/unread
func (h *NotificationHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notificationService.GetUnread()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get notifications", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, notifications)
}

// MarkRead помечает уведомление прочитанным
// POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid notification ID", "ID must be a number")
		return
	}

	if err := h.notificationService.MarkRead(id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			respondWithError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to mark read", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "marked read"})
}

// MarkAllRead помечает все уведомления прочитанными
// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.MarkAllRead(); err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to mark all read", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "all marked read"})
}
