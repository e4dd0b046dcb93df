package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"statarb/internal/models"
)

// ============ NotificationHandler Tests ============

func TestNotificationHandler_GetNotifications(t *testing.T) {
	mockSvc := NewMockNotificationService()
	mockSvc.notifications = []*models.Notification{
		{ID: 1, Type: models.NotificationTypeStuck, Severity: models.SeverityCritical, Message: "pair stuck"},
		{ID: 2, Type: models.NotificationTypeExit, Severity: models.SeverityInfo, Message: "closed", Read: true},
	}
	handler := NewNotificationHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	w := httptest.NewRecorder()

	handler.GetNotifications(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Notifications []*models.Notification `json:"notifications"`
		UnreadCount   int                    `json:"unread_count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Notifications) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(response.Notifications))
	}
	if response.UnreadCount != 1 {
		t.Errorf("expected 1 unread, got %d", response.UnreadCount)
	}
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	mockSvc := NewMockNotificationService()
	handler := NewNotificationHandler(mockSvc)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/notifications/{id}/read", handler.MarkRead).Methods("POST")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/7/read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if len(mockSvc.markedRead) != 1 || mockSvc.markedRead[0] != 7 {
		t.Errorf("mark read not delegated: %v", mockSvc.markedRead)
	}
}

func TestNotificationHandler_MarkAllRead(t *testing.T) {
	mockSvc := NewMockNotificationService()
	handler := NewNotificationHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil)
	w := httptest.NewRecorder()

	handler.MarkAllRead(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !mockSvc.markedAll {
		t.Error("mark all read not delegated")
	}
}
