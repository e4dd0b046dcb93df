package handlers

import (
	"errors"
	"net/http"

	"statarb/internal/service"
)

// SettingsHandler отвечает за глобальные настройки стратегии
//
// Endpoints:
// - GET /api/v1/settings   - текущие настройки
// - PATCH /api/v1/settings - частичное обновление
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings возвращает текущие настройки
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get settings", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings применяет частичное обновление настроек
// PATCH /api/v1/settings
//
// Изменения применяются движком на лету: новые входы идут по новым
// порогам, открытые позиции доводятся по старым.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(&req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEntryExit),
		errors.Is(err, service.ErrInvalidRiskPct),
		errors.Is(err, service.ErrInvalidStopPct),
		errors.Is(err, service.ErrInvalidLeverage),
		errors.Is(err, service.ErrInvalidBasketRisk),
		errors.Is(err, service.ErrInvalidTrailing),
		errors.Is(err, service.ErrInvalidRSIThresholds),
		errors.Is(err, service.ErrInvalidFundingRate),
		errors.Is(err, service.ErrInvalidFundingBudget):
		respondWithError(w, http.StatusBadRequest, "invalid_params", err.Error(), "")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
