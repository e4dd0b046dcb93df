package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/models"
	"statarb/internal/service"
)

// PairHandler отвечает за управление парами
//
// Endpoints:
// - POST /api/v1/pairs                 - добавление пары
// - GET /api/v1/pairs                  - список пар с runtime состоянием
// - GET /api/v1/pairs/{id}             - конкретная пара
// - PATCH /api/v1/pairs/{id}           - редактирование параметров
// - DELETE /api/v1/pairs/{id}          - удаление пары
// - POST /api/v1/pairs/{id}/start      - запуск мониторинга
// - POST /api/v1/pairs/{id}/pause      - пауза
// - POST /api/v1/pairs/{id}/reset      - сброс STUCK после ручной сверки
// - POST /api/v1/pairs/{id}/close      - принудительное закрытие позиции
type PairHandler struct {
	pairService service.PairServiceInterface
}

// NewPairHandler создает новый PairHandler
func NewPairHandler(pairService service.PairServiceInterface) *PairHandler {
	return &PairHandler{pairService: pairService}
}

// CreatePairRequest структура запроса на создание пары
type CreatePairRequest struct {
	Sector         string  `json:"sector"`
	SymbolA        string  `json:"symbol_a"`
	SymbolB        string  `json:"symbol_b"`
	Beta           float64 `json:"beta"`
	Window         int     `json:"window"`
	MinPeriods     int     `json:"min_periods"`
	EntryZ         float64 `json:"entry_z"`
	ExitZ          float64 `json:"exit_z"`
	RiskPct        float64 `json:"risk_pct"`
	StopPct        float64 `json:"stop_pct"`
	MaxLeverage    float64 `json:"max_leverage"`
	MaxHoldMinutes int     `json:"max_hold_minutes"`
}

// CreatePair добавляет новую пару
// POST /api/v1/pairs
//
// Response:
// - 201 Created: пара создана (в статусе paused)
// - 400 Bad Request: невалидные параметры
// - 409 Conflict: пара уже существует или достигнут лимит
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req CreatePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	cfg := &models.PairConfig{
		Sector:         req.Sector,
		SymbolA:        req.SymbolA,
		SymbolB:        req.SymbolB,
		Beta:           req.Beta,
		Window:         req.Window,
		MinPeriods:     req.MinPeriods,
		EntryZ:         req.EntryZ,
		ExitZ:          req.ExitZ,
		RiskPct:        req.RiskPct,
		StopPct:        req.StopPct,
		MaxLeverage:    req.MaxLeverage,
		MaxHoldMinutes: req.MaxHoldMinutes,
	}

	if err := h.pairService.CreatePair(cfg); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, cfg)
}

// GetPairs возвращает все пары с runtime состоянием
// GET /api/v1/pairs
//
// Query Parameters:
// - status: фильтр по статусу (paused, active)
// - state: фильтр по runtime состоянию (FLAT, OPEN, STUCK...)
func (h *PairHandler) GetPairs(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.pairService.GetAllStatuses()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get pairs", err.Error())
		return
	}

	statusFilter := r.URL.Query().Get("status")
	stateFilter := r.URL.Query().Get("state")

	response := make([]*service.PairStatus, 0, len(statuses))
	for _, s := range statuses {
		if statusFilter != "" && s.Config.Status != statusFilter {
			continue
		}
		if stateFilter != "" && (s.Runtime == nil || s.Runtime.State != stateFilter) {
			continue
		}
		response = append(response, s)
	}

	respondWithJSON(w, http.StatusOK, response)
}

// GetPair возвращает пару по ID
// GET /api/v1/pairs/{id}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	status, err := h.pairService.GetPairStatus(id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// UpdatePair обновляет параметры пары
// PATCH /api/v1/pairs/{id}
//
// С открытой позицией редактирование отклоняется (409).
func (h *PairHandler) UpdatePair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	var params service.UpdatePairParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	pair, err := h.pairService.UpdatePair(id, params)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pair)
}

// DeletePair удаляет пару
// DELETE /api/v1/pairs/{id}
func (h *PairHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	if err := h.pairService.DeletePair(id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "pair deleted"})
}

// StartPair запускает мониторинг пары
// POST /api/v1/pairs/{id}/start
func (h *PairHandler) StartPair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	if err := h.pairService.StartPair(id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "pair started"})
}

// PausePair ставит пару на паузу
// POST /api/v1/pairs/{id}/pause
//
// Открытая позиция не закрывается: движок доводит ее до выхода.
func (h *PairHandler) PausePair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	if err := h.pairService.PausePair(id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "pair paused"})
}

// ResetPair сбрасывает STUCK-пару в PAUSED
// POST /api/v1/pairs/{id}/reset
//
// Вызывается оператором после ручной сверки позиций на бирже.
func (h *PairHandler) ResetPair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	if err := h.pairService.ResetStuckPair(id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "pair reset"})
}

// ForceClosePair принудительно закрывает позицию пары
// POST /api/v1/pairs/{id}/close
func (h *PairHandler) ForceClosePair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(w, r)
	if !ok {
		return
	}

	if err := h.pairService.ForceClosePair(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "close requested"})
}

func (h *PairHandler) pairID(w http.ResponseWriter, r *http.Request) (int, bool) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid pair ID", "ID must be a number")
		return 0, false
	}
	return id, true
}

// handleServiceError преобразует ошибки сервиса в HTTP статусы
func (h *PairHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPairNotFound):
		respondWithError(w, http.StatusNotFound, "not_found", "Pair not found", "")
	case errors.Is(err, service.ErrPairAlreadyExists):
		respondWithError(w, http.StatusConflict, "already_exists", "Pair already exists", "")
	case errors.Is(err, service.ErrMaxPairsReached):
		respondWithError(w, http.StatusConflict, "limit_reached", "Maximum number of pairs reached", "")
	case errors.Is(err, service.ErrPairHasOpenPosition):
		respondWithError(w, http.StatusConflict, "position_open", "Pair has an open position", "")
	case errors.Is(err, service.ErrInvalidSymbols),
		errors.Is(err, service.ErrInvalidBeta),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrInvalidMinPeriods),
		errors.Is(err, service.ErrInvalidThresholds),
		errors.Is(err, service.ErrInvalidRiskPct),
		errors.Is(err, service.ErrInvalidStopPct),
		errors.Is(err, service.ErrInvalidLeverage),
		errors.Is(err, service.ErrInvalidMaxHold):
		respondWithError(w, http.StatusBadRequest, "invalid_params", err.Error(), "")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
