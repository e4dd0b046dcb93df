package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/service"
)

// StatsHandler отвечает за статистику и журнал сделок
//
// Endpoints:
// - GET /api/v1/stats                  - сводка за день/неделю/месяц/все время
// - GET /api/v1/trades                 - последние события журнала
// - GET /api/v1/trades/pair/{id}       - события журнала по паре
type StatsHandler struct {
	statsService service.StatsServiceInterface
}

// NewStatsHandler создает новый StatsHandler
func NewStatsHandler(statsService service.StatsServiceInterface) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats возвращает сводную статистику
// GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.GetStats()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get stats", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GetTrades возвращает последние события журнала
// GET /api/v1/trades?limit=50
func (h *StatsHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.statsService.GetRecentTrades(queryLimit(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get trades", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, trades)
}

// GetPairTrades возвращает события журнала по паре
// GET /api/v1/trades/pair/{id}?limit=50
func (h *StatsHandler) GetPairTrades(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid pair ID", "ID must be a number")
		return
	}

	trades, err := h.statsService.GetPairTrades(id, queryLimit(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get trades", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, trades)
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}
