package handlers

import (
	"net/http"

	"statarb/internal/service"
)

// BasketHandler отвечает за состояние корзины
//
// Endpoints:
// - GET /api/v1/basket - агрегированное состояние риска
type BasketHandler struct {
	engine service.BotEngine
}

// NewBasketHandler создает новый BasketHandler
func NewBasketHandler(engine service.BotEngine) *BasketHandler {
	return &BasketHandler{engine: engine}
}

// GetBasket возвращает состояние корзины
// GET /api/v1/basket
func (h *BasketHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	basket := h.engine.GetBasket()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"basket":      basket,
		"stuck_pairs": h.engine.StuckPairCount(),
	})
}
