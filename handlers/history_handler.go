package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/courtside/services"
)

type HistoryHandler struct {
	historyService services.HistoryService
}

func NewHistoryHandler(historyService services.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

func (h *HistoryHandler) GetPlayerHistory(w http.ResponseWriter, r *http.Request) {
	venue, err := venueFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.historyService.GetPlayerHistory(r.Context(), chi.URLParam(r, "playerID"), venue)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *HistoryHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	venue, err := venueFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	catalog, err := h.historyService.ListRewards(r.Context(), venue)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"venue_context": venue, "rewards": catalog}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
