package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"feastq/internal/reputation"
	"feastq/internal/utils"
)

// ReviewResponseRequest - ответ владельца на отзыв.
type ReviewResponseRequest struct {
	Response string `json:"response"`
}

// ReviewStatusRequest - новый статус модерации отзыва.
type ReviewStatusRequest struct {
	Status string `json:"status"`
}

// menuParams достает и проверяет menuId (и reviewId, если он есть в маршруте).
func menuParams(w http.ResponseWriter, r *http.Request) (menuID, reviewID string, ok bool) {
	menuID = chi.URLParam(r, "menuId")
	if err := utils.ValidateUUID(menuID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid menu ID")
		return "", "", false
	}
	reviewID = chi.URLParam(r, "reviewId")
	if reviewID != "" {
		if err := utils.ValidateUUID(reviewID); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid review ID")
			return "", "", false
		}
	}
	return menuID, reviewID, true
}

// GetReputation возвращает статистику отзывов владельцу меню.
func (h *handlers) GetReputation(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	menuID, _, ok := menuParams(w, r)
	if !ok {
		return
	}
	scope, err := reputation.ParseScope(r.URL.Query().Get("scope"), reputation.ScopeAll)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	stats, err := h.reputation.OwnerStats(r.Context(), menuID, user.ID, scope)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Reputation retrieved successfully", stats)
}

// GetPublicStats - статистика одобренных отзывов для публичной страницы.
func (h *handlers) GetPublicStats(w http.ResponseWriter, r *http.Request) {
	menuID, _, ok := menuParams(w, r)
	if !ok {
		return
	}
	stats, err := h.reputation.PublicStats(r.Context(), menuID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Stats retrieved successfully", stats)
}

// ListReviews возвращает отзывы меню владельцу.
func (h *handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	menuID, _, ok := menuParams(w, r)
	if !ok {
		return
	}
	scope, err := reputation.ParseScope(r.URL.Query().Get("scope"), reputation.ScopeAll)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	reviews, err := h.reputation.ListReviews(r.Context(), menuID, user.ID, scope)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Reviews retrieved successfully", reviews)
}

// RespondToReview сохраняет ответ владельца.
func (h *handlers) RespondToReview(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	menuID, reviewID, ok := menuParams(w, r)
	if !ok {
		return
	}
	var req ReviewResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.reputation.RespondToReview(r.Context(), menuID, reviewID, user.ID, req.Response); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Ответ сохранен", nil)
}

// ModerateReview меняет статус отзыва.
func (h *handlers) ModerateReview(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	menuID, reviewID, ok := menuParams(w, r)
	if !ok {
		return
	}
	var req ReviewStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.reputation.ModerateReview(r.Context(), menuID, reviewID, user.ID, req.Status); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Статус отзыва обновлен", nil)
}
