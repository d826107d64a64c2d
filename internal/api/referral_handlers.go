package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"feastq/internal/referral"
	"feastq/internal/utils"
)

// ReferralCodeResponse - код пользователя и ссылка-приглашение.
type ReferralCodeResponse struct {
	ReferralCode string `json:"referralCode"`
	Link         string `json:"link"`
}

// SubmitReferralRequest - тело публичного запроса приглашения.
type SubmitReferralRequest struct {
	ReferralCode string `json:"referralCode"`
	Email        string `json:"email"`
}

// SubmitReferralResponse - результат приглашения.
type SubmitReferralResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ReferralStatusRequest - смена статуса реферала администратором.
type ReferralStatusRequest struct {
	Status string `json:"status"`
}

// GetReferralCode возвращает (создавая при необходимости) код текущего пользователя.
func (h *handlers) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	code, link, err := h.referrals.ShareLink(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Referral code retrieved successfully", ReferralCodeResponse{ReferralCode: code, Link: link})
}

// GetReferralQRCode отдает PNG с QR-кодом ссылки-приглашения.
func (h *handlers) GetReferralQRCode(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	png, err := h.referrals.ShareQRCode(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ListReferrals возвращает приглашения текущего пользователя.
func (h *handlers) ListReferrals(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	referrals, err := h.referrals.ListReferrals(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Referrals retrieved successfully", referrals)
}

// GetReferralSummary возвращает сводку по приглашениям и наградам.
func (h *handlers) GetReferralSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	summary, err := h.referrals.Summary(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Referral summary retrieved successfully", summary)
}

// ExportReferrals отдает приглашения пользователя в виде xlsx.
func (h *handlers) ExportReferrals(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	var buf bytes.Buffer
	if err := h.referrals.ExportXLSX(r.Context(), user.ID, &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="referrals.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// SubmitReferral принимает приглашение без аутентификации.
func (h *handlers) SubmitReferral(w http.ResponseWriter, r *http.Request) {
	var req SubmitReferralRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	ref, err := h.referrals.SubmitReferral(r.Context(), referral.SubmitRequest{
		ReferralCode: req.ReferralCode,
		Email:        req.Email,
		ClientIP:     h.clientIP(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, "Приглашение принято", SubmitReferralResponse{ID: ref.ID, Status: ref.Status})
}

// UpdateReferralStatus меняет статус реферала (только админ).
func (h *handlers) UpdateReferralStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid referral ID")
		return
	}
	var req ReferralStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	ref, err := h.referrals.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Статус реферала обновлен", ref)
}
