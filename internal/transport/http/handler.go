package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
	"github.com/CristianMorenoC/prueba-tecnica/internal/service"
)

type Handler struct {
	svc service.SubscriptionService
}

func NewHandler(svc service.SubscriptionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /users", h.CreateUser)
	mux.HandleFunc("GET /balance", h.GetBalance)
	mux.HandleFunc("GET /funds", h.ListFunds)
	mux.HandleFunc("POST /subscriptions", h.Subscribe)
	mux.HandleFunc("DELETE /subscriptions", h.Cancel)
	mux.HandleFunc("GET /subscriptions", h.ListSubscriptions)
	mux.HandleFunc("GET /transactions", h.ListTransactions)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	acct, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, acct)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_params")
		return
	}
	acct, err := h.svc.GetAccount(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"user_id": acct.UserID, "balance": acct.Balance})
}

func (h *Handler) ListFunds(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	funds, next, err := h.svc.ListFunds(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"funds": funds, "next_cursor": next})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req model.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	sub, err := h.svc.Subscribe(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	fundID := r.URL.Query().Get("fund_id")
	if userID == "" || fundID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_params")
		return
	}
	sub, err := h.svc.Cancel(r.Context(), model.CancelRequest{UserID: userID, FundID: fundID})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sub)
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_params")
		return
	}
	status := model.SubscriptionStatus(r.URL.Query().Get("status"))
	subs, err := h.svc.ListSubscriptions(r.Context(), userID, status)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := model.TransactionQuery{
		UserID: r.URL.Query().Get("user_id"),
		FundID: r.URL.Query().Get("fund_id"),
	}
	query.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		query.Since = since
	}
	txs, err := h.svc.ListTransactions(r.Context(), query)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// respondDomainError maps the error taxonomy to HTTP statuses: not-found
// 404, validation 422, duplicates 409, exhausted write conflicts 503.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case model.IsNotFound(err):
		h.respondError(w, http.StatusNotFound, err.Error())
	case model.IsValidation(err):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case model.IsDuplicate(err):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrConflict):
		h.respondError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry the request")
	default:
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
