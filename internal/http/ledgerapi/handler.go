package ledgerapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/metrics"
	"github.com/rudro-kalix/business-management/internal/session"
)

const defaultTrendDays = 7

type Handler struct {
	session *session.Session
}

func NewHandler(s *session.Session) *Handler {
	return &Handler{session: s}
}

func (h *Handler) TransactionRoutes(r chi.Router) {
	r.Get("/", h.listTransactions)
	r.Post("/", h.createTransaction)
	r.Patch("/{id}", h.updateTransaction)
	r.Delete("/{id}", h.deleteTransaction)
}

func (h *Handler) ExpenseRoutes(r chi.Router) {
	r.Get("/", h.listExpenses)
	r.Post("/", h.createExpense)
	r.Patch("/{id}", h.updateExpense)
	r.Delete("/{id}", h.deleteExpense)
}

func (h *Handler) MetricsRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/trend", h.trend)
	r.Get("/plans", h.plans)
	r.Get("/breakeven", h.breakEven)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Transactions().Snapshot())
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var rec ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.Transactions().Add(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var rec ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The id comes from the URL; callers cannot move a record to another id.
	rec = rec.WithID(chi.URLParam(r, "id"))

	if err := h.session.Transactions().Update(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Transactions().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Expenses().Snapshot())
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var rec ledger.Expense
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.Expenses().Add(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	var rec ledger.Expense
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec = rec.WithID(chi.URLParam(r, "id"))

	if err := h.session.Expenses().Update(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Expenses().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s := metrics.Summarize(h.session.Transactions().Snapshot(), h.session.Expenses().Snapshot())
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if s := r.URL.Query().Get("days"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			days = n
		}
	}

	points := metrics.ProfitTrend(h.session.Transactions().Snapshot(), days)
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.SalesByPlan(h.session.Transactions().Snapshot()))
}

type breakEvenResponse struct {
	Reachable          bool    `json:"reachable"`
	Sales              int     `json:"sales"`
	ContributionMargin float64 `json:"contributionMargin"`
}

func (h *Handler) breakEven(w http.ResponseWriter, r *http.Request) {
	unitSale, err := strconv.ParseFloat(r.URL.Query().Get("unit_sale"), 64)
	if err != nil {
		http.Error(w, "invalid unit_sale", http.StatusBadRequest)
		return
	}

	unitCost, err := strconv.ParseFloat(r.URL.Query().Get("unit_cost"), 64)
	if err != nil {
		http.Error(w, "invalid unit_cost", http.StatusBadRequest)
		return
	}

	opEx := metrics.Summarize(nil, h.session.Expenses().Snapshot()).TotalOpEx

	sales, ok := metrics.BreakEven(unitSale, unitCost, opEx)
	writeJSON(w, http.StatusOK, breakEvenResponse{
		Reachable:          ok,
		Sales:              sales,
		ContributionMargin: unitSale - unitCost,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		http.Error(w, "please sign in to save changes", http.StatusUnauthorized)
	case errors.Is(err, ledger.ErrPermissionDenied):
		http.Error(w, "the backend denied access: check your access rules", http.StatusForbidden)
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNotConnected):
		http.Error(w, "backend not connected", http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
