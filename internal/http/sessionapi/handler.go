package sessionapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rudro-kalix/business-management/internal/advisor"
	"github.com/rudro-kalix/business-management/internal/ledger"
	"github.com/rudro-kalix/business-management/internal/migrate"
	"github.com/rudro-kalix/business-management/internal/remote"
	"github.com/rudro-kalix/business-management/internal/session"
)

type Handler struct {
	session  *session.Session
	migrator *migrate.Coordinator
	advisor  *advisor.Service
}

func NewHandler(s *session.Session, m *migrate.Coordinator, a *advisor.Service) *Handler {
	return &Handler{session: s, migrator: m, advisor: a}
}

func (h *Handler) SessionRoutes(r chi.Router) {
	r.Get("/", h.status)
	r.Post("/connect", h.connect)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/disconnect", h.disconnect)
}

func (h *Handler) MigrateRoutes(r chi.Router) {
	r.Post("/", h.migrate)
}

func (h *Handler) AdvisorRoutes(r chi.Router) {
	r.Post("/analyze", h.analyze)
	r.Post("/forecast", h.forecast)
}

type statusResponse struct {
	State     session.State     `json:"state"`
	Principal *remote.Principal `json:"principal,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		State:     h.session.State(),
		Principal: h.session.Principal(),
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var cfg remote.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.Connect(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}

	h.status(w, r)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds remote.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.Login(r.Context(), creds); err != nil {
		writeError(w, err)
		return
	}

	h.status(w, r)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	h.status(w, r)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Disconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	h.status(w, r)
}

type migrateRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) migrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transactions, expenses, err := h.session.LocalSnapshots()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.migrator.Run(r.Context(), transactions, expenses, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	Query string `json:"query"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	text := h.advisor.Analyze(r.Context(), h.session.Transactions().Snapshot(), req.Query)
	writeJSON(w, http.StatusOK, analyzeResponse{Analysis: text})
}

func (h *Handler) forecast(w http.ResponseWriter, r *http.Request) {
	text := h.advisor.Forecast(r.Context(), h.session.Transactions().Snapshot())
	writeJSON(w, http.StatusOK, analyzeResponse{Analysis: text})
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
		http.Error(w, "please sign in first", http.StatusUnauthorized)
	case errors.Is(err, ledger.ErrPermissionDenied):
		http.Error(w, "the backend denied access: check your access rules", http.StatusForbidden)
	case errors.Is(err, ledger.ErrConfigInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, migrate.ErrNotConfirmed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNotConnected):
		http.Error(w, "backend not connected", http.StatusConflict)
	case errors.Is(err, ledger.ErrMigrationFailed):
		http.Error(w, "migration failed; no records were applied", http.StatusBadGateway)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
