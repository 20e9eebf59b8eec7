package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"expense-bff/internal/provider"
	"expense-bff/internal/service"
	"expense-bff/internal/util"
)

// DashboardHandler exposes the relay endpoints the dashboard calls:
// calendar meetings, CRM search and the KPI sheet.
type DashboardHandler struct {
	calendar *service.CalendarService
	crm      *service.CRMService
	kpi      *service.KPIService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewDashboardHandler(
	calendar *service.CalendarService,
	crm *service.CRMService,
	kpi *service.KPIService,
	validate *validator.Validate,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		calendar: calendar,
		crm:      crm,
		kpi:      kpi,
		validate: validate,
		logger:   logger,
	}
}

func (h *DashboardHandler) RegisterRoutes(router chi.Router) {
	router.Get("/calendar/meetings", h.Meetings)
	router.Get("/sfdc/search", h.SearchOpportunities)
	router.Route("/sheets", func(r chi.Router) {
		r.Get("/kpi", h.ReadKPI)
		r.Post("/meeting/sync", h.SyncMeetings)
	})
}

func (h *DashboardHandler) Meetings(w http.ResponseWriter, r *http.Request) {
	email := util.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	meetings, err := h.calendar.ListMeetings(r.Context(), email)
	if err != nil {
		if isConnectionError(err) {
			respondError(w, http.StatusUnauthorized, "google reconnection required")
			return
		}
		h.logger.Error("Failed to list meetings", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to fetch calendar")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"meetings": meetings})
}

func (h *DashboardHandler) SearchOpportunities(w http.ResponseWriter, r *http.Request) {
	email := util.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	opportunities, err := h.crm.Search(r.Context(), email, r.URL.Query().Get("q"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"opportunities": opportunities})
	case errors.Is(err, service.ErrQueryTooShort):
		respondError(w, http.StatusBadRequest, "search query must be at least 2 characters")
	case errors.Is(err, provider.ErrNotConnected):
		respondError(w, http.StatusUnauthorized, "salesforce connection required")
	case isConnectionError(err):
		respondError(w, http.StatusUnauthorized, "salesforce reconnection required")
	default:
		h.logger.Error("Failed to search opportunities", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "search failed")
	}
}

func (h *DashboardHandler) ReadKPI(w http.ResponseWriter, r *http.Request) {
	email := util.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	respondJSON(w, http.StatusOK, h.kpi.Read(r.Context(), email))
}

type syncMeetingsRequest struct {
	Email        string `json:"email" validate:"required,email"`
	MeetingCount *int   `json:"meetingCount" validate:"required"`
}

func (h *DashboardHandler) SyncMeetings(w http.ResponseWriter, r *http.Request) {
	var req syncMeetingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil || *req.MeetingCount < 0 {
		respondError(w, http.StatusBadRequest, "a valid meeting count is required")
		return
	}

	email := util.NormalizeEmail(req.Email)
	message, err := h.kpi.RecordMeetings(r.Context(), email, *req.MeetingCount)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
	case errors.Is(err, service.ErrInvalidMeetingCount):
		respondError(w, http.StatusBadRequest, "a valid meeting count is required")
	case errors.Is(err, service.ErrProfileRequired):
		respondError(w, http.StatusBadRequest, "user profile not found")
	case errors.Is(err, provider.ErrNotConnected):
		respondError(w, http.StatusUnauthorized, "google connection required")
	case isConnectionError(err):
		respondError(w, http.StatusUnauthorized, "google reconnection required")
	case errors.Is(err, service.ErrUserRowNotFound):
		respondError(w, http.StatusInternalServerError, "user not found in kpi sheet")
	default:
		h.logger.Error("Failed to sync meetings to KPI sheet", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "kpi update failed")
	}
}

// isConnectionError reports whether the failure means the stored credential
// is unusable and the user must relink.
func isConnectionError(err error) bool {
	return errors.Is(err, provider.ErrReconnectRequired) ||
		errors.Is(err, provider.ErrRefreshUnavailable) ||
		errors.Is(err, provider.ErrNotConnected)
}
