package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"expense-bff/internal/models"
	"expense-bff/internal/service"
	"expense-bff/internal/util"
)

// UserHandler handles profile registration, profile lookup, connection
// status and disconnect.
type UserHandler struct {
	users       *service.UserService
	connections *service.ConnectionService
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewUserHandler(
	users *service.UserService,
	connections *service.ConnectionService,
	validate *validator.Validate,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		users:       users,
		connections: connections,
		validate:    validate,
		logger:      logger,
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Route("/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Get("/profile", h.Profile)
		r.Get("/connections", h.Connections)
		r.Post("/disconnect", h.Disconnect)
	})
}

type registerRequest struct {
	Email         string `json:"email" validate:"required,email"`
	NameKanji     string `json:"name_kanji" validate:"required"`
	NameAlphabet  string `json:"name_alphabet" validate:"required"`
	DefaultTiming string `json:"default_timing"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "email, name_kanji and name_alphabet are required")
		return
	}

	profile, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:         util.NormalizeEmail(req.Email),
		NameKanji:     req.NameKanji,
		NameAlphabet:  req.NameAlphabet,
		DefaultTiming: req.DefaultTiming,
	})
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user registered",
		"profile": profile,
	})
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	email := util.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	profile, err := h.users.GetProfile(r.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{
				"registered": false,
				"profile":    nil,
			})
			return
		}
		h.logger.Error("Failed to load profile", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"registered": true,
		"profile":    profile,
	})
}

func (h *UserHandler) Connections(w http.ResponseWriter, r *http.Request) {
	email := util.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	ctx := r.Context()
	respondJSON(w, http.StatusOK, map[string]bool{
		"google_connected":     h.connections.Connected(ctx, email, models.ProviderGoogle),
		"salesforce_connected": h.connections.Connected(ctx, email, models.ProviderSalesforce),
	})
}

type disconnectRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Service string `json:"service" validate:"required"`
}

func (h *UserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "email and service are required")
		return
	}

	prov, ok := models.ParseProvider(req.Service)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid service name")
		return
	}

	email := util.NormalizeEmail(req.Email)
	if err := h.connections.Disconnect(r.Context(), email, prov); err != nil {
		h.logger.Error("Failed to disconnect provider",
			zap.String("provider", string(prov)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "disconnect failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%s disconnected", prov),
	})
}
