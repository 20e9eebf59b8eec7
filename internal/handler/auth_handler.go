package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"expense-bff/internal/service"
	"expense-bff/internal/util"
)

// AuthHandler handles passcode issuance and verification.
type AuthHandler struct {
	passcodes *service.PasscodeService
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewAuthHandler(passcodes *service.PasscodeService, validate *validator.Validate, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		passcodes: passcodes,
		validate:  validate,
		logger:    logger,
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/send-otp", h.SendPasscode)
		r.Post("/verify-otp", h.VerifyPasscode)
	})
}

type sendPasscodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sendPasscodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DevMode bool   `json:"devMode,omitempty"`
}

func (h *AuthHandler) SendPasscode(w http.ResponseWriter, r *http.Request) {
	var req sendPasscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	email := util.NormalizeEmail(req.Email)
	result, err := h.passcodes.Issue(r.Context(), email)
	if err != nil {
		h.logger.Error("Failed to issue passcode", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to send passcode")
		return
	}

	resp := sendPasscodeResponse{Success: true, Message: "passcode sent"}
	if result.DevMode {
		resp.Message = "dev mode: passcode written to the server log"
		resp.DevMode = true
	}
	respondJSON(w, http.StatusOK, resp)
}

type verifyPasscodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

func (h *AuthHandler) VerifyPasscode(w http.ResponseWriter, r *http.Request) {
	var req verifyPasscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "email and passcode are required")
		return
	}

	email := util.NormalizeEmail(req.Email)
	err := h.passcodes.Verify(r.Context(), email, req.OTP)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "verified"})
	case errors.Is(err, service.ErrChallengeNotFound):
		respondError(w, http.StatusUnauthorized, "no passcode found, request a new one")
	case errors.Is(err, service.ErrChallengeExpired):
		respondError(w, http.StatusUnauthorized, "passcode expired, request a new one")
	case errors.Is(err, service.ErrCodeMismatch), errors.Is(err, service.ErrInvalidCode):
		respondError(w, http.StatusUnauthorized, "incorrect passcode")
	default:
		h.logger.Error("Failed to verify passcode", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "verification failed")
	}
}
