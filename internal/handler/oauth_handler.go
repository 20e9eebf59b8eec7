package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"expense-bff/internal/models"
	"expense-bff/internal/oauthstate"
	"expense-bff/internal/service"
	"expense-bff/internal/util"
)

// OAuthHandler drives the browser-facing half of provider linking: the
// consent redirect and the callback. Callbacks always answer 200 with an
// HTML page because the popup window is the only audience.
type OAuthHandler struct {
	links  *service.LinkService
	logger *zap.Logger
}

func NewOAuthHandler(links *service.LinkService, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{links: links, logger: logger}
}

func (h *OAuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/google", func(r chi.Router) {
		r.Get("/auth", h.authorize(models.ProviderGoogle))
		r.Get("/callback", h.callback(models.ProviderGoogle))
	})
	router.Route("/sfdc", func(r chi.Router) {
		r.Get("/auth", h.authorize(models.ProviderSalesforce))
		r.Get("/callback", h.callback(models.ProviderSalesforce))
	})
}

func (h *OAuthHandler) authorize(prov models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := util.NormalizeEmail(r.URL.Query().Get("email"))
		if email == "" {
			respondError(w, http.StatusBadRequest, "email is required")
			return
		}

		authURL, err := h.links.AuthorizeURL(prov, email)
		if err != nil {
			if errors.Is(err, service.ErrProviderNotConfigured) {
				respondError(w, http.StatusServiceUnavailable,
					fmt.Sprintf("%s integration is not configured", prov))
				return
			}
			h.logger.Error("Failed to build authorize URL",
				zap.String("provider", string(prov)),
				zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to start authorization")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func (h *OAuthHandler) callback(prov models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("error") != "" {
			writeErrorPage(w, "認証がキャンセルされました")
			return
		}

		code, state := q.Get("code"), q.Get("state")
		if code == "" || state == "" {
			writeErrorPage(w, "認証パラメータが不足しています")
			return
		}

		email, err := h.links.CompleteLink(r.Context(), prov, code, state)
		switch {
		case err == nil:
			h.logger.Info("OAuth link completed",
				zap.String("email", email),
				zap.String("provider", string(prov)))
			writeSuccessPage(w, providerDisplayName(prov))
		case errors.Is(err, oauthstate.ErrInvalidState), errors.Is(err, oauthstate.ErrStateExpired):
			writeErrorPage(w, "無効な認証状態です")
		case errors.Is(err, service.ErrCredentialStoreFailed):
			h.logger.Error("Failed to store linked credential", zap.Error(err))
			writeErrorPage(w, "接続情報の保存に失敗しました")
		default:
			h.logger.Error("OAuth code exchange failed",
				zap.String("provider", string(prov)),
				zap.Error(err))
			writeErrorPage(w, "トークン取得に失敗しました")
		}
	}
}

func providerDisplayName(prov models.Provider) string {
	if prov == models.ProviderSalesforce {
		return "Salesforce"
	}
	return "Google"
}
