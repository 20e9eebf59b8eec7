package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"expense-bff/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendClient sends transactional email through the Resend HTTP API.
type ResendClient struct {
	apiKey     string
	fromEmail  string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewResendClient(cfg *config.Config, logger *zap.Logger) *ResendClient {
	return &ResendClient{
		apiKey:     cfg.Resend.APIKey,
		fromEmail:  cfg.Resend.FromEmail,
		endpoint:   resendEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendEmail sends one HTML email and returns an error on any non-2xx
// response.
func (c *ResendClient) SendEmail(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(resendRequest{
		From:    c.fromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Resend rejected email",
			zap.Int("status", resp.StatusCode),
			zap.String("to", to))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, snippet)
	}

	c.logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
