// Package salesforce links Salesforce accounts over OAuth and searches
// Opportunity records on behalf of a linked user. Salesforce issues
// access tokens without an expiry, so refresh is always reactive.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"expense-bff/internal/config"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
)

const apiVersion = "v59.0"

// Client wraps the Salesforce OAuth flow and the REST query API.
type Client struct {
	conf       *oauth2.Config
	httpClient *http.Client
	logger     *zap.Logger

	// instanceURLOverride points API calls at a fixed host instead of the
	// instance_url from the token. Used by tests.
	instanceURLOverride string
}

var _ provider.Refresher = (*Client)(nil)

func NewClient(cfg config.SalesforceConfig, logger *zap.Logger) *Client {
	loginURL := strings.TrimRight(cfg.LoginURL, "/")
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"api", "refresh_token"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  loginURL + "/services/oauth2/authorize",
				TokenURL: loginURL + "/services/oauth2/token",
			},
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *Client) Configured() bool {
	return c.conf.ClientID != "" && c.conf.ClientSecret != ""
}

func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a credential. The instance URL
// rides along in the token response and is needed for every API call.
func (c *Client) Exchange(ctx context.Context, code string) (*models.ProviderToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("salesforce code exchange failed: %w", err)
	}

	instanceURL, _ := tok.Extra("instance_url").(string)
	return &models.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  instanceURL,
	}, nil
}

// Refresh exchanges the refresh token for a new access token. Salesforce
// keeps the refresh token stable and may omit instance_url, in which case
// the stored one carries over.
func (c *Client) Refresh(ctx context.Context, token *models.ProviderToken) (*models.ProviderToken, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: salesforce client credentials not configured", provider.ErrRefreshUnavailable)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", provider.ErrRefreshUnavailable)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("salesforce token refresh failed: %w", err)
	}

	fresh := &models.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	if instanceURL, _ := tok.Extra("instance_url").(string); instanceURL != "" {
		fresh.InstanceURL = instanceURL
	} else {
		fresh.InstanceURL = token.InstanceURL
	}
	return fresh, nil
}

type queryResponse struct {
	Records []struct {
		ID        string  `json:"Id"`
		Name      string  `json:"Name"`
		Amount    float64 `json:"Amount"`
		CloseDate string  `json:"CloseDate"`
		StageName string  `json:"StageName"`
		Account   *struct {
			Name string `json:"Name"`
		} `json:"Account"`
	} `json:"records"`
}

// SearchOpportunities returns open opportunities whose name or account name
// matches the query, capped at 20 records.
func (c *Client) SearchOpportunities(ctx context.Context, token *models.ProviderToken, query string) ([]models.Opportunity, error) {
	escaped := escapeSOQL(query)
	soql := fmt.Sprintf(
		"SELECT Id, Name, Account.Name, Amount, CloseDate, StageName "+
			"FROM Opportunity "+
			"WHERE IsClosed = false AND (Name LIKE '%%%s%%' OR Account.Name LIKE '%%%s%%') "+
			"ORDER BY CloseDate ASC LIMIT 20",
		escaped, escaped)

	base := c.instanceURLOverride
	if base == "" {
		base = token.InstanceURL
	}
	if base == "" {
		return nil, fmt.Errorf("%w: token has no instance url", provider.ErrAuthExpired)
	}

	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		strings.TrimRight(base, "/"), apiVersion, url.QueryEscape(soql))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: crm returned 401", provider.ErrAuthExpired)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Salesforce query error response", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("crm returned %d: %s", resp.StatusCode, snippet)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("failed to decode crm response: %w", err)
	}

	opportunities := make([]models.Opportunity, 0, len(qr.Records))
	for _, rec := range qr.Records {
		opp := models.Opportunity{
			ID:          rec.ID,
			Name:        rec.Name,
			AccountName: "Unknown",
			Amount:      rec.Amount,
			CloseDate:   rec.CloseDate,
			StageName:   rec.StageName,
		}
		if rec.Account != nil && rec.Account.Name != "" {
			opp.AccountName = rec.Account.Name
		}
		opportunities = append(opportunities, opp)
	}
	return opportunities, nil
}

// escapeSOQL escapes quote characters so user input cannot break out of the
// LIKE literal.
func escapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
