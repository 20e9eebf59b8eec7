// Package google links Google accounts over OAuth and calls the Calendar
// and Sheets APIs on behalf of a linked user.
package google

import (
	"bytes"
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

const (
	defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultSheetsBaseURL   = "https://sheets.googleapis.com/v4/spreadsheets"

	// Scopes requested at link time: read-only calendar plus read-write
	// sheets for the KPI updates.
	scopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	scopeSpreadsheets     = "https://www.googleapis.com/auth/spreadsheets"
)

// Client wraps the Google OAuth flow and the two APIs the dashboard needs.
type Client struct {
	conf            *oauth2.Config
	httpClient      *http.Client
	logger          *zap.Logger
	calendarBaseURL string
	sheetsBaseURL   string
	now             func() time.Time
}

var _ provider.Refresher = (*Client)(nil)

func NewClient(cfg config.OAuthClientConfig, logger *zap.Logger) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{scopeCalendarReadonly, scopeSpreadsheets},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          logger,
		calendarBaseURL: defaultCalendarBaseURL,
		sheetsBaseURL:   defaultSheetsBaseURL,
		now:             time.Now,
	}
}

// Configured reports whether client credentials are present. Without them
// the link endpoints answer 503 and refreshes are unavailable.
func (c *Client) Configured() bool {
	return c.conf.ClientID != "" && c.conf.ClientSecret != ""
}

// AuthCodeURL builds the consent URL. Offline access with forced consent is
// required or Google omits the refresh token on relink.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a stored credential.
func (c *Client) Exchange(ctx context.Context, code string) (*models.ProviderToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange failed: %w", err)
	}
	return &models.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}, nil
}

// Refresh exchanges the refresh token for a new access token. Google only
// returns a new refresh token occasionally, so the old one is kept unless
// replaced.
func (c *Client) Refresh(ctx context.Context, token *models.ProviderToken) (*models.ProviderToken, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: google client credentials not configured", provider.ErrRefreshUnavailable)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", provider.ErrRefreshUnavailable)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("google token refresh failed: %w", err)
	}

	fresh := &models.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

type calendarEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   struct {
		Date     string `json:"date"`
		DateTime string `json:"dateTime"`
	} `json:"start"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees"`
}

type calendarEventList struct {
	Items []calendarEvent `json:"items"`
}

// ListMeetings returns the current month's events whose title marks them as
// a meeting, in either language the users write titles in.
func (c *Client) ListMeetings(ctx context.Context, token *models.ProviderToken) ([]models.Meeting, error) {
	now := c.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	q := url.Values{}
	q.Set("timeMin", monthStart.Format(time.RFC3339))
	q.Set("timeMax", monthEnd.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "100")

	endpoint := c.calendarBaseURL + "/calendars/primary/events?" + q.Encode()
	var list calendarEventList
	if err := c.getJSON(ctx, token, endpoint, &list, "calendar"); err != nil {
		return nil, err
	}

	meetings := make([]models.Meeting, 0, len(list.Items))
	for _, ev := range list.Items {
		if !isMeetingTitle(ev.Summary) {
			continue
		}
		meetings = append(meetings, models.Meeting{
			ID:        ev.ID,
			Title:     ev.Summary,
			Date:      eventDate(ev),
			Attendees: len(ev.Attendees),
		})
	}
	return meetings, nil
}

func isMeetingTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "meeting") || strings.Contains(title, "打ち合わせ")
}

func eventDate(ev calendarEvent) string {
	if ev.Start.DateTime != "" {
		return ev.Start.DateTime
	}
	return ev.Start.Date
}

type sheetValueRange struct {
	Values [][]any `json:"values"`
}

// ReadRange reads an A1-notation range from a spreadsheet, returning cell
// values as strings. Numeric cells come back formatted by the sheet.
func (c *Client) ReadRange(ctx context.Context, token *models.ProviderToken, sheetID, a1Range string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/%s/values/%s", c.sheetsBaseURL, url.PathEscape(sheetID), url.PathEscape(a1Range))
	var vr sheetValueRange
	if err := c.getJSON(ctx, token, endpoint, &vr, "sheets"); err != nil {
		return nil, err
	}

	rows := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%v", v)
		}
		rows[i] = cells
	}
	return rows, nil
}

// UpdateCell writes a single value with USER_ENTERED input so the sheet
// parses numbers as numbers.
func (c *Client) UpdateCell(ctx context.Context, token *models.ProviderToken, sheetID, a1Range string, value any) error {
	endpoint := fmt.Sprintf("%s/%s/values/%s?valueInputOption=USER_ENTERED",
		c.sheetsBaseURL, url.PathEscape(sheetID), url.PathEscape(a1Range))

	body, err := json.Marshal(map[string]any{
		"values": [][]any{{value}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode cell update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sheets request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheets update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: sheets returned 401", provider.ErrAuthExpired)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets update returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, token *models.ProviderToken, endpoint string, out any, api string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", api, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s returned 401", provider.ErrAuthExpired, api)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Google API error response",
			zap.String("api", api),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%s returned %d: %s", api, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", api, err)
	}
	return nil
}
