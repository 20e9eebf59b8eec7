package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expense-bff/internal/config"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
)

func newTestClient(cfg config.OAuthClientConfig) *Client {
	return NewClient(cfg, zap.NewNop())
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	c := newTestClient(config.OAuthClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/api/google/callback",
	})

	u := c.AuthCodeURL("signed-state")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=signed-state")
	assert.Contains(t, u, "calendar.readonly")
	assert.Contains(t, u, "spreadsheets")
}

func TestRefreshUnavailableWithoutMaterial(t *testing.T) {
	unconfigured := newTestClient(config.OAuthClientConfig{})
	_, err := unconfigured.Refresh(context.Background(), &models.ProviderToken{RefreshToken: "r"})
	assert.ErrorIs(t, err, provider.ErrRefreshUnavailable)

	configured := newTestClient(config.OAuthClientConfig{ClientID: "id", ClientSecret: "secret"})
	_, err = configured.Refresh(context.Background(), &models.ProviderToken{})
	assert.ErrorIs(t, err, provider.ErrRefreshUnavailable)
}

func TestListMeetingsFiltersTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer live-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":      "ev1",
					"summary": "Weekly Team Meeting",
					"start":   map[string]string{"dateTime": "2026-08-03T10:00:00+09:00"},
					"attendees": []map[string]string{
						{"email": "a@example.com"}, {"email": "b@example.com"},
					},
				},
				{
					"id":      "ev2",
					"summary": "Lunch",
					"start":   map[string]string{"dateTime": "2026-08-04T12:00:00+09:00"},
				},
				{
					"id":      "ev3",
					"summary": "ABC社 打ち合わせ",
					"start":   map[string]string{"date": "2026-08-05"},
				},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(config.OAuthClientConfig{})
	c.calendarBaseURL = server.URL

	meetings, err := c.ListMeetings(context.Background(), &models.ProviderToken{AccessToken: "live-token"})
	require.NoError(t, err)
	require.Len(t, meetings, 2)

	assert.Equal(t, "ev1", meetings[0].ID)
	assert.Equal(t, 2, meetings[0].Attendees)
	assert.Equal(t, "2026-08-03T10:00:00+09:00", meetings[0].Date)

	assert.Equal(t, "ev3", meetings[1].ID)
	assert.Equal(t, "2026-08-05", meetings[1].Date)
	assert.Equal(t, 0, meetings[1].Attendees)
}

func TestListMeetingsQueriesCurrentMonth(t *testing.T) {
	var timeMin, timeMax string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeMin = r.URL.Query().Get("timeMin")
		timeMax = r.URL.Query().Get("timeMax")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	c := newTestClient(config.OAuthClientConfig{})
	c.calendarBaseURL = server.URL
	c.now = func() time.Time { return time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC) }

	_, err := c.ListMeetings(context.Background(), &models.ProviderToken{AccessToken: "t"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(timeMin, "2026-08-01T00:00:00"))
	assert.True(t, strings.HasPrefix(timeMax, "2026-09-01T00:00:00"))
}

func TestCalendarUnauthorizedMapsToAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(config.OAuthClientConfig{})
	c.calendarBaseURL = server.URL

	_, err := c.ListMeetings(context.Background(), &models.ProviderToken{AccessToken: "stale"})
	assert.ErrorIs(t, err, provider.ErrAuthExpired)
}

func TestReadRangeConvertsCellsToStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/sheet-id/values/")
		_, _ = w.Write([]byte(`{"values":[["Name","2025 Q3"],["Taro Yamada",7]]}`))
	}))
	defer server.Close()

	c := newTestClient(config.OAuthClientConfig{})
	c.sheetsBaseURL = server.URL

	rows, err := c.ReadRange(context.Background(), &models.ProviderToken{AccessToken: "t"}, "sheet-id", "Mtg!A:G")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Name", "2025 Q3"}, rows[0])
	assert.Equal(t, "7", rows[1][1])
}

func TestUpdateCellWritesUserEnteredValue(t *testing.T) {
	var method, rawQuery string
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		rawQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(config.OAuthClientConfig{})
	c.sheetsBaseURL = server.URL

	err := c.UpdateCell(context.Background(), &models.ProviderToken{AccessToken: "t"}, "sheet-id", "Mtg!B3", 9)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Contains(t, rawQuery, "valueInputOption=USER_ENTERED")
	values := body["values"].([]any)
	row := values[0].([]any)
	assert.Equal(t, float64(9), row[0])
}
