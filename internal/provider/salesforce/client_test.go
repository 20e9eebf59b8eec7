package salesforce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expense-bff/internal/config"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
)

func newTestClient() *Client {
	return NewClient(config.SalesforceConfig{
		OAuthClientConfig: config.OAuthClientConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "https://app.example.com/api/sfdc/callback",
		},
		LoginURL: "https://login.salesforce.com",
	}, zap.NewNop())
}

func TestAuthCodeURLUsesLoginHost(t *testing.T) {
	u := newTestClient().AuthCodeURL("signed-state")
	assert.Contains(t, u, "https://login.salesforce.com/services/oauth2/authorize")
	assert.Contains(t, u, "state=signed-state")
	assert.Contains(t, u, "scope=api+refresh_token")
}

func TestEscapeSOQL(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSOQL("O'Brien"))
	assert.Equal(t, `a\\b`, escapeSOQL(`a\b`))
	assert.Equal(t, "plain", escapeSOQL("plain"))
}

func TestSearchOpportunities(t *testing.T) {
	var soql string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/data/v59.0/query", r.URL.Path)
		assert.Equal(t, "Bearer live-token", r.Header.Get("Authorization"))
		soql = r.URL.Query().Get("q")

		_, _ = w.Write([]byte(`{
			"records": [
				{
					"Id": "006A",
					"Name": "Acme Renewal",
					"Amount": 120000,
					"CloseDate": "2026-09-30",
					"StageName": "Negotiation",
					"Account": {"Name": "Acme Corp"}
				},
				{
					"Id": "006B",
					"Name": "Orphan Deal",
					"CloseDate": "2026-10-15",
					"StageName": "Proposal"
				}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient()
	c.instanceURLOverride = server.URL

	opportunities, err := c.SearchOpportunities(context.Background(),
		&models.ProviderToken{AccessToken: "live-token", InstanceURL: "https://ignored.example.com"}, "Acme")
	require.NoError(t, err)
	require.Len(t, opportunities, 2)

	assert.Contains(t, soql, "FROM Opportunity")
	assert.Contains(t, soql, "IsClosed = false")
	assert.Contains(t, soql, "LIKE '%Acme%'")
	assert.Contains(t, soql, "LIMIT 20")

	assert.Equal(t, "Acme Corp", opportunities[0].AccountName)
	assert.Equal(t, float64(120000), opportunities[0].Amount)

	// Missing account falls back to a placeholder.
	assert.Equal(t, "Unknown", opportunities[1].AccountName)
	assert.Zero(t, opportunities[1].Amount)
}

func TestSearchEscapesQuotesInQuery(t *testing.T) {
	var soql string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		soql = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer server.Close()

	c := newTestClient()
	c.instanceURLOverride = server.URL

	_, err := c.SearchOpportunities(context.Background(), &models.ProviderToken{AccessToken: "t"}, "O'Brien")
	require.NoError(t, err)
	assert.Contains(t, soql, `O\'Brien`)
	assert.NotContains(t, soql, "'%O'Brien%'")
}

func TestSearchUnauthorizedMapsToAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient()
	c.instanceURLOverride = server.URL

	_, err := c.SearchOpportunities(context.Background(), &models.ProviderToken{AccessToken: "stale"}, "Acme")
	assert.ErrorIs(t, err, provider.ErrAuthExpired)
}

func TestSearchWithoutInstanceURL(t *testing.T) {
	c := newTestClient()
	_, err := c.SearchOpportunities(context.Background(), &models.ProviderToken{AccessToken: "t"}, "Acme")
	assert.ErrorIs(t, err, provider.ErrAuthExpired)
}

func TestRefreshUnavailableWithoutMaterial(t *testing.T) {
	unconfigured := NewClient(config.SalesforceConfig{LoginURL: "https://login.salesforce.com"}, zap.NewNop())
	_, err := unconfigured.Refresh(context.Background(), &models.ProviderToken{RefreshToken: "r"})
	assert.ErrorIs(t, err, provider.ErrRefreshUnavailable)

	_, err = newTestClient().Refresh(context.Background(), &models.ProviderToken{})
	assert.ErrorIs(t, err, provider.ErrRefreshUnavailable)
}
