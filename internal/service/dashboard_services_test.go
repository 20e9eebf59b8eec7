package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/config"
	"expense-bff/internal/encryption"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/google"
	"expense-bff/internal/provider/salesforce"
	"expense-bff/internal/repository/memory"
)

func newTestConnectionService(store *memory.Store) *ConnectionService {
	cfg := &config.Config{}
	return NewConnectionService(
		store,
		encryption.NewEncryptionManager(cfg, nil),
		audit.NewPublisher(nil, "user-activity", zap.NewNop()),
		zap.NewNop(),
	)
}

func TestConnectionTokenRoundTrip(t *testing.T) {
	store := memory.NewStore()
	svc := newTestConnectionService(store)
	ctx := context.Background()

	token := &models.ProviderToken{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, svc.SaveToken(ctx, "user@example.com", models.ProviderGoogle, token))

	// Payload in the store is encrypted, not the raw token.
	payload, err := store.GetToken(ctx, "user@example.com", models.ProviderGoogle)
	require.NoError(t, err)
	assert.NotContains(t, payload, "access")

	got, err := svc.GetToken(ctx, "user@example.com", models.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, token.ExpiresAt.Equal(got.ExpiresAt))
}

func TestDisconnectLeavesOtherProviderUntouched(t *testing.T) {
	svc := newTestConnectionService(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, svc.SaveToken(ctx, "user@example.com", models.ProviderGoogle, &models.ProviderToken{AccessToken: "g"}))
	require.NoError(t, svc.SaveToken(ctx, "user@example.com", models.ProviderSalesforce, &models.ProviderToken{AccessToken: "s"}))

	require.NoError(t, svc.Disconnect(ctx, "user@example.com", models.ProviderSalesforce))

	assert.False(t, svc.Connected(ctx, "user@example.com", models.ProviderSalesforce))
	assert.True(t, svc.Connected(ctx, "user@example.com", models.ProviderGoogle))
}

func newTestCalendarService(connections *ConnectionService) *CalendarService {
	googleClient := google.NewClient(config.OAuthClientConfig{}, zap.NewNop())
	runner := provider.NewRunner(googleClient, zap.NewNop())
	return NewCalendarService(connections, googleClient, runner, zap.NewNop())
}

func TestListMeetingsWithoutConnectionReturnsSamples(t *testing.T) {
	svc := newTestCalendarService(newTestConnectionService(memory.NewStore()))

	meetings, err := svc.ListMeetings(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, "mock1", meetings[0].ID)
	assert.Equal(t, "mock2", meetings[1].ID)
}

func newTestCRMService(connections *ConnectionService, devFallback bool) *CRMService {
	sfdcClient := salesforce.NewClient(config.SalesforceConfig{
		LoginURL: "https://login.salesforce.com",
	}, zap.NewNop())
	runner := provider.NewRunner(sfdcClient, zap.NewNop())
	return NewCRMService(connections, sfdcClient, runner, devFallback, zap.NewNop())
}

func TestSearchRejectsShortQuery(t *testing.T) {
	svc := newTestCRMService(newTestConnectionService(memory.NewStore()), true)

	_, err := svc.Search(context.Background(), "user@example.com", "a")
	assert.ErrorIs(t, err, ErrQueryTooShort)

	_, err = svc.Search(context.Background(), "user@example.com", " a ")
	assert.ErrorIs(t, err, ErrQueryTooShort)
}

func TestSearchWithoutConnection(t *testing.T) {
	connections := newTestConnectionService(memory.NewStore())

	// Development fallback: mock results.
	dev := newTestCRMService(connections, true)
	opportunities, err := dev.Search(context.Background(), "user@example.com", "acme")
	require.NoError(t, err)
	require.Len(t, opportunities, 2)
	assert.Contains(t, opportunities[0].Name, "acme")

	// With a persistent store the same state is a connection failure.
	prod := newTestCRMService(connections, false)
	_, err = prod.Search(context.Background(), "user@example.com", "acme")
	assert.ErrorIs(t, err, provider.ErrNotConnected)
}

func newTestKPIService(store *memory.Store, sheetID string) *KPIService {
	googleClient := google.NewClient(config.OAuthClientConfig{}, zap.NewNop())
	runner := provider.NewRunner(googleClient, zap.NewNop())
	return NewKPIService(
		store,
		newTestConnectionService(store),
		googleClient,
		runner,
		audit.NewPublisher(nil, "user-activity", zap.NewNop()),
		sheetID, "Mtg",
		zap.NewNop(),
	)
}

func TestKPIReadDegradesToMockValues(t *testing.T) {
	store := memory.NewStore()
	svc := newTestKPIService(store, "sheet-id")
	ctx := context.Background()

	// No profile: zero progress.
	result := svc.Read(ctx, "user@example.com")
	assert.Equal(t, 0, result.KPI.UserPartnerMeeting.Current)
	assert.Equal(t, 120, result.KPI.UserPartnerMeeting.Target)
	assert.Equal(t, 0, result.KPI.CxOVisit.Current)
	assert.Equal(t, 3, result.KPI.CxOVisit.Target)
	assert.NotEmpty(t, result.KPI.Quarter)
	assert.NotNil(t, result.PendingMeetings)

	// Profile but no Google link: placeholder progress.
	require.NoError(t, store.UpsertProfile(ctx, &models.UserProfile{
		Email:        "user@example.com",
		NameAlphabet: "Taro Yamada",
	}))
	result = svc.Read(ctx, "user@example.com")
	assert.Equal(t, 45, result.KPI.UserPartnerMeeting.Current)
	assert.Equal(t, 1, result.KPI.CxOVisit.Current)
}

func TestRecordMeetingsValidation(t *testing.T) {
	store := memory.NewStore()
	svc := newTestKPIService(store, "sheet-id")
	ctx := context.Background()

	_, err := svc.RecordMeetings(ctx, "user@example.com", -1)
	assert.ErrorIs(t, err, ErrInvalidMeetingCount)

	_, err = svc.RecordMeetings(ctx, "user@example.com", 2)
	assert.ErrorIs(t, err, ErrProfileRequired)

	require.NoError(t, store.UpsertProfile(ctx, &models.UserProfile{
		Email:        "user@example.com",
		NameAlphabet: "Taro Yamada",
	}))
	_, err = svc.RecordMeetings(ctx, "user@example.com", 2)
	assert.ErrorIs(t, err, provider.ErrNotConnected)
}

func TestCurrentQuarter(t *testing.T) {
	svc := newTestKPIService(memory.NewStore(), "sheet-id")

	cases := []struct {
		date   time.Time
		label  string
		column string
	}{
		{time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC), "2025 Q3", "B"},
		{time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), "2025 Q4", "C"},
		{time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), "2026 Q1", "D"},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), "2026 Q4", "G"},
		// Outside the mapped window falls back to column D.
		{time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), "2027 Q1", "D"},
	}
	for _, tc := range cases {
		svc.now = func() time.Time { return tc.date }
		label, column := svc.currentQuarter()
		assert.Equal(t, tc.label, label)
		assert.Equal(t, tc.column, column)
	}
}

func TestResolveQuarterColumn(t *testing.T) {
	rows := [][]string{
		{"Name", "2025 Q3", "2025 Q4", "2026 Q1"},
	}

	assert.Equal(t, 2, resolveQuarterColumn(rows, "2025 Q4", "C"))

	// Quarter-part match when the year is missing from the header.
	rows = [][]string{{"Name", "Q3", "Q4"}}
	assert.Equal(t, 1, resolveQuarterColumn(rows, "2025 Q3", "B"))

	// Letter fallback when nothing matches.
	rows = [][]string{{"Name", "meetings"}}
	assert.Equal(t, 4, resolveQuarterColumn(rows, "2026 Q2", "E"))

	assert.Equal(t, 1, resolveQuarterColumn(nil, "2025 Q3", "B"))
}

func TestFindUserRow(t *testing.T) {
	rows := [][]string{
		{"Name", "2025 Q3"},
		{"Hanako Suzuki", "12"},
		{"Taro Yamada", "7"},
		{"", ""},
	}

	row, current := findUserRow(rows, "taro yamada", 1)
	assert.Equal(t, 2, row)
	assert.Equal(t, 7, current)

	// Partial, case-insensitive match.
	row, current = findUserRow(rows, "Suzuki", 1)
	assert.Equal(t, 1, row)
	assert.Equal(t, 12, current)

	row, _ = findUserRow(rows, "Nobody", 1)
	assert.Equal(t, -1, row)

	// Missing cell reads as zero.
	rows = [][]string{{"Name"}, {"Taro Yamada"}}
	row, current = findUserRow(rows, "Taro", 1)
	assert.Equal(t, 1, row)
	assert.Equal(t, 0, current)
}
