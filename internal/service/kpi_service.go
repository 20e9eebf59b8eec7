package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"expense-bff/internal/audit"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/google"
	"expense-bff/internal/repository"
)

const (
	partnerMeetingTarget = 120
	cxoVisitTarget       = 3
)

var (
	ErrInvalidMeetingCount = errors.New("meeting count must be a non-negative number")
	ErrProfileRequired     = errors.New("user profile not found")
	ErrUserRowNotFound     = errors.New("user not found in kpi sheet")
)

// quarterColumns maps fiscal quarters to their column on the KPI sheet.
// Used as a fallback when the header row cannot be matched.
var quarterColumns = map[string]string{
	"2025 Q3": "B",
	"2025 Q4": "C",
	"2026 Q1": "D",
	"2026 Q2": "E",
	"2026 Q3": "F",
	"2026 Q4": "G",
}

// KPIService reads and updates the shared KPI spreadsheet. The sheet has
// one row per person (name in column A) and one column per quarter.
type KPIService struct {
	profiles    repository.ProfileStore
	connections *ConnectionService
	google      *google.Client
	runner      *provider.Runner
	audit       *audit.Publisher
	sheetID     string
	sheetTab    string
	logger      *zap.Logger
	now         func() time.Time
}

func NewKPIService(
	profiles repository.ProfileStore,
	connections *ConnectionService,
	googleClient *google.Client,
	runner *provider.Runner,
	auditPub *audit.Publisher,
	sheetID, sheetTab string,
	logger *zap.Logger,
) *KPIService {
	return &KPIService{
		profiles:    profiles,
		connections: connections,
		google:      googleClient,
		runner:      runner,
		audit:       auditPub,
		sheetID:     sheetID,
		sheetTab:    sheetTab,
		logger:      logger,
		now:         time.Now,
	}
}

// KPIReadResult is the dashboard payload.
type KPIReadResult struct {
	KPI             models.KPISnapshot `json:"kpi"`
	PendingMeetings []models.Meeting   `json:"pendingMeetings"`
}

// Read returns the user's KPI numbers. Every failure mode degrades to mock
// values rather than an error so the dashboard always renders: zeros when
// the profile is missing or the sheet read fails, placeholder progress when
// Google is not linked or the sheet is not configured.
func (s *KPIService) Read(ctx context.Context, email string) *KPIReadResult {
	quarter, column := s.currentQuarter()

	var (
		profile *models.UserProfile
		token   *models.ProviderToken
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, email)
		if err == nil {
			profile = p
		}
		return nil
	})
	g.Go(func() error {
		t, err := s.connections.GetToken(gctx, email, models.ProviderGoogle)
		if err == nil {
			token = t
		}
		return nil
	})
	_ = g.Wait()

	if profile == nil || profile.NameAlphabet == "" {
		return mockKPIResult(quarter, 0, 0)
	}
	if token == nil || s.sheetID == "" {
		return mockKPIResult(quarter, 45, 1)
	}

	var current int
	err := s.runner.Do(ctx, token, s.connections.Saver(email, models.ProviderGoogle),
		func(ctx context.Context, tok *models.ProviderToken) error {
			rows, err := s.google.ReadRange(ctx, tok, s.sheetID, s.sheetTab+"!A:G")
			if err != nil {
				return err
			}
			colIdx := resolveQuarterColumn(rows, quarter, column)
			_, value := findUserRow(rows, profile.NameAlphabet, colIdx)
			current = value
			return nil
		})
	if err != nil {
		s.logger.Warn("KPI sheet read failed, serving mock values",
			zap.String("email", email),
			zap.Error(err))
		return mockKPIResult(quarter, 0, 0)
	}

	return &KPIReadResult{
		KPI: models.KPISnapshot{
			UserPartnerMeeting: models.KPIMetric{Current: current, Target: partnerMeetingTarget},
			CxOVisit:           models.KPIMetric{Current: 1, Target: cxoVisitTarget},
			Quarter:            quarter,
		},
		PendingMeetings: []models.Meeting{},
	}
}

// RecordMeetings cumulatively adds meetingCount to the user's cell for the
// current quarter and returns a confirmation message.
func (s *KPIService) RecordMeetings(ctx context.Context, email string, meetingCount int) (string, error) {
	if meetingCount < 0 {
		return "", ErrInvalidMeetingCount
	}

	profile, err := s.profiles.GetProfile(ctx, email)
	if err != nil || profile.NameAlphabet == "" {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("failed to load profile: %w", err)
		}
		return "", ErrProfileRequired
	}

	token, err := s.connections.GetToken(ctx, email, models.ProviderGoogle)
	if err != nil {
		if IsNotFound(err) {
			return "", provider.ErrNotConnected
		}
		return "", err
	}
	if s.sheetID == "" {
		return "", errors.New("kpi sheet not configured")
	}

	quarter, column := s.currentQuarter()
	err = s.runner.Do(ctx, token, s.connections.Saver(email, models.ProviderGoogle),
		func(ctx context.Context, tok *models.ProviderToken) error {
			rows, err := s.google.ReadRange(ctx, tok, s.sheetID, s.sheetTab+"!A:G")
			if err != nil {
				return err
			}

			colIdx := resolveQuarterColumn(rows, quarter, column)
			rowIdx, current := findUserRow(rows, profile.NameAlphabet, colIdx)
			if rowIdx < 0 {
				return ErrUserRowNotFound
			}

			// Sheet rows are 1-indexed.
			cell := fmt.Sprintf("%s!%s%d", s.sheetTab, columnLetter(colIdx, column), rowIdx+1)
			return s.google.UpdateCell(ctx, tok, s.sheetID, cell, current+meetingCount)
		})
	if err != nil {
		return "", err
	}

	s.audit.Publish(ctx, audit.EventKPIMeetingRecorded, email)
	return fmt.Sprintf("added %d meetings to the KPI sheet", meetingCount), nil
}

// currentQuarter returns the label ("2026 Q3") and fallback column letter
// for the quarter containing now.
func (s *KPIService) currentQuarter() (string, string) {
	now := s.now()
	q := (int(now.Month())-1)/3 + 1
	label := fmt.Sprintf("%d Q%d", now.Year(), q)

	column, ok := quarterColumns[label]
	if !ok {
		column = "D"
	}
	return label, column
}

// resolveQuarterColumn finds the quarter's column index from the header
// row: an exact "2026 Q3" header wins, then any header mentioning the
// quarter part, then the static letter mapping.
func resolveQuarterColumn(rows [][]string, quarter, fallbackColumn string) int {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}

	for i, h := range header {
		if strings.Contains(h, quarter) {
			return i
		}
	}
	_, qPart, _ := strings.Cut(quarter, " ")
	for i, h := range header {
		if qPart != "" && strings.Contains(h, qPart) {
			return i
		}
	}
	return int(fallbackColumn[0] - 'A')
}

// findUserRow locates the row whose column A contains the name and returns
// its index with the current cell value. Returns -1 when absent.
func findUserRow(rows [][]string, nameAlphabet string, colIdx int) (int, int) {
	needle := strings.ToLower(strings.TrimSpace(nameAlphabet))
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(rows[i][0]))
		if name == "" || !strings.Contains(name, needle) {
			continue
		}

		current := 0
		if colIdx >= 0 && colIdx < len(rows[i]) {
			if v, err := strconv.Atoi(strings.TrimSpace(rows[i][colIdx])); err == nil {
				current = v
			}
		}
		return i, current
	}
	return -1, 0
}

func columnLetter(colIdx int, fallback string) string {
	if colIdx >= 0 && colIdx < 26 {
		return string(rune('A' + colIdx))
	}
	return fallback
}

func mockKPIResult(quarter string, meetings, cxo int) *KPIReadResult {
	return &KPIReadResult{
		KPI: models.KPISnapshot{
			UserPartnerMeeting: models.KPIMetric{Current: meetings, Target: partnerMeetingTarget},
			CxOVisit:           models.KPIMetric{Current: cxo, Target: cxoVisitTarget},
			Quarter:            quarter,
		},
		PendingMeetings: []models.Meeting{},
	}
}
