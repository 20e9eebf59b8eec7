package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"expense-bff/internal/models"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/google"
)

// CalendarService lists the current month's meetings from the user's
// Google calendar.
type CalendarService struct {
	connections *ConnectionService
	google      *google.Client
	runner      *provider.Runner
	logger      *zap.Logger
	now         func() time.Time
}

func NewCalendarService(
	connections *ConnectionService,
	googleClient *google.Client,
	runner *provider.Runner,
	logger *zap.Logger,
) *CalendarService {
	return &CalendarService{
		connections: connections,
		google:      googleClient,
		runner:      runner,
		logger:      logger,
		now:         time.Now,
	}
}

// ListMeetings returns the user's meetings. Without a linked Google account
// it returns illustrative sample data so the dashboard renders before any
// linking has happened.
func (s *CalendarService) ListMeetings(ctx context.Context, email string) ([]models.Meeting, error) {
	token, err := s.connections.GetToken(ctx, email, models.ProviderGoogle)
	if err != nil {
		if IsNotFound(err) {
			return s.sampleMeetings(), nil
		}
		return nil, err
	}

	var meetings []models.Meeting
	err = s.runner.Do(ctx, token, s.connections.Saver(email, models.ProviderGoogle),
		func(ctx context.Context, tok *models.ProviderToken) error {
			listed, err := s.google.ListMeetings(ctx, tok)
			if err != nil {
				return err
			}
			meetings = listed
			return nil
		})
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

func (s *CalendarService) sampleMeetings() []models.Meeting {
	today := s.now().UTC().Format(time.RFC3339)
	return []models.Meeting{
		{ID: "mock1", Title: "Customer Meeting - ABC Corp", Date: today, Attendees: 3},
		{ID: "mock2", Title: "打ち合わせ - XYZ社", Date: today, Attendees: 2},
	}
}
