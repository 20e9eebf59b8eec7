package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"expense-bff/internal/models"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/salesforce"
)

var ErrQueryTooShort = errors.New("search query must be at least 2 characters")

// CRMService searches Salesforce opportunities for a linked user.
type CRMService struct {
	connections *ConnectionService
	sfdc        *salesforce.Client
	runner      *provider.Runner

	// devFallback is set when no persistent store is configured; an
	// unlinked user then gets mock search results instead of a 401.
	devFallback bool
	logger      *zap.Logger
}

func NewCRMService(
	connections *ConnectionService,
	sfdcClient *salesforce.Client,
	runner *provider.Runner,
	devFallback bool,
	logger *zap.Logger,
) *CRMService {
	return &CRMService{
		connections: connections,
		sfdc:        sfdcClient,
		runner:      runner,
		devFallback: devFallback,
		logger:      logger,
	}
}

// Search returns up to 20 open opportunities matching the query by name or
// account name.
func (s *CRMService) Search(ctx context.Context, email, query string) ([]models.Opportunity, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return nil, ErrQueryTooShort
	}

	token, err := s.connections.GetToken(ctx, email, models.ProviderSalesforce)
	if err != nil {
		if IsNotFound(err) {
			if s.devFallback {
				return mockOpportunities(query), nil
			}
			return nil, provider.ErrNotConnected
		}
		return nil, err
	}

	var opportunities []models.Opportunity
	err = s.runner.Do(ctx, token, s.connections.Saver(email, models.ProviderSalesforce),
		func(ctx context.Context, tok *models.ProviderToken) error {
			found, err := s.sfdc.SearchOpportunities(ctx, tok, query)
			if err != nil {
				return err
			}
			opportunities = found
			return nil
		})
	if err != nil {
		return nil, err
	}
	return opportunities, nil
}

func mockOpportunities(query string) []models.Opportunity {
	return []models.Opportunity{
		{
			ID:          "006MOCK00000001",
			Name:        fmt.Sprintf("%s - Development Deal", query),
			AccountName: fmt.Sprintf("%s Corp", query),
			Amount:      150000,
			CloseDate:   "2026-03-31",
			StageName:   "Negotiation",
		},
		{
			ID:          "006MOCK00000002",
			Name:        fmt.Sprintf("%s - Enterprise Agreement", query),
			AccountName: fmt.Sprintf("%s Inc", query),
			Amount:      500000,
			CloseDate:   "2026-06-30",
			StageName:   "Proposal",
		},
	}
}
