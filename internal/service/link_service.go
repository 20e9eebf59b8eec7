package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/models"
	"expense-bff/internal/oauthstate"
	"expense-bff/internal/provider/google"
	"expense-bff/internal/provider/salesforce"
)

var (
	ErrProviderNotConfigured = errors.New("provider client credentials not configured")
	ErrCredentialStoreFailed = errors.New("failed to store credential")
)

// LinkService drives the OAuth authorization-code flow for both providers.
type LinkService struct {
	state       *oauthstate.Codec
	google      *google.Client
	sfdc        *salesforce.Client
	connections *ConnectionService
	audit       *audit.Publisher
	logger      *zap.Logger
}

func NewLinkService(
	state *oauthstate.Codec,
	googleClient *google.Client,
	sfdcClient *salesforce.Client,
	connections *ConnectionService,
	auditPub *audit.Publisher,
	logger *zap.Logger,
) *LinkService {
	return &LinkService{
		state:       state,
		google:      googleClient,
		sfdc:        sfdcClient,
		connections: connections,
		audit:       auditPub,
		logger:      logger,
	}
}

// AuthorizeURL builds the consent-screen redirect for the provider, with
// the requesting email signed into the state parameter.
func (s *LinkService) AuthorizeURL(prov models.Provider, email string) (string, error) {
	state, err := s.state.Encode(email)
	if err != nil {
		return "", fmt.Errorf("failed to encode oauth state: %w", err)
	}

	switch prov {
	case models.ProviderGoogle:
		if !s.google.Configured() {
			return "", ErrProviderNotConfigured
		}
		return s.google.AuthCodeURL(state), nil
	case models.ProviderSalesforce:
		if !s.sfdc.Configured() {
			return "", ErrProviderNotConfigured
		}
		return s.sfdc.AuthCodeURL(state), nil
	default:
		return "", fmt.Errorf("unknown provider %q", prov)
	}
}

// CompleteLink verifies the callback state, exchanges the code and stores
// the resulting credential. It returns the email the link belongs to.
func (s *LinkService) CompleteLink(ctx context.Context, prov models.Provider, code, state string) (string, error) {
	email, err := s.state.Decode(state)
	if err != nil {
		return "", err
	}

	var token *models.ProviderToken
	switch prov {
	case models.ProviderGoogle:
		token, err = s.google.Exchange(ctx, code)
	case models.ProviderSalesforce:
		token, err = s.sfdc.Exchange(ctx, code)
	default:
		return "", fmt.Errorf("unknown provider %q", prov)
	}
	if err != nil {
		return email, err
	}

	if err := s.connections.SaveToken(ctx, email, prov, token); err != nil {
		return email, fmt.Errorf("%w: %v", ErrCredentialStoreFailed, err)
	}

	s.audit.PublishProvider(ctx, audit.EventProviderLinked, email, prov)
	s.logger.Info("Provider linked",
		zap.String("email", email),
		zap.String("provider", string(prov)))
	return email, nil
}
