package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/encryption"
	"expense-bff/internal/models"
	"expense-bff/internal/provider"
	"expense-bff/internal/repository"
)

// ConnectionService stores provider tokens envelope-encrypted. The store
// only ever sees opaque payloads.
type ConnectionService struct {
	store  repository.ConnectionStore
	enc    *encryption.EncryptionManager
	audit  *audit.Publisher
	logger *zap.Logger
}

func NewConnectionService(
	store repository.ConnectionStore,
	enc *encryption.EncryptionManager,
	auditPub *audit.Publisher,
	logger *zap.Logger,
) *ConnectionService {
	return &ConnectionService{
		store:  store,
		enc:    enc,
		audit:  auditPub,
		logger: logger,
	}
}

// SaveToken encrypts and stores the credential for (email, provider),
// replacing any prior one.
func (s *ConnectionService) SaveToken(ctx context.Context, email string, prov models.Provider, token *models.ProviderToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	envelope, err := s.enc.EncryptField(ctx, string(raw))
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode token envelope: %w", err)
	}

	return s.store.SaveToken(ctx, email, prov, string(payload))
}

// GetToken returns repository.ErrNotFound when no credential is stored.
func (s *ConnectionService) GetToken(ctx context.Context, email string, prov models.Provider) (*models.ProviderToken, error) {
	payload, err := s.store.GetToken(ctx, email, prov)
	if err != nil {
		return nil, err
	}

	var envelope encryption.EncryptedData
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode token envelope: %w", err)
	}

	raw, err := s.enc.DecryptField(ctx, &envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var token models.ProviderToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

// Disconnect clears exactly one provider's credential, leaving the other
// untouched.
func (s *ConnectionService) Disconnect(ctx context.Context, email string, prov models.Provider) error {
	if err := s.store.ClearToken(ctx, email, prov); err != nil {
		return err
	}
	s.audit.PublishProvider(ctx, audit.EventProviderUnlinked, email, prov)
	s.logger.Info("Provider disconnected",
		zap.String("email", email),
		zap.String("provider", string(prov)))
	return nil
}

// Connected reports whether a credential is stored, without decrypting it.
func (s *ConnectionService) Connected(ctx context.Context, email string, prov models.Provider) bool {
	_, err := s.store.GetToken(ctx, email, prov)
	return err == nil
}

// Saver builds the persistence callback the provider runner uses after a
// refresh.
func (s *ConnectionService) Saver(email string, prov models.Provider) provider.SaveFunc {
	return func(ctx context.Context, token *models.ProviderToken) error {
		if err := s.SaveToken(ctx, email, prov, token); err != nil {
			return err
		}
		s.audit.PublishProvider(ctx, audit.EventTokenRefreshed, email, prov)
		return nil
	}
}

// IsNotFound reports whether err means no stored credential.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
