// Package memory is the development fallback store: plain maps behind a
// mutex, scoped to the process lifetime. It backs every store interface so
// the service runs with zero external dependencies. Not suitable beyond
// single-instance development use.
package memory

import (
	"context"
	"sync"
	"time"

	"expense-bff/internal/models"
	"expense-bff/internal/repository"
)

type connectionKey struct {
	email    string
	provider models.Provider
}

type Store struct {
	mu         sync.RWMutex
	profiles   map[string]models.UserProfile
	tokens     map[connectionKey]string
	challenges map[string]models.PasscodeChallenge
	now        func() time.Time
}

var (
	_ repository.ProfileStore    = (*Store)(nil)
	_ repository.ConnectionStore = (*Store)(nil)
	_ repository.ChallengeStore  = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		profiles:   make(map[string]models.UserProfile),
		tokens:     make(map[connectionKey]string),
		challenges: make(map[string]models.PasscodeChallenge),
		now:        time.Now,
	}
}

func (s *Store) UpsertProfile(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Email] = *profile
	return nil
}

func (s *Store) GetProfile(_ context.Context, email string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

func (s *Store) SaveToken(_ context.Context, email string, provider models.Provider, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[connectionKey{email, provider}] = payload
	return nil
}

func (s *Store) GetToken(_ context.Context, email string, provider models.Provider) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.tokens[connectionKey{email, provider}]
	if !ok {
		return "", repository.ErrNotFound
	}
	return payload, nil
}

func (s *Store) ClearToken(_ context.Context, email string, provider models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, connectionKey{email, provider})
	return nil
}

func (s *Store) Put(_ context.Context, challenge *models.PasscodeChallenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Email] = *challenge
	return nil
}

func (s *Store) Get(_ context.Context, email string) (*models.PasscodeChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &challenge, nil
}

func (s *Store) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, email)
	return nil
}

func (s *Store) SweepExpired(_ context.Context) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, email)
		}
	}
	return nil
}
