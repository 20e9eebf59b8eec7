package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/hashing"
	"expense-bff/internal/models"
	"expense-bff/internal/repository"
)

var (
	ErrInvalidCode       = errors.New("code must be a 6-digit number")
	ErrChallengeNotFound = errors.New("no passcode requested for this email")
	ErrChallengeExpired  = errors.New("passcode expired")
	ErrCodeMismatch      = errors.New("incorrect passcode")
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Mailer delivers one transactional email. Nil means delivery is not
// configured and the service runs in dev mode.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// PasscodeService issues and verifies email one-time passcodes. The code is
// never stored, only its hash; at most one live challenge exists per email.
type PasscodeService struct {
	challenges repository.ChallengeStore
	hasher     *hashing.Hasher
	mailer     Mailer
	audit      *audit.Publisher
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewPasscodeService(
	challenges repository.ChallengeStore,
	hasher *hashing.Hasher,
	mailer Mailer,
	auditPub *audit.Publisher,
	ttl time.Duration,
	logger *zap.Logger,
) *PasscodeService {
	return &PasscodeService{
		challenges: challenges,
		hasher:     hasher,
		mailer:     mailer,
		audit:      auditPub,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// IssueResult reports whether the code was actually emailed or only logged.
type IssueResult struct {
	DevMode bool
}

// Issue generates a fresh 6-digit code for the email, replacing any prior
// challenge, and delivers it. Without a configured mailer the code is
// logged instead and the caller is told it is in dev mode.
func (s *PasscodeService) Issue(ctx context.Context, email string) (*IssueResult, error) {
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate passcode: %w", err)
	}

	hashed, err := s.hasher.HashPasscode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}

	if err := s.challenges.SweepExpired(ctx); err != nil {
		s.logger.Warn("Failed to sweep expired challenges", zap.Error(err))
	}

	challenge := &models.PasscodeChallenge{
		Email:         email,
		CodeHash:      hashed.Hash,
		CodeSalt:      hashed.Salt,
		PepperVersion: hashed.PepperVersion,
		ExpiresAt:     s.now().Add(s.ttl),
	}
	if err := s.challenges.Put(ctx, challenge, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	s.audit.Publish(ctx, audit.EventLoginRequested, email)

	if s.mailer == nil {
		// Dev mode: no mail provider configured, surface the code in the
		// server log so local login still works.
		s.logger.Info("Passcode issued (dev mode, not emailed)",
			zap.String("email", email),
			zap.String("code", code))
		return &IssueResult{DevMode: true}, nil
	}

	subject := "ログインコード / Your login code"
	html := fmt.Sprintf(
		"<p>以下のコードを入力してください。有効期限は%d分です。</p>"+
			"<p style=\"font-size:28px;letter-spacing:6px;font-weight:bold\">%s</p>",
		int(s.ttl.Minutes()), code)
	if err := s.mailer.SendEmail(ctx, email, subject, html); err != nil {
		return nil, fmt.Errorf("failed to send passcode email: %w", err)
	}

	return &IssueResult{}, nil
}

// Verify checks a submitted code against the stored challenge. A verified
// challenge is deleted, so each code works once. In dev mode any
// well-formed 6-digit code verifies.
func (s *PasscodeService) Verify(ctx context.Context, email, code string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}

	if s.mailer == nil {
		if err := s.challenges.Delete(ctx, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Failed to delete challenge", zap.Error(err))
		}
		s.audit.Publish(ctx, audit.EventLoginSucceeded, email)
		return nil
	}

	challenge, err := s.challenges.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("failed to load challenge: %w", err)
	}

	if challenge.Expired(s.now()) {
		if err := s.challenges.Delete(ctx, email); err != nil {
			s.logger.Warn("Failed to delete expired challenge", zap.Error(err))
		}
		return ErrChallengeExpired
	}

	ok, err := s.hasher.VerifyPasscode(code, &hashing.HashResult{
		Hash:          challenge.CodeHash,
		Salt:          challenge.CodeSalt,
		PepperVersion: challenge.PepperVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to verify passcode: %w", err)
	}
	if !ok {
		s.audit.Publish(ctx, audit.EventLoginFailed, email)
		return ErrCodeMismatch
	}

	if err := s.challenges.Delete(ctx, email); err != nil {
		s.logger.Warn("Failed to delete verified challenge", zap.Error(err))
	}
	s.audit.Publish(ctx, audit.EventLoginSucceeded, email)
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
