// Package verification issues short-lived one-time codes for two-factor login.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jordanlanch/crmleads/pkg/cache"
	"github.com/jordanlanch/crmleads/pkg/domain"
	"github.com/jordanlanch/crmleads/pkg/logger"
)

const (
	codeDigits = 6
	keyPrefix  = "2fa:"
	// maxAttempts is how many guesses one code survives.
	maxAttempts    = 5
	attemptsPrefix = "2fa-attempts:"
)

// ErrInvalidCode is returned for a wrong, expired or already used code.
var ErrInvalidCode error = &domain.DomainError{
	Code:    domain.ErrCodeUnauthorized,
	Message: "invalid or expired verification code",
}

// Sender delivers a code to its owner.
type Sender interface {
	SendVerificationCode(toEmail, toName, code string, ttl time.Duration) error
}

// Service issues and redeems one-time login codes.
type Service struct {
	store   cache.Store
	sender  Sender
	ttl     time.Duration
	logger  logger.Logger
	newCode func() (string, error)
}

// NewService creates a code service. Codes live for ttl.
func NewService(store cache.Store, sender Sender, ttl time.Duration, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: store, sender: sender, ttl: ttl, logger: log, newCode: randomCode}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func key(email string) string {
	return keyPrefix + normalize(email)
}

func attemptsKey(email string) string {
	return attemptsPrefix + normalize(email)
}

// Send stores a fresh code for email, replacing any previous one, and mails it.
func (s *Service) Send(ctx context.Context, email, name string) error {
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	if err := s.store.Delete(ctx, attemptsKey(email)); err != nil {
		return fmt.Errorf("failed to reset verification attempts: %w", err)
	}
	if err := s.store.Put(ctx, key(email), code, s.ttl); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	if err := s.sender.SendVerificationCode(email, name, code, s.ttl); err != nil {
		_ = s.store.Delete(ctx, key(email))
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	s.logger.Info("verification code issued", "email", email, "ttl", s.ttl.String())
	return nil
}

// Verify redeems code for email. A code can be used once and is destroyed
// after maxAttempts guesses, right or wrong.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	stored, ok, err := s.store.Get(ctx, key(email))
	if err != nil {
		return fmt.Errorf("failed to read verification code: %w", err)
	}
	if !ok {
		s.logger.Warn("verification code rejected", "email", email, "reason", "missing")
		return ErrInvalidCode
	}

	attempts, err := s.store.Incr(ctx, attemptsKey(email), s.ttl)
	if err != nil {
		return fmt.Errorf("failed to count verification attempts: %w", err)
	}
	if attempts > maxAttempts {
		s.burn(ctx, email)
		s.logger.Warn("verification code rejected", "email", email, "reason", "too_many_attempts")
		return ErrInvalidCode
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		if attempts == maxAttempts {
			s.burn(ctx, email)
		}
		s.logger.Warn("verification code rejected", "email", email, "reason", "mismatch", "attempt", attempts)
		return ErrInvalidCode
	}
	if err := s.store.Delete(ctx, key(email)); err != nil {
		return fmt.Errorf("failed to consume verification code: %w", err)
	}
	_ = s.store.Delete(ctx, attemptsKey(email))
	return nil
}

// burn drops the code so the next guess finds nothing.
func (s *Service) burn(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, key(email)); err != nil {
		s.logger.Error("failed to drop verification code", "email", email, "error", err)
	}
}

func randomCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
