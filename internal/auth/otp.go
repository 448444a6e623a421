package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/pkg/crypto"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// ErrOTPLocked is wrapped into ErrInvalidOTP when the attempt limit discarded the code.
var ErrOTPLocked = errors.New("too many attempts, log in again")

// OTPService issues and verifies one-time passwords.
// Records live in a Cache keyed by user id with the OTP TTL. Issue overwrites
// the record in one write and Verify consumes it with CompareAndDelete, so a
// verify racing a reissue sees either the old code or the new one.
type OTPService struct {
	cache       repository.Cache
	ttl         time.Duration
	maxAttempts int
	generate    func() (string, error)
	keys        repository.CacheKey
	logger      zerolog.Logger
}

// NewOTPService creates an OTPService.
func NewOTPService(cache repository.Cache, ttl time.Duration, maxAttempts int, logger zerolog.Logger) *OTPService {
	return &OTPService{
		cache:       cache,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		generate:    crypto.GenerateOTP,
		logger:      logger.With().Str("service", "otp").Logger(),
	}
}

// TTL returns how long an issued code stays valid.
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new code for userID, replacing any outstanding one.
func (s *OTPService) Issue(ctx context.Context, userID string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, s.keys.OTP(userID), []byte(code), s.ttl); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}
	if err := s.cache.Delete(ctx, s.keys.OTPAttempts(userID)); err != nil {
		return "", fmt.Errorf("failed to reset otp attempts: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Dur("ttl", s.ttl).Msg("otp issued")
	return code, nil
}

// Verify consumes code for userID. A wrong code leaves the record usable until
// the attempt limit is reached, at which point the record is discarded.
func (s *OTPService) Verify(ctx context.Context, userID, code string) error {
	key := s.keys.OTP(userID)

	consumed, err := s.cache.CompareAndDelete(ctx, key, []byte(code))
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if consumed {
		if err := s.cache.Delete(ctx, s.keys.OTPAttempts(userID)); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear otp attempts")
		}
		return nil
	}

	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to verify otp: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: no outstanding code", domain.ErrInvalidOTP)
	}

	if s.maxAttempts > 0 {
		attempts, err := s.cache.Increment(ctx, s.keys.OTPAttempts(userID), 1, s.ttl)
		if err != nil {
			return fmt.Errorf("failed to count otp attempts: %w", err)
		}
		if attempts >= int64(s.maxAttempts) {
			if err := s.cache.Delete(ctx, key); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to discard locked otp")
			}
			if err := s.cache.Delete(ctx, s.keys.OTPAttempts(userID)); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear otp attempts")
			}
			s.logger.Warn().Str("user_id", userID).Int64("attempts", attempts).Msg("otp discarded after too many attempts")
			return fmt.Errorf("%w: %w", domain.ErrInvalidOTP, ErrOTPLocked)
		}
	}

	return fmt.Errorf("%w: code does not match", domain.ErrInvalidOTP)
}
