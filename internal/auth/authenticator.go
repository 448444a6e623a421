package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/notify"
	"github.com/prn-tf/stockwarden/internal/pkg/crypto"
	"github.com/prn-tf/stockwarden/internal/pkg/validation"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// Authenticator drives the login state machine and owns registration.
// It holds no per-caller state; every operation receives the caller's Session.
type Authenticator struct {
	users           repository.UserRepository
	hasher          *PasswordHasher
	otp             *OTPService
	notifier        notify.Notifier
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	verificationTTL time.Duration
	now             func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(
	users repository.UserRepository,
	hasher *PasswordHasher,
	otp *OTPService,
	notifier notify.Notifier,
	verificationTTL time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Authenticator {
	return &Authenticator{
		users:           users,
		hasher:          hasher,
		otp:             otp,
		notifier:        notifier,
		metrics:         m,
		logger:          logger.With().Str("service", "auth").Logger(),
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

// =============================================================================
// Login
// =============================================================================

// LoginInput contains the data for a password login.
type LoginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`

	// RequiredRole is the minimum role of the area being entered. Zero means any role.
	RequiredRole domain.Role
}

// LoginOutput contains the result of a password login.
type LoginOutput struct {
	User  *domain.User
	State State
}

// Login checks the password and, for a verified user with a sufficient role,
// issues an OTP and moves sess to StateOTPPending.
//
// Failures leave sess unauthenticated, except ErrEmailUnverified which leaves
// it in StateEmailUnverified and an OTP delivery failure which leaves it in
// StateOTPPending so the caller can retry the login.
func (a *Authenticator) Login(ctx context.Context, sess *Session, input LoginInput) (*LoginOutput, error) {
	sess.reset()

	if err := validation.Struct(input); err != nil {
		a.metrics.Login("invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	user, err := a.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			a.hasher.CompareMissing(input.Password)
			a.metrics.Login("invalid_credentials")
			a.logger.Debug().Msg("login rejected: invalid credentials")
			return nil, domain.ErrInvalidCredentials
		}
		a.metrics.Login("error")
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !a.hasher.Compare(user.PasswordHash, input.Password) {
		a.metrics.Login("invalid_credentials")
		a.logger.Debug().Msg("login rejected: invalid credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if input.RequiredRole != 0 && !user.Role.AtLeast(input.RequiredRole) {
		a.metrics.Login("forbidden")
		a.logger.Debug().Str("user_id", user.ID).Stringer("role", user.Role).Stringer("required", input.RequiredRole).Msg("login rejected: role too low")
		return nil, fmt.Errorf("%w: %s role required", domain.ErrForbidden, input.RequiredRole)
	}

	if !user.Verified {
		sess.setPending(StateEmailUnverified, user)
		a.metrics.Login("unverified")
		a.logger.Debug().Str("user_id", user.ID).Msg("login blocked: email not verified")
		return &LoginOutput{User: user, State: StateEmailUnverified}, domain.ErrEmailUnverified
	}

	code, err := a.otp.Issue(ctx, user.ID)
	if err != nil {
		a.metrics.Login("error")
		return nil, err
	}
	sess.setPending(StateOTPPending, user)
	a.metrics.Login("otp_pending")

	if err := a.notifier.Send(ctx, notify.OTPMessage(user.Email, code, a.otp.TTL())); err != nil {
		a.logger.Warn().Err(err).Str("user_id", user.ID).Msg("otp delivery failed")
		return &LoginOutput{User: user, State: StateOTPPending}, notify.AsFailure(err)
	}

	return &LoginOutput{User: user, State: StateOTPPending}, nil
}

// VerifyOTP completes a login in StateOTPPending. On success sess becomes
// StateAuthenticated. A wrong code leaves sess in StateOTPPending.
func (a *Authenticator) VerifyOTP(ctx context.Context, sess *Session, code string) (*domain.User, error) {
	pending, ok := sess.PendingUser()
	if !ok || sess.State() != StateOTPPending {
		return nil, fmt.Errorf("%w: no login awaiting a one-time password", domain.ErrUnauthenticated)
	}

	if err := a.otp.Verify(ctx, pending.ID, code); err != nil {
		switch {
		case errors.Is(err, ErrOTPLocked):
			a.metrics.OTPVerification("locked")
			sess.reset()
		case errors.Is(err, domain.ErrInvalidOTP):
			a.metrics.OTPVerification("invalid")
		}
		return nil, err
	}

	// Reload so a role change made while the OTP was outstanding takes effect.
	user, err := a.users.GetByID(ctx, pending.ID)
	if err != nil {
		sess.reset()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	sess.authenticate(user)
	a.metrics.OTPVerification("ok")
	a.logger.Info().Str("user_id", user.ID).Stringer("role", user.Role).Msg("user authenticated")
	return user, nil
}

// Logout clears sess.
func (a *Authenticator) Logout(sess *Session) {
	if u, ok := sess.CurrentUser(); ok {
		a.logger.Info().Str("user_id", u.ID).Msg("user logged out")
	}
	sess.reset()
}

// Authorize returns ErrUnauthenticated without a session user and ErrForbidden
// when the session role is below required.
func (a *Authenticator) Authorize(sess *Session, required domain.Role) error {
	if sess.State() != StateAuthenticated {
		return domain.ErrUnauthenticated
	}
	if !sess.IsAuthorized(required) {
		return fmt.Errorf("%w: %s role required", domain.ErrForbidden, required)
	}
	return nil
}

// ResumeSession rebuilds a Session for userID at stage from persistent state.
// Used by stateless transports that carry the stage in a bearer token.
func (a *Authenticator) ResumeSession(ctx context.Context, userID string, stage Stage) (*Session, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	sess := NewSession()
	switch stage {
	case StagePending:
		sess.setPending(StateOTPPending, user)
	case StageFull:
		sess.authenticate(user)
	default:
		return nil, fmt.Errorf("%w: unknown token stage %q", domain.ErrUnauthenticated, stage)
	}
	return sess, nil
}

// =============================================================================
// Registration
// =============================================================================

// RegisterInput contains the data for self-service registration.
type RegisterInput struct {
	FullName string `validate:"required,max=200"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

// VerificationOutput is returned by operations that issue a verification token.
type VerificationOutput struct {
	User *domain.User

	// Token is the plaintext verification token. Only its digest is stored.
	Token string

	// DeliveryErr is set when the token could not be sent. The state change stands.
	DeliveryErr error
}

// Register creates an unverified VIEWER and sends a verification token.
func (a *Authenticator) Register(ctx context.Context, input RegisterInput) (*VerificationOutput, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	exists, err := a.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, domain.NewDomainError(domain.ErrDuplicateEmail, "email already registered", input.Email)
	}

	hash, err := a.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(uuid.NewString(), input.FullName, input.Email, hash)
	token := a.stampVerification(user)

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, domain.NewDomainError(domain.ErrDuplicateEmail, "email already registered", input.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return &VerificationOutput{
		User:        user,
		Token:       token,
		DeliveryErr: a.sendVerification(ctx, user, token),
	}, nil
}

// VerifyEmail exchanges a verification token for the verified flag.
func (a *Authenticator) VerifyEmail(ctx context.Context, email, token string) (*domain.User, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewDomainError(domain.ErrNotFound, "no user with this email", email)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.VerificationTokenHash == "" ||
		!crypto.EqualDigest(user.VerificationTokenHash, crypto.ComputeSHA256([]byte(token))) {
		return nil, domain.ErrInvalidToken
	}
	if user.VerificationExpiresAt != nil && !a.now().Before(*user.VerificationExpiresAt) {
		return nil, fmt.Errorf("%w: token expired", domain.ErrInvalidToken)
	}

	user.Verified = true
	user.VerificationTokenHash = ""
	user.VerificationExpiresAt = nil
	user.UpdatedAt = a.now().UTC()
	if err := a.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	a.logger.Info().Str("user_id", user.ID).Msg("email verified")
	return user, nil
}

// ResendVerification replaces the outstanding verification token and sends it.
func (a *Authenticator) ResendVerification(ctx context.Context, email string) (*VerificationOutput, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewDomainError(domain.ErrNotFound, "no user with this email", email)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Verified {
		return nil, fmt.Errorf("%w: email already verified", domain.ErrInvalidArgument)
	}

	token := a.stampVerification(user)
	if err := a.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &VerificationOutput{
		User:        user,
		Token:       token,
		DeliveryErr: a.sendVerification(ctx, user, token),
	}, nil
}

// stampVerification sets a fresh token digest and expiry on user and returns the token.
func (a *Authenticator) stampVerification(user *domain.User) string {
	token := uuid.NewString()
	expires := a.now().Add(a.verificationTTL).UTC()
	user.VerificationTokenHash = crypto.ComputeSHA256([]byte(token))
	user.VerificationExpiresAt = &expires
	user.UpdatedAt = a.now().UTC()
	return token
}

func (a *Authenticator) sendVerification(ctx context.Context, user *domain.User, token string) error {
	msg := notify.VerificationMessage(user.Email, user.FullName, token, a.verificationTTL)
	if err := a.notifier.Send(ctx, msg); err != nil {
		a.logger.Warn().Err(err).Str("user_id", user.ID).Msg("verification delivery failed")
		return notify.AsFailure(err)
	}
	return nil
}
