package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/auth"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/pkg/validation"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// UserService handles administrative user management.
// Self-service registration lives in auth.Authenticator; only this service
// changes roles.
type UserService struct {
	userRepo repository.UserRepository
	hasher   *auth.PasswordHasher
	logger   zerolog.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, hasher *auth.PasswordHasher, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		logger:   logger.With().Str("service", "user").Logger(),
		now:      time.Now,
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	FullName string      `validate:"required,max=200"`
	Email    string      `validate:"required,email"`
	Password string      `validate:"required,min=8,max=72"`
	Role     domain.Role `validate:"required"`
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User
}

// Create creates a verified account with the given role.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %d", domain.ErrInvalidArgument, input.Role)
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check email existence")
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, domain.NewDomainError(domain.ErrDuplicateEmail, "email already registered", input.Email)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(uuid.NewString(), input.FullName, input.Email, hash)
	user.Role = input.Role
	user.Verified = true

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, domain.NewDomainError(domain.ErrDuplicateEmail, "email already registered", input.Email)
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", user.Role.String()).
		Msg("user created")

	return &CreateUserOutput{User: user}, nil
}

// EnsureAdmin creates a verified ADMIN with the given credentials unless the
// email is already registered. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, fullName, email, password string) (bool, error) {
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := s.Create(ctx, CreateUserInput{
		FullName: fullName,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewDomainError(domain.ErrNotFound, "user not found", id)
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetRoleInput contains the data needed to change a role.
type SetRoleInput struct {
	// ActorID is the admin making the change.
	ActorID string `validate:"required"`
	UserID  string `validate:"required"`
	Role    domain.Role
}

// SetRole changes a user's role. An admin cannot demote themselves and the
// last admin cannot be demoted.
func (s *UserService) SetRole(ctx context.Context, input SetRoleInput) (*domain.User, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %d", domain.ErrInvalidArgument, input.Role)
	}

	user, err := s.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user.Role == input.Role {
		return user, nil
	}
	if user.Role == domain.RoleAdmin {
		if input.ActorID == input.UserID {
			return nil, ErrSelfModification
		}
		if err := s.ensureOtherAdmin(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	previous := user.Role
	user.Role = input.Role
	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("actor_id", input.ActorID).
		Str("from", previous.String()).
		Str("to", user.Role.String()).
		Msg("user role updated")

	return user, nil
}

// UpdatePasswordInput contains the data needed to update a password.
type UpdatePasswordInput struct {
	UserID      string `validate:"required"`
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=8,max=72"`
}

// UpdatePassword changes a user's password after checking the old one.
func (s *UserService) UpdatePassword(ctx context.Context, input UpdatePasswordInput) error {
	if err := validation.Struct(input); err != nil {
		return err
	}

	user, err := s.GetByID(ctx, input.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, input.OldPassword) {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password updated")
	return nil
}

// Delete deletes a user account on behalf of actorID.
func (s *UserService) Delete(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfModification
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		if err := s.ensureOtherAdmin(ctx, user.ID); err != nil {
			return err
		}
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewDomainError(domain.ErrNotFound, "user not found", userID)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("actor_id", actorID).Msg("user deleted")
	return nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User `json:"users"`
	TotalCount int64          `json:"total_count"`
}

// List returns users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}

// ensureOtherAdmin fails with ErrLastAdmin unless an admin other than userID exists.
func (s *UserService) ensureOtherAdmin(ctx context.Context, userID string) error {
	all, err := s.userRepo.List(ctx, repository.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range all.Items {
		if u.ID != userID && u.Role == domain.RoleAdmin {
			return nil
		}
	}
	return ErrLastAdmin
}
