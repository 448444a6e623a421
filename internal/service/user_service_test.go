package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/stockwarden/internal/auth"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository/memory"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(memory.NewUserRepository(), auth.NewPasswordHasher(bcrypt.MinCost), zerolog.Nop())
}

func createUser(t *testing.T, svc *UserService, email string, role domain.Role) *domain.User {
	t.Helper()
	out, err := svc.Create(context.Background(), CreateUserInput{
		FullName: "Test User",
		Email:    email,
		Password: "correct-horse",
		Role:     role,
	})
	require.NoError(t, err)
	return out.User
}

func TestUserService_Create(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user := createUser(t, svc, "Manager@Corp.com", domain.RoleManager)
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.Verified)
	assert.Equal(t, domain.RoleManager, user.Role)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err := svc.Create(ctx, CreateUserInput{FullName: "Dup", Email: "manager@corp.com", Password: "password1", Role: domain.RoleViewer})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	tests := []struct {
		name  string
		input CreateUserInput
	}{
		{"bad email", CreateUserInput{FullName: "A", Email: "nope", Password: "password1", Role: domain.RoleViewer}},
		{"short password", CreateUserInput{FullName: "A", Email: "a@corp.com", Password: "short", Role: domain.RoleViewer}},
		{"missing role", CreateUserInput{FullName: "A", Email: "a@corp.com", Password: "password1"}},
		{"unknown role", CreateUserInput{FullName: "A", Email: "a@corp.com", Password: "password1", Role: domain.Role(42)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			require.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestUserService_EnsureAdminIsIdempotent(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Root", "admin@corp.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "Root", "ADMIN@corp.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)

	list, err := svc.List(ctx, ListUsersInput{})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, domain.RoleAdmin, list.Users[0].Role)
}

func TestUserService_SetRole(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	admin := createUser(t, svc, "admin@corp.com", domain.RoleAdmin)
	viewer := createUser(t, svc, "viewer@corp.com", domain.RoleViewer)

	updated, err := svc.SetRole(ctx, SetRoleInput{ActorID: admin.ID, UserID: viewer.ID, Role: domain.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, updated.Role)

	got, err := svc.GetByID(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, got.Role)

	_, err = svc.SetRole(ctx, SetRoleInput{ActorID: admin.ID, UserID: admin.ID, Role: domain.RoleViewer})
	require.ErrorIs(t, err, ErrSelfModification)

	_, err = svc.SetRole(ctx, SetRoleInput{ActorID: admin.ID, UserID: "missing", Role: domain.RoleViewer})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SetRole(ctx, SetRoleInput{ActorID: admin.ID, UserID: viewer.ID, Role: domain.Role(9)})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUserService_LastAdminProtected(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	first := createUser(t, svc, "first@corp.com", domain.RoleAdmin)
	second := createUser(t, svc, "second@corp.com", domain.RoleAdmin)

	_, err := svc.SetRole(ctx, SetRoleInput{ActorID: second.ID, UserID: first.ID, Role: domain.RoleManager})
	require.NoError(t, err)

	// second is now the only admin; a demoted admin cannot take it away.
	_, err = svc.SetRole(ctx, SetRoleInput{ActorID: first.ID, UserID: second.ID, Role: domain.RoleViewer})
	require.ErrorIs(t, err, ErrLastAdmin)
	require.ErrorIs(t, svc.Delete(ctx, first.ID, second.ID), ErrLastAdmin)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUserService_Delete(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	admin := createUser(t, svc, "admin@corp.com", domain.RoleAdmin)
	viewer := createUser(t, svc, "viewer@corp.com", domain.RoleViewer)

	require.ErrorIs(t, svc.Delete(ctx, admin.ID, admin.ID), ErrSelfModification)
	require.NoError(t, svc.Delete(ctx, admin.ID, viewer.ID))
	require.ErrorIs(t, svc.Delete(ctx, admin.ID, viewer.ID), domain.ErrNotFound)

	list, err := svc.List(ctx, ListUsersInput{Limit: 500})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestUserService_UpdatePassword(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()
	user := createUser(t, svc, "viewer@corp.com", domain.RoleViewer)

	err := svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, OldPassword: "wrong-pass", NewPassword: "brand-new-pass"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, svc.UpdatePassword(ctx, UpdatePasswordInput{UserID: user.ID, OldPassword: "correct-horse", NewPassword: "brand-new-pass"}))

	got, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, svc.hasher.Compare(got.PasswordHash, "brand-new-pass"))
}
